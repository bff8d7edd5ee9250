// Package carver turns the extents of a recovered inode into an ordered
// recovery plan and applies it.
package carver

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/extents"
	"github.com/aarsakian/GIFCarver/logger"
)

var ErrInvalidPlan = errors.New("invalid recovery plan")

// Job is one recovery attempt started from a signature hit.
type Job struct {
	OutputID    uint32
	Extents     extents.List
	TotalBlocks int64
	BlockSize   uint32
	Device      string
	// BaseOffset is the byte offset block numbers are counted from.
	BaseOffset  int64
	SourceBlock uint64
	Inode       uint64
}

func NewJob(id uint32, list extents.List, blockSize uint32, device string, baseOffset int64) Job {
	return Job{
		OutputID:    id,
		Extents:     list,
		TotalBlocks: list.TotalBlockCount,
		BlockSize:   blockSize,
		Device:      device,
		BaseOffset:  baseOffset,
	}
}

type ZeroFill struct {
	BlockCount int64
	SizeBytes  int64
}

type CopyOperation struct {
	SourceDevice      string
	ReadOffsetBlocks  int64
	WriteOffsetBlocks int64
	BlockCount        int64
}

type Plan struct {
	Job  Job
	Init ZeroFill
	Ops  []CopyOperation
}

// NewPlan sizes the output at TotalBlocks-1 blocks of zeros and emits one
// copy per effective extent, packed back to back from write offset 0.
func NewPlan(job Job) Plan {
	zeroBlocks := job.TotalBlocks - 1
	if zeroBlocks < 0 {
		logger.FSLogger.Warning(fmt.Sprintf("job %d has %d blocks, zero fill clamped to 0", job.OutputID, job.TotalBlocks))
		zeroBlocks = 0
	}
	plan := Plan{
		Job:  job,
		Init: ZeroFill{BlockCount: zeroBlocks, SizeBytes: zeroBlocks * int64(job.BlockSize)},
		Ops:  make([]CopyOperation, 0, len(job.Extents.Extents)),
	}

	writeOffset := int64(0)
	for _, extent := range job.Extents.Extents {
		count := extent.Blocks()
		plan.Ops = append(plan.Ops, CopyOperation{
			SourceDevice:      job.Device,
			ReadOffsetBlocks:  extent.Start,
			WriteOffsetBlocks: writeOffset,
			BlockCount:        count,
		})
		writeOffset += count
	}
	return plan
}

// Validate checks that copy regions do not overlap and advance strictly.
func (plan Plan) Validate() error {
	if plan.Job.BlockSize == 0 {
		return errors.Wrap(ErrInvalidPlan, "block size is zero")
	}
	next := int64(0)
	for idx, op := range plan.Ops {
		if op.BlockCount <= 0 {
			return errors.Wrapf(ErrInvalidPlan, "op %d copies %d blocks", idx, op.BlockCount)
		}
		if op.WriteOffsetBlocks < next {
			return errors.Wrapf(ErrInvalidPlan, "op %d writes at block %d before %d", idx, op.WriteOffsetBlocks, next)
		}
		next = op.WriteOffsetBlocks + op.BlockCount
	}
	return nil
}

// CopiedBlocks is the number of blocks the copy operations write.
func (plan Plan) CopiedBlocks() int64 {
	var blocks int64
	for _, op := range plan.Ops {
		blocks += op.BlockCount
	}
	return blocks
}

// Sequencer hands out output ids, safe for concurrent use.
type Sequencer struct {
	next atomic.Uint32
}

func (seq *Sequencer) Next() uint32 {
	return seq.next.Add(1) - 1
}
