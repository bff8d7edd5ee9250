package carver

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/exporter"
	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/metrics"
	"github.com/aarsakian/GIFCarver/readers"
)

const defaultChunkBlocks = 256

type Executor struct {
	Reader      readers.DiskReader
	Exporter    exporter.Exporter
	ReadTimeout time.Duration
	// ChunkBlocks bounds the blocks held in memory per device read.
	ChunkBlocks int64
}

type Result struct {
	Artifact    string
	BytesCopied int64
	FailedReads int
	OutputBytes int64
}

// Apply zero fills the artifact and then runs the copy operations in plan
// order. A failed device read leaves that region zero and is not fatal.
func (e Executor) Apply(ctx context.Context, plan Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}
	result := Result{Artifact: e.Exporter.ArtifactName(plan.Job.OutputID)}

	out, err := e.Exporter.CreateZeroFilled(result.Artifact, plan.Init.SizeBytes)
	if err != nil {
		return result, err
	}
	defer out.Close()

	chunkBlocks := e.ChunkBlocks
	if chunkBlocks <= 0 {
		chunkBlocks = defaultChunkBlocks
	}
	bs := int64(plan.Job.BlockSize)
	log := logger.FSLogger.WithField("output", plan.Job.OutputID)

	for _, op := range plan.Ops {
		for done := int64(0); done < op.BlockCount; done += chunkBlocks {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			count := op.BlockCount - done
			if count > chunkBlocks {
				count = chunkBlocks
			}
			readOffset := plan.Job.BaseOffset + (op.ReadOffsetBlocks+done)*bs
			writeOffset := (op.WriteOffsetBlocks + done) * bs

			data, err := readers.ReadWithTimeout(ctx, e.Reader, readOffset, int(count*bs), e.ReadTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.FailedReads++
				metrics.ShortRead()
				log.Warning(fmt.Sprintf("copy read at %d len %d got %d: %v", readOffset, count*bs, len(data), err))
			}
			if len(data) == 0 {
				continue
			}
			if _, err := out.WriteAt(data, writeOffset); err != nil {
				return result, errors.Wrapf(err, "write %s at %d", result.Artifact, writeOffset)
			}
			result.BytesCopied += int64(len(data))
			metrics.BytesCopied(int64(len(data)))
		}
	}

	info, err := out.Stat()
	if err != nil {
		return result, errors.Wrap(err, "stat output")
	}
	result.OutputBytes = info.Size()
	log.Info(fmt.Sprintf("wrote %s %d bytes copied %d", result.Artifact, result.OutputBytes, result.BytesCopied))
	return result, nil
}
