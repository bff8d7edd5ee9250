package carver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/aarsakian/GIFCarver/exporter"
	"github.com/aarsakian/GIFCarver/extents"
	"github.com/aarsakian/GIFCarver/readers"
)

const bs = 1024

func twoExtents() extents.List {
	return extents.List{
		Extents:         []extents.Extent{{Start: 100, End: 103}, {Start: 105, End: 110}},
		TotalBlockCount: 10,
	}
}

// blockImage returns an image where every byte of block n is n%251.
func blockImage(t *testing.T, blocks int) (readers.DiskReader, []byte) {
	t.Helper()
	img := make([]byte, blocks*bs)
	for block := 0; block < blocks; block++ {
		copy(img[block*bs:(block+1)*bs], bytes.Repeat([]byte{byte(block % 251)}, bs))
	}
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, img, 0644))
	hD, err := readers.GetHandler(path, "raw")
	require.NoError(t, err)
	t.Cleanup(hD.CloseHandler)
	return hD, img
}

func TestNewPlan(t *testing.T) {
	plan := NewPlan(NewJob(0, twoExtents(), bs, "/dev/sdb", 0))

	require.Equal(t, ZeroFill{BlockCount: 9, SizeBytes: 9 * bs}, plan.Init)
	require.Equal(t, []CopyOperation{
		{SourceDevice: "/dev/sdb", ReadOffsetBlocks: 100, WriteOffsetBlocks: 0, BlockCount: 4},
		{SourceDevice: "/dev/sdb", ReadOffsetBlocks: 105, WriteOffsetBlocks: 4, BlockCount: 6},
	}, plan.Ops)
	require.NoError(t, plan.Validate())
	require.Equal(t, int64(10), plan.CopiedBlocks())
}

func TestNewPlanKeepsDuplicateBlocksInZeroFill(t *testing.T) {
	list, err := extents.ParseString("BLOCKS:\n(0-3):100-103, (4-9):105-110\n(0-1):100-101\n\n")
	require.NoError(t, err)

	plan := NewPlan(NewJob(1, list, bs, "/dev/sdb", 0))
	require.Equal(t, int64(12), plan.Job.TotalBlocks)
	require.Equal(t, int64(11), plan.Init.BlockCount)
	require.Len(t, plan.Ops, 2)
	require.Equal(t, int64(10), plan.CopiedBlocks())
}

func TestNewPlanClampsEmptyJob(t *testing.T) {
	plan := NewPlan(NewJob(2, extents.List{}, bs, "/dev/sdb", 0))
	require.Equal(t, ZeroFill{}, plan.Init)
	require.Empty(t, plan.Ops)
	require.NoError(t, plan.Validate())
}

func TestValidateRejectsOverlap(t *testing.T) {
	plan := NewPlan(NewJob(0, twoExtents(), bs, "/dev/sdb", 0))
	plan.Ops[1].WriteOffsetBlocks = 2
	require.True(t, errors.Is(plan.Validate(), ErrInvalidPlan))

	plan = NewPlan(NewJob(0, twoExtents(), 0, "/dev/sdb", 0))
	require.True(t, errors.Is(plan.Validate(), ErrInvalidPlan))
}

func TestZeroFillBeforeCopies(t *testing.T) {
	hD, _ := blockImage(t, 4)
	exp := exporter.Exporter{Location: t.TempDir()}
	job := NewJob(7, extents.List{TotalBlockCount: 11}, bs, "disk.img", 0)

	result, err := Executor{Reader: hD, Exporter: exp}.Apply(context.Background(), NewPlan(job))
	require.NoError(t, err)
	require.Equal(t, "recovery_7.gif", result.Artifact)

	data, err := os.ReadFile(exp.Path(result.Artifact))
	require.NoError(t, err)
	require.Equal(t, make([]byte, 10*bs), data)
}

func TestApplyCopiesExtentsInOrder(t *testing.T) {
	hD, img := blockImage(t, 128)
	exp := exporter.Exporter{Location: t.TempDir()}
	plan := NewPlan(NewJob(0, twoExtents(), bs, "disk.img", 0))

	// small chunks exercise split reads inside one extent
	result, err := Executor{Reader: hD, Exporter: exp, ChunkBlocks: 3}.Apply(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, int64(10*bs), result.BytesCopied)
	require.Zero(t, result.FailedReads)

	want := append(append([]byte{}, img[100*bs:104*bs]...), img[105*bs:111*bs]...)
	data, err := os.ReadFile(exp.Path(result.Artifact))
	require.NoError(t, err)
	require.Equal(t, want, data)
}

func TestApplyBaseOffset(t *testing.T) {
	hD, img := blockImage(t, 16)
	exp := exporter.Exporter{Location: t.TempDir()}
	list := extents.List{Extents: []extents.Extent{{Start: 1, End: 2}}, TotalBlockCount: 2}
	plan := NewPlan(NewJob(0, list, bs, "disk.img", 4*bs))

	result, err := Executor{Reader: hD, Exporter: exp}.Apply(context.Background(), plan)
	require.NoError(t, err)
	data, err := os.ReadFile(exp.Path(result.Artifact))
	require.NoError(t, err)
	require.Equal(t, img[5*bs:7*bs], data)
}

func TestApplyShortReadLeavesZeros(t *testing.T) {
	hD, img := blockImage(t, 8)
	exp := exporter.Exporter{Location: t.TempDir()}
	list := extents.List{
		Extents:         []extents.Extent{{Start: 6, End: 6}, {Start: 50, End: 51}},
		TotalBlockCount: 4,
	}

	result, err := Executor{Reader: hD, Exporter: exp}.Apply(context.Background(), NewPlan(NewJob(0, list, bs, "disk.img", 0)))
	require.NoError(t, err)
	require.Equal(t, 1, result.FailedReads)

	data, err := os.ReadFile(exp.Path(result.Artifact))
	require.NoError(t, err)
	require.Len(t, data, 3*bs)
	require.Equal(t, img[6*bs:7*bs], data[:bs])
	require.Equal(t, make([]byte, 2*bs), data[bs:])
}

func TestRerunGetsNewIdAndConsistentRegions(t *testing.T) {
	var seq Sequencer
	first := NewPlan(NewJob(seq.Next(), twoExtents(), bs, "/dev/sdb", 0))
	second := NewPlan(NewJob(seq.Next(), twoExtents(), bs, "/dev/sdb", 0))

	require.NotEqual(t, first.Job.OutputID, second.Job.OutputID)
	require.NoError(t, first.Validate())
	require.NoError(t, second.Validate())
	require.Equal(t, first.Ops, second.Ops)
}

func TestSequencerConcurrent(t *testing.T) {
	var seq Sequencer
	var mu sync.Mutex
	seen := map[uint32]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := seq.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 64)
	require.Equal(t, uint32(64), seq.Next())
}

func TestWriteScript(t *testing.T) {
	job := NewJob(0, twoExtents(), 4096, "/dev/sdb", 0)
	job.SourceBlock, job.Inode = 100, 12
	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, NewPlan(job), "recovery_0.gif", "session-1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "#!/bin/bash", lines[0])
	require.Contains(t, buf.String(), "session session-1")
	require.Contains(t, lines, `cd "$(dirname "$0")"`)
	require.Equal(t, []string{
		"dd if=/dev/zero of='recovery_0.gif' bs=4096 count=9",
		"dd if='/dev/sdb' of='recovery_0.gif' bs=4096 skip=100 seek=0 count=4 conv=notrunc",
		"dd if='/dev/sdb' of='recovery_0.gif' bs=4096 skip=105 seek=4 count=6 conv=notrunc",
	}, lines[len(lines)-3:])
}

func TestWriteScriptUnalignedBase(t *testing.T) {
	var buf bytes.Buffer
	plan := NewPlan(NewJob(0, twoExtents(), 4096, "/dev/sdb", 512))
	require.NoError(t, WriteScript(&buf, plan, "out.gif", "s"))
	require.Contains(t, buf.String(), "iflag=skip_bytes skip=410112 seek=0 count=4")
}
