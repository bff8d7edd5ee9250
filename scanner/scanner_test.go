package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/aarsakian/GIFCarver/readers"
)

const testBlockSize = 4096

func openImage(t *testing.T, data []byte) readers.DiskReader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, data, 0644))
	hD, err := readers.GetHandler(path, "raw")
	require.NoError(t, err)
	t.Cleanup(hD.CloseHandler)
	return hD
}

func TestMatchOrder(t *testing.T) {
	sig, ok := Match([]byte("GIF87a......"), Signatures)
	require.True(t, ok)
	require.Equal(t, "GIF87a", sig.Name)

	sig, ok = Match([]byte("GIF89a"), Signatures)
	require.True(t, ok)
	require.Equal(t, "GIF89a", sig.Name)

	_, ok = Match([]byte("GIF88a"), Signatures)
	require.False(t, ok)
	_, ok = Match([]byte("GIF"), Signatures)
	require.False(t, ok)
}

func TestScanSingleHitAtBlock37(t *testing.T) {
	img := make([]byte, 64*testBlockSize)
	copy(img[37*testBlockSize:], "GIF89a")
	// mid-block signatures are not reported
	copy(img[40*testBlockSize+100:], "GIF87a")
	hD := openImage(t, img)

	for _, workers := range []int{1, 4} {
		s := Scanner{Reader: hD, BlockSize: testBlockSize, TotalBlocks: 64, Workers: workers, Window: 8}
		hits, err := s.Collect(context.Background())
		require.NoError(t, err)
		require.Equal(t, []Hit{{Block: 37, Signature: "GIF89a"}}, hits)
	}
}

func TestScanOrderedHitsWithWorkers(t *testing.T) {
	img := make([]byte, 100*testBlockSize)
	expected := []Hit{}
	for _, block := range []uint64{0, 3, 17, 18, 63, 99} {
		sig := "GIF87a"
		if block%2 == 1 {
			sig = "GIF89a"
		}
		copy(img[block*testBlockSize:], sig)
		expected = append(expected, Hit{Block: block, Signature: sig})
	}
	hD := openImage(t, img)

	s := Scanner{Reader: hD, BlockSize: testBlockSize, TotalBlocks: 100, Workers: 8, Window: 16}
	hits, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, expected, hits)
}

func TestScanSkipsShortBlocks(t *testing.T) {
	// the last block is truncated, the sweep must not stop on it
	img := make([]byte, 4*testBlockSize+10)
	copy(img[2*testBlockSize:], "GIF87a")
	copy(img[4*testBlockSize:], "GIF89a")
	hD := openImage(t, img)

	s := Scanner{Reader: hD, BlockSize: testBlockSize, TotalBlocks: 8}
	hits, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Hit{{Block: 2, Signature: "GIF87a"}}, hits)
}

func TestScanBaseOffset(t *testing.T) {
	base := int64(1024 * 512)
	img := make([]byte, base+8*1024)
	copy(img[base+5*1024:], "GIF89a")
	hD := openImage(t, img)

	s := Scanner{Reader: hD, BlockSize: 1024, TotalBlocks: 8, BaseOffset: base}
	hits, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Hit{{Block: 5, Signature: "GIF89a"}}, hits)
}

func TestScanCancelled(t *testing.T) {
	hD := openImage(t, make([]byte, 16*testBlockSize))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := Scanner{Reader: hD, BlockSize: testBlockSize, TotalBlocks: 16, Workers: 2}
	_, err := s.Collect(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestScanZeroBlockSize(t *testing.T) {
	hits := make(chan Hit)
	err := Scanner{Reader: openImage(t, make([]byte, testBlockSize)), TotalBlocks: 1}.Scan(context.Background(), hits)
	require.EqualError(t, err, "block size is zero")
	require.Contains(t, fmt.Sprintf("%+v", err), "scanner.Scanner.Scan")
	_, open := <-hits
	require.False(t, open)
}
