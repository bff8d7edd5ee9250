package readers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func makeImage(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRawReader(t *testing.T) {
	path := makeImage(t, 4096)
	hD, err := GetHandler(path, "raw")
	require.NoError(t, err)
	defer hD.CloseHandler()

	require.Equal(t, int64(4096), hD.GetDiskSize())

	data, err := hD.ReadFile(10, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{10, 11, 12, 13}, data)

	data, err = hD.ReadFile(4090, 16)
	require.True(t, errors.Is(err, ErrShortRead))
	require.Len(t, data, 6)
}

func TestConcurrentPositionalReads(t *testing.T) {
	const size = 64 * 1024
	path := makeImage(t, size)

	for _, mode := range []string{"raw", "device"} {
		hD, err := GetHandler(path, mode)
		require.NoError(t, err)

		var eg errgroup.Group
		for worker := 0; worker < 8; worker++ {
			worker := worker
			eg.Go(func() error {
				for i := 0; i < 200; i++ {
					offset := int64((worker*997 + i*131) % (size - 512))
					data, err := hD.ReadFile(offset, 512)
					if err != nil {
						return err
					}
					for j, b := range data {
						if b != byte(offset+int64(j)) {
							return errors.Errorf("%s: offset %d byte %d is %d", mode, offset, j, b)
						}
					}
				}
				return nil
			})
		}
		require.NoError(t, eg.Wait())
		hD.CloseHandler()
	}
}

func TestGetHandlerErrors(t *testing.T) {
	_, err := GetHandler(filepath.Join(t.TempDir(), "missing.img"), "raw")
	require.Error(t, err)

	_, err = GetHandler("x", "floppy")
	require.Error(t, err)
}

func TestDetectMode(t *testing.T) {
	require.Equal(t, "ewf", DetectMode("/evidence/case.E01"))
	require.Equal(t, "raw", DetectMode(makeImage(t, 16)))
}

type slowReader struct {
	RawReader
	delay time.Duration
}

func (r slowReader) ReadFile(int64, int) ([]byte, error) {
	time.Sleep(r.delay)
	return []byte{1}, nil
}

func TestReadWithTimeout(t *testing.T) {
	ctx := context.Background()

	_, err := ReadWithTimeout(ctx, &slowReader{delay: 200 * time.Millisecond}, 0, 1, 10*time.Millisecond)
	require.True(t, errors.Is(err, ErrReadTimeout))

	data, err := ReadWithTimeout(ctx, &slowReader{}, 0, 1, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, data)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ReadWithTimeout(cancelled, &slowReader{}, 0, 1, 0)
	require.ErrorIs(t, err, context.Canceled)
}
