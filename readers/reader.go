package readers

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrShortRead is returned when fewer bytes than requested could be read.
var ErrShortRead = errors.New("short read")

var ErrReadTimeout = errors.New("read timed out")

type DiskReader interface {
	CreateHandler() error
	CloseHandler()
	ReadFile(int64, int) ([]byte, error)
	GetDiskSize() int64
}

func GetHandler(pathToDisk string, mode string) (DiskReader, error) {

	var dr DiskReader
	switch mode {
	case "physicalDrive", "device":
		dr = newPhysicalReader(pathToDisk)
	case "ewf":
		dr = &EWFReader{PathToEvidenceFiles: pathToDisk}
	case "raw":
		dr = &RawReader{PathToEvidenceFiles: pathToDisk}
	default:
		return nil, errors.Errorf("unknown reader mode %q", mode)
	}
	if err := dr.CreateHandler(); err != nil {
		return nil, errors.Wrapf(err, "open %s", pathToDisk)
	}

	return dr, nil
}

// DetectMode picks the reader for an evidence path: EWF by extension,
// block or character devices by file mode, raw image otherwise.
func DetectMode(evidencefile string) string {
	if strings.ToLower(path.Ext(evidencefile)) == ".e01" {
		return "ewf"
	}
	finfo, err := os.Stat(evidencefile)
	if err == nil && finfo.Mode()&os.ModeDevice != 0 {
		return "device"
	}
	return "raw"
}

// ReadWithTimeout bounds a single device read. A timeout of zero only
// honours ctx. The reader goroutine is left to finish on its own.
func ReadWithTimeout(ctx context.Context, hD DiskReader, offset int64, length int, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return hD.ReadFile(offset, length)
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := hD.ReadFile(offset, length)
		done <- result{data, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.data, res.err
	case <-timer.C:
		return nil, errors.Wrapf(ErrReadTimeout, "offset %d len %d", offset, length)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
