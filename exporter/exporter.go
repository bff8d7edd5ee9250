package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/utils"
)

const zeroChunk = 1024 * 1024

// ErrAllocation is returned when an output artifact cannot be allocated.
var ErrAllocation = errors.New("cannot allocate output")

type Exporter struct {
	Location string
	Hash     string
}

func (exp Exporter) ArtifactName(id uint32) string {
	return fmt.Sprintf("recovery_%d.gif", id)
}

func (exp Exporter) ScriptName(id uint32) string {
	return fmt.Sprintf("recovery_%d.sh", id)
}

func (exp Exporter) Path(fname string) string {
	return filepath.Join(exp.Location, fname)
}

func (exp Exporter) prepare(fname string) (string, error) {
	fullpath := exp.Path(fname)
	err := os.MkdirAll(exp.Location, 0750)
	if err != nil && !os.IsExist(err) {
		return "", err
	}
	if _, err = os.Stat(fullpath); !errors.Is(err, os.ErrNotExist) {
		err = os.Remove(fullpath)
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return fullpath, nil
}

// CreateFile writes data to fname, replacing an existing file.
func (exp Exporter) CreateFile(fname string, data []byte, perm os.FileMode) error {
	fullpath, err := exp.prepare(fname)
	if err != nil {
		return err
	}
	return os.WriteFile(fullpath, data, perm)
}

// CreateZeroFilled creates fname holding size zero bytes and returns it
// open for positioned writes.
func (exp Exporter) CreateZeroFilled(fname string, size int64) (*os.File, error) {
	fullpath, err := exp.prepare(fname)
	if err != nil {
		return nil, errors.Wrap(ErrAllocation, err.Error())
	}
	file, err := os.OpenFile(fullpath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0640)
	if err != nil {
		return nil, errors.Wrap(ErrAllocation, err.Error())
	}

	zeros := make([]byte, zeroChunk)
	for written := int64(0); written < size; {
		n := int64(len(zeros))
		if size-written < n {
			n = size - written
		}
		if _, err := file.Write(zeros[:n]); err != nil {
			file.Close()
			return nil, errors.Wrapf(ErrAllocation, "zero fill %s at %d: %v", fullpath, written, err)
		}
		written += n
	}
	logger.FSLogger.Info(fmt.Sprintf("allocated %s with %d zero bytes", fullpath, size))
	return file, nil
}

// HashFile returns the MD5 or SHA1 of an exported file.
func (exp Exporter) HashFile(fname string) (string, error) {

	if exp.Hash != "MD5" && exp.Hash != "SHA1" {
		return "", errors.Errorf("only supported hashes are MD5 or SHA1 and not %s", exp.Hash)
	}
	data, err := os.ReadFile(exp.Path(fname))
	if err != nil {
		return "", err
	}
	if exp.Hash == "MD5" {
		return utils.GetMD5(data), nil
	}
	return utils.GetSHA1(data), nil

}
