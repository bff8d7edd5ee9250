package readers

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/logger"
)

type RawReader struct {
	PathToEvidenceFiles string
	fd                  *os.File
}

func (imgreader *RawReader) CreateHandler() error {
	file, err := os.Open(imgreader.PathToEvidenceFiles)
	if err != nil {
		return err
	}
	imgreader.fd = file
	return nil
}

func (imgreader RawReader) CloseHandler() {
	if imgreader.fd != nil {
		imgreader.fd.Close()
	}
}

func (imgreader RawReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {

	data := make([]byte, length)
	n, err := imgreader.fd.ReadAt(data, physicalOffset)
	if n < length {
		msg := fmt.Sprintf("raw read: offset %d len %d got %d", physicalOffset, length, n)
		logger.FSLogger.Warning(msg)
		if err == nil {
			err = ErrShortRead
		}
		return data[:n], errors.Wrap(ErrShortRead, err.Error())
	}
	return data, nil

}

func (imgreader RawReader) GetDiskSize() int64 {
	finfo, err := os.Stat(imgreader.PathToEvidenceFiles)
	if err != nil {
		return -1
	}
	return finfo.Size()
}
