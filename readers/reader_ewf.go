package readers

import (
	"path"
	"strings"
	"sync"

	ewfLib "github.com/aarsakian/EWF_Reader/ewf"
	ewfutils "github.com/aarsakian/EWF_Reader/ewf/utils"
	"github.com/pkg/errors"
)

// EWFReader serializes reads, the image keeps chunk state between them.
type EWFReader struct {
	PathToEvidenceFiles string
	fd                  ewfLib.EWF_Image
	mu                  sync.Mutex
}

func (imgreader *EWFReader) CreateHandler() error {
	extension := path.Ext(imgreader.PathToEvidenceFiles)
	if strings.ToLower(extension) != ".e01" {
		return errors.Errorf("%s is not an E01 segment", imgreader.PathToEvidenceFiles)
	}
	var ewf_image ewfLib.EWF_Image
	filenames := ewfutils.FindEvidenceFiles(imgreader.PathToEvidenceFiles)

	ewf_image.ParseEvidence(filenames)

	imgreader.fd = ewf_image
	return nil
}

func (imgreader *EWFReader) CloseHandler() {

}

func (imgreader *EWFReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	imgreader.mu.Lock()
	defer imgreader.mu.Unlock()
	if physicalOffset+int64(length) > imgreader.GetDiskSize() {
		return nil, errors.Wrapf(ErrShortRead, "ewf offset %d len %d beyond media", physicalOffset, length)
	}
	data := imgreader.fd.RetrieveData(physicalOffset, int64(length))
	if len(data) < length {
		return data, errors.Wrapf(ErrShortRead, "ewf offset %d len %d got %d", physicalOffset, length, len(data))
	}
	return data[:length], nil
}

func (imgreader *EWFReader) GetDiskSize() int64 {
	return int64(imgreader.fd.Chunksize) * int64(imgreader.fd.NofChunks)
}
