//go:build linux

package readers

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/aarsakian/GIFCarver/logger"
)

// DeviceReader reads a block device through pread so that concurrent
// readers never share a file offset.
type DeviceReader struct {
	PathToDevice string
	fd           int
}

func newPhysicalReader(pathToDisk string) DiskReader {
	return &DeviceReader{PathToDevice: pathToDisk, fd: -1}
}

// PhysicalDrivePath maps a drive number to its device path.
func PhysicalDrivePath(num int) string {
	return fmt.Sprintf("/dev/sd%c", 'a'+num)
}

func (devreader *DeviceReader) CreateHandler() error {
	fd, err := unix.Open(devreader.PathToDevice, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	devreader.fd = fd
	return nil
}

func (devreader DeviceReader) CloseHandler() {
	if devreader.fd >= 0 {
		unix.Close(devreader.fd)
	}
}

func (devreader DeviceReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	data := make([]byte, length)
	total := 0
	for total < length {
		n, err := unix.Pread(devreader.fd, data[total:], physicalOffset+int64(total))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			logger.FSLogger.Error(fmt.Sprintf("pread offset %d: %v", physicalOffset+int64(total), err))
			return data[:total], errors.Wrap(ErrShortRead, err.Error())
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total < length {
		return data[:total], errors.Wrapf(ErrShortRead, "device offset %d len %d got %d", physicalOffset, length, total)
	}
	return data, nil
}

func (devreader DeviceReader) GetDiskSize() int64 {
	size, err := unix.IoctlGetInt(devreader.fd, unix.BLKGETSIZE64)
	if err == nil {
		return int64(size)
	}
	var st unix.Stat_t
	if err := unix.Fstat(devreader.fd, &st); err != nil {
		return -1
	}
	return st.Size
}
