//go:build windows

package readers

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/aarsakian/GIFCarver/logger"
)

type DISK_GEOMETRY struct {
	Cylinders         int64
	MediaType         int32
	TracksPerCylinder int32
	SectorsPerTrack   int32
	BytesPerSector    int32
}

type WindowsReader struct {
	a_file string
	fd     windows.Handle
}

func newPhysicalReader(pathToDisk string) DiskReader {
	return &WindowsReader{a_file: pathToDisk}
}

// PhysicalDrivePath maps a drive number to its device path.
func PhysicalDrivePath(num int) string {
	return fmt.Sprintf("\\\\.\\PHYSICALDRIVE%d", num)
}

func (winreader *WindowsReader) CreateHandler() error {
	file_ptr, err := windows.UTF16PtrFromString(winreader.a_file)
	if err != nil {
		return err
	}
	var templateHandle windows.Handle
	fd, err := windows.CreateFile(file_ptr, windows.GENERIC_READ,
		windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, windows.FILE_FLAG_SEQUENTIAL_SCAN, templateHandle)
	if err != nil {
		return err
	}
	winreader.fd = fd
	return nil
}

func (winreader WindowsReader) CloseHandler() {
	windows.Close(winreader.fd)
}

func (winreader WindowsReader) GetDiskSize() int64 {
	const IOCTL_DISK_GET_DRIVE_GEOMETRY = 0x70000
	const nByte_DISK_GEOMETRY = 24
	disk_geometry := DISK_GEOMETRY{}

	var returned uint32
	var inBuffer *byte
	err := windows.DeviceIoControl(winreader.fd, IOCTL_DISK_GET_DRIVE_GEOMETRY,
		inBuffer, 0, (*byte)(unsafe.Pointer(&disk_geometry)), nByte_DISK_GEOMETRY, &returned, nil)
	if err != nil {
		logger.FSLogger.Error(fmt.Sprintf("drive geometry: %v", err))
		return -1
	}

	return disk_geometry.Cylinders * int64(disk_geometry.TracksPerCylinder) *
		int64(disk_geometry.SectorsPerTrack) * int64(disk_geometry.BytesPerSector)
}

// ReadFile reads at startOffset through an OVERLAPPED offset, so no file
// pointer is shared between concurrent callers.
func (winreader WindowsReader) ReadFile(startOffset int64, totalSize int) ([]byte, error) {
	buffer := make([]byte, totalSize)
	total := 0

	for total < totalSize {
		offset := startOffset + int64(total)
		overlapped := windows.Overlapped{Offset: uint32(offset), OffsetHigh: uint32(offset >> 32)}
		var bytesRead uint32
		err := windows.ReadFile(winreader.fd, buffer[total:], &bytesRead, &overlapped)
		if errors.Is(err, windows.ERROR_HANDLE_EOF) {
			break
		}
		if err != nil {
			logger.FSLogger.Error(fmt.Sprintf("Read failed at offset %d: %v", offset, err))
			return buffer[:total], errors.Wrap(ErrShortRead, err.Error())
		}
		if bytesRead == 0 {
			break
		}
		total += int(bytesRead)
	}
	if total < totalSize {
		return buffer[:total], errors.Wrapf(ErrShortRead, "offset %d len %d got %d", startOffset, totalSize, total)
	}
	return buffer, nil

}
