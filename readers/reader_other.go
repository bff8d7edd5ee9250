//go:build !linux && !windows

package readers

import "fmt"

func newPhysicalReader(pathToDisk string) DiskReader {
	return &RawReader{PathToEvidenceFiles: pathToDisk}
}

func PhysicalDrivePath(num int) string {
	return fmt.Sprintf("/dev/disk%d", num)
}
