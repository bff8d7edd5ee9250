package disk

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	mbrLib "github.com/aarsakian/GIFCarver/disk/partition/MBR"
	"github.com/aarsakian/GIFCarver/disk/volume"
	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/readers"
)

var ErrNoEvidence = errors.New("no evidence file or physical drive given")

type Partition interface {
	GetOffset() uint64
	GetOffsetB() int64
	IsEmpty() bool
	LocateVolume(readers.DiskReader) error
	GetVolume() volume.Volume
	GetInfo() string
	GetVolInfo() string
}

type Disk struct {
	MBR        *mbrLib.MBR
	Handler    readers.DiskReader
	Partitions []Partition
	// Device is the path scripts and debugfs refer to.
	Device string
}

func (disk *Disk) Initialize(evidencefile string, physicaldrive int) error {
	var (
		hD  readers.DiskReader
		err error
	)
	if evidencefile != "" {
		disk.Device = evidencefile
		hD, err = readers.GetHandler(evidencefile, readers.DetectMode(evidencefile))
	} else if physicaldrive != -1 {
		disk.Device = readers.PhysicalDrivePath(physicaldrive)
		hD, err = readers.GetHandler(disk.Device, "physicalDrive")
	} else {
		return ErrNoEvidence
	}
	if err != nil {
		return err
	}
	disk.Handler = hD
	msg := "Opened %s size %d bytes"
	logger.FSLogger.Info(fmt.Sprintf(msg, disk.Device, hD.GetDiskSize()))
	return nil
}

func (disk Disk) Close() {
	if disk.Handler != nil {
		disk.Handler.CloseHandler()
	}
}

func (disk Disk) hasProtectiveMBR() bool {
	return disk.MBR.IsProtective()
}

func (disk *Disk) populateMBR() error {
	var mbr mbrLib.MBR
	physicalOffset := int64(0)
	length := mbrLib.SIZE_OF_MBR // MBR always at first sector

	data, err := disk.Handler.ReadFile(physicalOffset, length)
	if err != nil {
		return errors.Wrap(err, "boot sector")
	}

	if err := mbr.Parse(data); err != nil {
		return err
	}
	disk.MBR = &mbr
	if !mbr.HasValidSignature() {
		logger.FSLogger.Warning(fmt.Sprintf("boot signature %x is not 55aa, using the table anyway", mbr.Signature))
	}
	return nil
}

// DiscoverPartitions reads the four primary slots. A failed boot sector
// read aborts the disk.
func (disk *Disk) DiscoverPartitions() error {

	err := disk.populateMBR()
	if err != nil {
		return err
	}
	if disk.hasProtectiveMBR() {
		logger.FSLogger.Warning("protective MBR found, GPT entries are not followed")
	}
	if disk.MBR.IsBlank() {
		disk.populatePseudoMBR()
	}
	disk.Partitions = disk.Partitions[:0]
	for idx := range disk.MBR.Partitions {
		disk.Partitions = append(disk.Partitions, &disk.MBR.Partitions[idx])
	}
	return nil
}

// populatePseudoMBR keeps a blank table unless an ext superblock sits at
// the start of the device, in which case the whole device is one partition.
func (disk *Disk) populatePseudoMBR() {
	ext, err := volume.ReadGeometry(disk.Handler, 0)
	if err != nil || !ext.HasValidSignature() {
		return
	}
	sizeB := uint64(ext.GetTotalBlocks()) * uint64(ext.GetBlockSize())
	disk.MBR.PopulatePseudoMBR(uint32(sizeB / mbrLib.SECTOR_SIZE))
	msg := "no partition table, ext volume of %d blocks found at sector 0"
	fmt.Printf(msg+"\n", ext.GetTotalBlocks())
	logger.FSLogger.Warning(fmt.Sprintf(msg, ext.GetTotalBlocks()))
}

// ProcessPartitions locates the volume of the selected partition indexes,
// an empty selection means all. Empty slots are skipped unless scanEmpty is
// set. It returns the indexes whose geometry was read.
func (disk *Disk) ProcessPartitions(selected []int, scanEmpty bool) []int {
	var located []int
	for idx := range disk.Partitions {
		if len(selected) != 0 && !slices.Contains(selected, idx) {
			continue
		}
		if disk.Partitions[idx].IsEmpty() && !scanEmpty {
			logger.FSLogger.Info(fmt.Sprintf("Partition %d is empty, skipped", idx+1))
			continue
		}
		err := disk.Partitions[idx].LocateVolume(disk.Handler)
		if err != nil {
			msg := "No volume at partition %d: %v"
			logger.FSLogger.Error(fmt.Sprintf(msg, idx+1, err))
			continue
		}

		parttionOffset := disk.Partitions[idx].GetOffset()
		vol := disk.Partitions[idx].GetVolume()
		msg := "Partition %d  %s at %d sector"
		fmt.Printf(msg+"\n", idx+1, vol.GetSignature(), parttionOffset)
		logger.FSLogger.Info(fmt.Sprintf(msg, idx+1, vol.GetSignature(), parttionOffset))
		located = append(located, idx)
	}
	return located
}

func (disk Disk) ShowVolumeInfo() {
	for idx, partition := range disk.Partitions {
		if partition.GetVolume() == nil {
			continue
		}
		fmt.Printf("Partition %d %s\n", idx+1, partition.GetVolInfo())
	}
}

func (disk Disk) ListPartitions() {
	if disk.MBR == nil {
		return
	}
	if disk.MBR.Pseudo {
		fmt.Printf("No MBR, volume at sector 0:\n")
	} else if disk.hasProtectiveMBR() {
		fmt.Printf("MBR (protective):\n")
	} else {
		fmt.Printf("MBR:\n")
	}

	for idx, partition := range disk.Partitions {
		//show only non zero partition entries
		if partition.IsEmpty() {
			continue
		}
		fmt.Printf("%d%s\n", idx+1, partition.GetInfo())
	}

}
