package MBR

import (
	"fmt"

	"github.com/pkg/errors"

	volume "github.com/aarsakian/GIFCarver/disk/volume"
	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/readers"
	"github.com/aarsakian/GIFCarver/utils"
)

const (
	SIZE_OF_MBR           = 512
	START_PARTITION_DATA  = 446
	PARTITION_ENTRY_SIZE  = 16
	NOF_PARTITION_ENTRIES = 4
	SECTOR_SIZE           = 512
)

var PartitionTypes = map[uint8]string{
	0x00: "Empty",
	0x07: "HPFS/NTFS/exFAT",
	0x0c: "W95 FAT32 (LBA)",
	0x0f: "Extended",
	0x27: "Hidden NTFS Win",
	0x82: "Linux swap",
	0x83: "Linux",
	0x8e: "Linux LVM",
	0xee: "GPT protective"}

type MBR struct {
	BootCode   [446]byte //0-445
	Partitions []Partition
	Signature  [2]byte //510-511
	// Pseudo is set when the table was built for a volume at sector 0.
	Pseudo bool
}

type partitionRecord struct {
	Flag     uint8
	StartCHS [3]byte
	Type     uint8
	EndCHS   [3]byte
	StartLBA uint32
	Size     uint32
}

// Partition is one 16 byte record of the table, LBA fields at 8 and 12.
type Partition struct {
	Flag     uint8
	StartCHS [3]byte
	Type     uint8
	EndCHS   [3]byte
	StartLBA uint32
	Size     uint32 //sectors
	Volume   volume.Volume
}

func (partition Partition) GetOffset() uint64 {
	return uint64(partition.StartLBA)
}

// GetOffsetB is the partition start in bytes from the start of the device.
func (partition Partition) GetOffsetB() int64 {
	return int64(partition.StartLBA) * SECTOR_SIZE
}

func (partition Partition) GetPartitionType() string {
	name, ok := PartitionTypes[partition.Type]
	if !ok {
		return fmt.Sprintf("type 0x%02x", partition.Type)
	}
	return name
}

func (partition Partition) IsEmpty() bool {
	return partition.StartLBA == 0 && partition.Size == 0
}

// LocateVolume reads the superblock of the partition. Neither the partition
// type nor the filesystem magic decides whether the volume is used.
func (partition *Partition) LocateVolume(hD readers.DiskReader) error {

	partitionOffsetB := partition.GetOffsetB()
	msg := "Reading superblock at offset %d"
	logger.FSLogger.Info(fmt.Sprintf(msg, partitionOffsetB))

	ext, err := volume.ReadGeometry(hD, partitionOffsetB)
	if err != nil {
		return err
	}
	if !ext.HasValidSignature() {
		logger.FSLogger.Warning(fmt.Sprintf("no ext magic at partition offset %d, geometry is best effort", partitionOffsetB))
	}
	partition.Volume = ext
	return nil

}

func (partiton Partition) GetVolume() volume.Volume {
	return partiton.Volume
}

func (partition Partition) GetInfo() string {
	return fmt.Sprintf(" %s at %d size %d sectors", partition.GetPartitionType(), partition.GetOffset(), partition.Size)

}

func (partition Partition) GetVolInfo() string {
	if partition.Volume == nil {
		return ""
	}
	return partition.Volume.GetInfo()
}

func (mbr MBR) IsProtective() bool {
	return len(mbr.Partitions) > 0 && mbr.Partitions[0].Type == 0xEE // 1st partition flag
}

func (mbr MBR) HasValidSignature() bool {
	return utils.Hexify(mbr.Signature[:]) == "55aa"
}

// IsBlank reports whether every slot of the table is empty.
func (mbr MBR) IsBlank() bool {
	for _, partition := range mbr.Partitions {
		if !partition.IsEmpty() {
			return false
		}
	}
	return true
}

// PopulatePseudoMBR replaces the table with one Linux partition covering
// sizeSectors from sector 0.
func (mbr *MBR) PopulatePseudoMBR(sizeSectors uint32) {
	mbr.Partitions = []Partition{{Type: 0x83, StartLBA: 0, Size: sizeSectors}}
	mbr.Pseudo = true
}

// LocatePartitions returns every slot of the table, used or not.
func LocatePartitions(data []byte) ([]Partition, error) {
	if len(data) < NOF_PARTITION_ENTRIES*PARTITION_ENTRY_SIZE {
		return nil, errors.Wrapf(readers.ErrShortRead, "partition table needs %d bytes got %d",
			NOF_PARTITION_ENTRIES*PARTITION_ENTRY_SIZE, len(data))
	}
	partitions := make([]Partition, 0, NOF_PARTITION_ENTRIES)
	for idx := 0; idx < NOF_PARTITION_ENTRIES; idx++ {
		pos := idx * PARTITION_ENTRY_SIZE
		var record partitionRecord
		if err := utils.Unmarshal(data[pos:pos+PARTITION_ENTRY_SIZE], &record); err != nil {
			return nil, errors.Wrapf(err, "partition entry %d", idx+1)
		}
		partitions = append(partitions, Partition{
			Flag:     record.Flag,
			StartCHS: record.StartCHS,
			Type:     record.Type,
			EndCHS:   record.EndCHS,
			StartLBA: record.StartLBA,
			Size:     record.Size,
		})
	}

	return partitions, nil
}

func (mbr *MBR) Parse(buffer []byte) error {
	if len(buffer) < SIZE_OF_MBR {
		return errors.Wrapf(readers.ErrShortRead, "boot sector needs %d bytes got %d", SIZE_OF_MBR, len(buffer))
	}

	copy(mbr.BootCode[:], buffer[:START_PARTITION_DATA])
	partitions, err := LocatePartitions(buffer[START_PARTITION_DATA:510])
	if err != nil {
		return err
	}
	mbr.Partitions = partitions
	copy(mbr.Signature[:], buffer[510:512])
	return nil

}

// ParsePartitionTable decodes the four primary slots of a boot sector.
func ParsePartitionTable(buffer []byte) ([NOF_PARTITION_ENTRIES]Partition, error) {
	var table [NOF_PARTITION_ENTRIES]Partition
	var mbr MBR
	if err := mbr.Parse(buffer); err != nil {
		return table, err
	}
	copy(table[:], mbr.Partitions)
	return table, nil
}
