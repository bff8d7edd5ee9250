package volume

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/readers"
	"github.com/aarsakian/GIFCarver/utils"
)

const OFFSET_TO_EXT_SUPERBLOCK = 1024 // from partition start

const SUPERBLOCK_READ_SIZE = 4096

const (
	BLOCK_SIZE_OFFSET       = 24
	TOTAL_BLOCKS_OFFSET     = 32
	BLOCKS_PER_GROUP_OFFSET = 40
	MAGIC_OFFSET            = 56
	NUM_GROUPS_OFFSET       = 64
	TOTAL_INODES_OFFSET     = 0x54
	INODES_PER_GROUP_OFFSET = 0x68
)

const EXT_MAGIC = 0xEF53

// largest exponent for which 1024 << exp still fits 32 bits
const maxBlockSizeExponent = 21

var ErrInvalidGeometry = errors.New("invalid filesystem geometry")

type EXT struct {
	Superblock       *Superblock
	PartitionOffsetB int64
}

// Superblock holds the fields read at fixed offsets. Only LogBlockSize and
// TotalBlocks drive the scan; the group/inode fields are informational.
type Superblock struct {
	LogBlockSize   uint8  //24
	TotalBlocks    uint32 //32
	BlocksPerGroup uint32 //40
	Magic          uint16 //56
	NumGroups      uint32 //64
	TotalInodes    uint32 //0x54
	InodesPerGroup uint32 //0x68
}

// BlockSizeFor returns 1024 << exp.
func BlockSizeFor(exp uint8) (uint32, error) {
	if exp > maxBlockSizeExponent {
		return 0, errors.Wrapf(ErrInvalidGeometry, "block size exponent %d", exp)
	}
	return uint32(1024) << exp, nil
}

// ReadGeometry reads the superblock of the partition starting at
// partitionOffsetB. The filesystem magic is not checked.
func ReadGeometry(hD readers.DiskReader, partitionOffsetB int64) (*EXT, error) {
	data, err := hD.ReadFile(partitionOffsetB+OFFSET_TO_EXT_SUPERBLOCK, SUPERBLOCK_READ_SIZE)
	if err == nil && len(data) < SUPERBLOCK_READ_SIZE {
		err = readers.ErrShortRead
	}
	if err != nil {
		return nil, errors.Wrapf(err, "superblock at %d", partitionOffsetB+OFFSET_TO_EXT_SUPERBLOCK)
	}

	ext := &EXT{PartitionOffsetB: partitionOffsetB}
	if err := ext.ParseSuperblock(data); err != nil {
		return nil, err
	}
	return ext, nil
}

func (ext *EXT) ParseSuperblock(data []byte) error {

	logger.FSLogger.Info("Parsing superblock")
	if len(data) < INODES_PER_GROUP_OFFSET+4 {
		return errors.Wrapf(readers.ErrShortRead, "superblock needs %d bytes got %d", INODES_PER_GROUP_OFFSET+4, len(data))
	}
	superblock := &Superblock{
		LogBlockSize:   data[BLOCK_SIZE_OFFSET],
		TotalBlocks:    utils.ReadEndianUInt32(data[TOTAL_BLOCKS_OFFSET:]),
		BlocksPerGroup: utils.ReadEndianUInt32(data[BLOCKS_PER_GROUP_OFFSET:]),
		Magic:          binary.LittleEndian.Uint16(data[MAGIC_OFFSET:]),
		NumGroups:      utils.ReadEndianUInt32(data[NUM_GROUPS_OFFSET:]),
		TotalInodes:    utils.ReadEndianUInt32(data[TOTAL_INODES_OFFSET:]),
		InodesPerGroup: utils.ReadEndianUInt32(data[INODES_PER_GROUP_OFFSET:]),
	}
	if _, err := BlockSizeFor(superblock.LogBlockSize); err != nil {
		return err
	}
	ext.Superblock = superblock
	return nil
}

func (ext EXT) GetBlockSize() uint32 {
	blockSize, _ := BlockSizeFor(ext.Superblock.LogBlockSize)
	return blockSize
}

func (ext EXT) GetTotalBlocks() uint32 {
	return ext.Superblock.TotalBlocks
}

func (ext EXT) GetGeometry() Geometry {
	return Geometry{BlockSize: ext.GetBlockSize(), TotalBlocks: ext.GetTotalBlocks()}
}

func (ext EXT) HasValidSignature() bool {
	return ext.Superblock.Magic == EXT_MAGIC
}

func (ext EXT) GetSignature() string {
	if ext.HasValidSignature() {
		return "ext"
	}
	return fmt.Sprintf("unknown (magic 0x%04x)", ext.Superblock.Magic)
}

func (ext EXT) GetInfo() string {
	return fmt.Sprintf("%s block size %d total blocks %d (blocks/group %d inodes %d)",
		ext.GetSignature(), ext.GetBlockSize(), ext.GetTotalBlocks(),
		ext.Superblock.BlocksPerGroup, ext.Superblock.TotalInodes)
}
