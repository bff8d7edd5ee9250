package volume

// Geometry is the block layout a signature sweep needs.
type Geometry struct {
	BlockSize   uint32
	TotalBlocks uint32
}

type Volume interface {
	GetGeometry() Geometry
	GetBlockSize() uint32
	GetTotalBlocks() uint32
	GetInfo() string
	GetSignature() string
	HasValidSignature() bool
}
