package filters

import (
	"github.com/aarsakian/GIFCarver/scanner"
)

type Filter interface {
	Accept(hit scanner.Hit) bool
}

// BlockRangeFilter keeps hits in [From, To], To zero means no upper bound.
type BlockRangeFilter struct {
	From uint64
	To   uint64
}

func (rangeFilter BlockRangeFilter) Accept(hit scanner.Hit) bool {
	if hit.Block < rangeFilter.From {
		return false
	}
	return rangeFilter.To == 0 || hit.Block <= rangeFilter.To
}

type SignatureFilter struct {
	Signatures []string
}

func (signatureFilter SignatureFilter) Accept(hit scanner.Hit) bool {
	for _, signature := range signatureFilter.Signatures {
		if hit.Signature == signature {
			return true
		}
	}
	return false
}

type FilterManager struct {
	filters []Filter
}

func (flm *FilterManager) Register(f Filter) {
	flm.filters = append(flm.filters, f)
}

// Accept reports whether every registered filter keeps the hit.
func (flm FilterManager) Accept(hit scanner.Hit) bool {
	for _, f := range flm.filters {
		if !f.Accept(hit) {
			return false
		}
	}
	return true
}
