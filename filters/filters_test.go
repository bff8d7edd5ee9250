package filters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aarsakian/GIFCarver/scanner"
)

var hits = []scanner.Hit{
	{Block: 5, Signature: "GIF87a"},
	{Block: 37, Signature: "GIF89a"},
	{Block: 120, Signature: "GIF89a"},
}

func accepted(f Filter) []scanner.Hit {
	var kept []scanner.Hit
	for _, hit := range hits {
		if f.Accept(hit) {
			kept = append(kept, hit)
		}
	}
	return kept
}

func TestBlockRangeFilter(t *testing.T) {
	require.Equal(t, hits[1:], accepted(BlockRangeFilter{From: 10}))
	require.Equal(t, hits[:2], accepted(BlockRangeFilter{To: 37}))
	require.Equal(t, hits, accepted(BlockRangeFilter{}))
}

func TestFilterManager(t *testing.T) {
	flm := &FilterManager{}
	require.Equal(t, hits, accepted(flm))

	flm.Register(SignatureFilter{Signatures: []string{"GIF89a"}})
	flm.Register(BlockRangeFilter{To: 100})

	require.Equal(t, []scanner.Hit{{Block: 37, Signature: "GIF89a"}}, accepted(flm))
	require.False(t, flm.Accept(hits[0]))
	require.True(t, flm.Accept(hits[1]))
	require.False(t, flm.Accept(hits[2]))
}
