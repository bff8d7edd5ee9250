// Package scanner sweeps the blocks of a volume looking for known file
// signatures at the start of each block.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/metrics"
	"github.com/aarsakian/GIFCarver/readers"
)

const SignatureLength = 6

const DefaultWindow = 256

type Signature struct {
	Name  string
	Magic []byte
}

// Signatures are tested in this order, the first match wins.
var Signatures = []Signature{
	{Name: "GIF87a", Magic: []byte("GIF87a")},
	{Name: "GIF89a", Magic: []byte("GIF89a")},
}

type Hit struct {
	Block     uint64
	Signature string
}

type Scanner struct {
	Reader      readers.DiskReader
	BlockSize   uint32
	TotalBlocks uint64
	// BaseOffset is added to every block offset, zero means device absolute.
	BaseOffset int64
	// Workers > 1 reads the blocks of each window concurrently.
	Workers     int
	Window      int
	ReadTimeout time.Duration
	Signatures  []Signature
}

// Match returns the first signature the block starts with.
func Match(block []byte, signatures []Signature) (Signature, bool) {
	for _, signature := range signatures {
		if len(block) >= len(signature.Magic) && bytes.Equal(block[:len(signature.Magic)], signature.Magic) {
			return signature, true
		}
	}
	return Signature{}, false
}

func (s Scanner) signatures() []Signature {
	if len(s.Signatures) == 0 {
		return Signatures
	}
	return s.Signatures
}

func (s Scanner) blockOffset(block uint64) int64 {
	return s.BaseOffset + int64(block)*int64(s.BlockSize)
}

// scanBlock reads one block. A failed or short read skips the block.
func (s Scanner) scanBlock(ctx context.Context, block uint64) (Hit, bool) {
	metrics.BlockScanned()
	data, err := readers.ReadWithTimeout(ctx, s.Reader, s.blockOffset(block), int(s.BlockSize), s.ReadTimeout)
	if err != nil || len(data) != int(s.BlockSize) {
		if ctx.Err() != nil {
			return Hit{}, false
		}
		metrics.ShortRead()
		logger.FSLogger.Warning(fmt.Sprintf("Failed to read block %d: bytesRead = %d %v", block, len(data), err))
		return Hit{}, false
	}
	signature, ok := Match(data, s.signatures())
	if !ok {
		return Hit{}, false
	}
	metrics.SignatureHit(signature.Name)
	return Hit{Block: block, Signature: signature.Name}, true
}

// Scan sends hits in ascending block order and closes hits when it returns.
func (s Scanner) Scan(ctx context.Context, hits chan<- Hit) error {
	defer close(hits)

	if s.BlockSize == 0 {
		return errors.New("block size is zero")
	}

	send := func(hit Hit) error {
		logger.FSLogger.Info(fmt.Sprintf("%s found in block %d", hit.Signature, hit.Block))
		select {
		case hits <- hit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	window := uint64(s.Window)
	if window == 0 {
		window = DefaultWindow
	}
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	p := message.NewPrinter(language.English)
	blocksPerStatus := s.TotalBlocks / 25
	nextStatus := blocksPerStatus

	for start := uint64(0); start < s.TotalBlocks; start += window {
		end := start + window
		if end > s.TotalBlocks {
			end = s.TotalBlocks
		}

		found := make([]*Hit, end-start)
		if workers == 1 {
			for block := start; block < end; block++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if hit, ok := s.scanBlock(ctx, block); ok {
					found[block-start] = &hit
				}
			}
		} else {
			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(workers)
			for block := start; block < end; block++ {
				block := block
				eg.Go(func() error {
					if err := egCtx.Err(); err != nil {
						return err
					}
					if hit, ok := s.scanBlock(egCtx, block); ok {
						found[block-start] = &hit
					}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, hit := range found {
			if hit == nil {
				continue
			}
			if err := send(*hit); err != nil {
				return err
			}
		}

		if blocksPerStatus > 0 && end >= nextStatus {
			logger.FSLogger.Info(p.Sprintf("Scanned block %d/%d (%.02f%%)", end, s.TotalBlocks,
				100.0*float64(end)/float64(s.TotalBlocks)))
			nextStatus = end + blocksPerStatus
		}
	}
	return nil
}

// Collect runs Scan and gathers every hit.
func (s Scanner) Collect(ctx context.Context) ([]Hit, error) {
	hits := make(chan Hit)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Scan(ctx, hits)
	}()

	var collected []Hit
	for hit := range hits {
		collected = append(collected, hit)
	}
	return collected, <-errCh
}
