// Package recovery drives the carve of every selected partition: sweep the
// blocks for signatures, resolve the owning inode of each hit, then plan,
// script and copy its blocks into an output artifact.
package recovery

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/aarsakian/GIFCarver/carver"
	"github.com/aarsakian/GIFCarver/disk"
	"github.com/aarsakian/GIFCarver/disk/volume"
	"github.com/aarsakian/GIFCarver/exporter"
	"github.com/aarsakian/GIFCarver/filters"
	"github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/metrics"
	"github.com/aarsakian/GIFCarver/readers"
	"github.com/aarsakian/GIFCarver/resolver"
	"github.com/aarsakian/GIFCarver/scanner"
)

type Recovered struct {
	Partition   int
	Hit         scanner.Hit
	Inode       uint64
	OutputID    uint32
	Artifact    string
	Script      string
	TotalBlocks int64
	Duplicates  int
	BytesCopied int64
	FailedReads int
	Hash        string
	// Planned is set when only the script was written.
	Planned bool
}

type Summary struct {
	Session   string
	Hits      int
	Filtered  int
	Misses    int
	Recovered []Recovered
}

type Coordinator struct {
	Reader   readers.DiskReader
	Device   string
	Resolver resolver.Resolver
	Exporter exporter.Exporter
	Filters  filters.FilterManager

	Workers     int
	Window      int
	HitWorkers  int
	ReadTimeout time.Duration
	Signatures  []scanner.Signature

	// PartitionRelative reads block i at the partition start instead of
	// the device start.
	PartitionRelative bool
	DryRun            bool
	Session           string

	seq     carver.Sequencer
	mu      sync.Mutex
	summary Summary
}

func (c *Coordinator) session() string {
	if c.Session == "" {
		c.Session = uuid.NewString()
	}
	return c.Session
}

// Run carves the located partitions of dsk in order. Only an allocation
// failure or cancellation stops it early.
func (c *Coordinator) Run(ctx context.Context, dsk *disk.Disk, located []int) (Summary, error) {
	c.summary.Session = c.session()
	logger.FSLogger.Info(fmt.Sprintf("recovery session %s on %s", c.Session, c.Device))

	for _, idx := range located {
		partition := dsk.Partitions[idx]
		vol := partition.GetVolume()
		if vol == nil {
			continue
		}
		if err := c.RecoverPartition(ctx, idx, partition.GetOffsetB(), vol.GetGeometry()); err != nil {
			return c.Summary(), err
		}
	}
	return c.Summary(), nil
}

func (c *Coordinator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary := c.summary
	summary.Recovered = append([]Recovered(nil), c.summary.Recovered...)
	return summary
}

// RecoverPartition scans one partition and recovers each accepted hit.
func (c *Coordinator) RecoverPartition(ctx context.Context, idx int, partitionOffsetB int64, geometry volume.Geometry) error {
	c.summary.Session = c.session()
	baseOffset := int64(0)
	if c.PartitionRelative {
		baseOffset = partitionOffsetB
	}
	fmt.Printf("Scanning partition %d: %d blocks of %d bytes\n", idx+1, geometry.TotalBlocks, geometry.BlockSize)

	sc := scanner.Scanner{
		Reader:      c.Reader,
		BlockSize:   geometry.BlockSize,
		TotalBlocks: uint64(geometry.TotalBlocks),
		BaseOffset:  baseOffset,
		Workers:     c.Workers,
		Window:      c.Window,
		ReadTimeout: c.ReadTimeout,
		Signatures:  c.Signatures,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hits := make(chan scanner.Hit)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- sc.Scan(ctx, hits)
	}()

	hitWorkers := c.HitWorkers
	if hitWorkers < 1 {
		hitWorkers = 1
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(hitWorkers)

	for hit := range hits {
		if egCtx.Err() != nil {
			continue // drain until the scanner stops
		}
		fmt.Printf("%s found in block %d\n", hit.Signature, hit.Block)
		if !c.Filters.Accept(hit) {
			c.count(func(s *Summary) { s.Filtered++ })
			continue
		}
		c.count(func(s *Summary) { s.Hits++ })

		hit := hit
		eg.Go(func() error {
			err := c.recoverHit(egCtx, idx, baseOffset, geometry.BlockSize, hit)
			if err != nil {
				cancel()
			}
			return err
		})
	}

	if err := eg.Wait(); err != nil {
		<-scanErr
		return err
	}
	return <-scanErr
}

func (c *Coordinator) count(update func(*Summary)) {
	c.mu.Lock()
	update(&c.summary)
	c.mu.Unlock()
}

// recoverHit returns an error only when the whole scan must stop.
func (c *Coordinator) recoverHit(ctx context.Context, idx int, baseOffset int64, blockSize uint32, hit scanner.Hit) error {
	log := logger.FSLogger.WithField("block", hit.Block)

	inode, err := c.Resolver.ResolveInode(ctx, hit.Block)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ResolverMiss("inode")
		c.count(func(s *Summary) { s.Misses++ })
		if errors.Is(err, resolver.ErrNoInode) {
			log.Warning(fmt.Sprintf("no inode owns the block: %v", err))
		} else {
			log.Error(err)
		}
		return nil
	}

	list, err := c.Resolver.ListExtents(ctx, inode)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ResolverMiss("extents")
		c.count(func(s *Summary) { s.Misses++ })
		log.Error(err)
		return nil
	}

	plan := carver.NewPlan(carver.NewJob(0, list, blockSize, c.Device, baseOffset))
	if err := plan.Validate(); err != nil {
		log.Error(err)
		return nil
	}
	// an id is taken once the plan is known good and its script is written
	plan.Job.OutputID = c.seq.Next()
	plan.Job.SourceBlock, plan.Job.Inode = hit.Block, inode
	job := plan.Job

	recovered := Recovered{
		Partition:   idx,
		Hit:         hit,
		Inode:       inode,
		OutputID:    job.OutputID,
		Artifact:    c.Exporter.ArtifactName(job.OutputID),
		Script:      c.Exporter.ScriptName(job.OutputID),
		TotalBlocks: job.TotalBlocks,
		Duplicates:  list.Duplicates,
	}

	var script bytes.Buffer
	if err := carver.WriteScript(&script, plan, recovered.Artifact, c.Session); err != nil {
		return errors.Wrap(exporter.ErrAllocation, err.Error())
	}
	if err := c.Exporter.CreateFile(recovered.Script, script.Bytes(), 0750); err != nil {
		return errors.Wrapf(exporter.ErrAllocation, "script %s: %v", recovered.Script, err)
	}

	if c.DryRun {
		recovered.Planned = true
		c.count(func(s *Summary) { s.Recovered = append(s.Recovered, recovered) })
		log.Info(fmt.Sprintf("planned %s for inode %d", recovered.Script, inode))
		return nil
	}

	result, err := carver.Executor{Reader: c.Reader, Exporter: c.Exporter, ReadTimeout: c.ReadTimeout}.Apply(ctx, plan)
	if err != nil {
		if errors.Is(err, exporter.ErrAllocation) || ctx.Err() != nil {
			return err
		}
		log.Error(err)
		return nil
	}
	recovered.BytesCopied, recovered.FailedReads = result.BytesCopied, result.FailedReads

	if c.Exporter.Hash != "" {
		if recovered.Hash, err = c.Exporter.HashFile(recovered.Artifact); err != nil {
			log.Warning(fmt.Sprintf("hash %s: %v", recovered.Artifact, err))
		}
	}

	metrics.FileRecovered()
	c.count(func(s *Summary) { s.Recovered = append(s.Recovered, recovered) })
	fmt.Printf("Recovered inode %d from block %d into %s\n", inode, hit.Block, c.Exporter.Path(recovered.Artifact))
	return nil
}
