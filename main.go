package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	EWFLogger "github.com/aarsakian/EWF_Reader/logger"
	VMDKLogger "github.com/aarsakian/VMDK_Reader/logger"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/aarsakian/GIFCarver/config"
	"github.com/aarsakian/GIFCarver/disk"
	"github.com/aarsakian/GIFCarver/exporter"
	"github.com/aarsakian/GIFCarver/extents"
	"github.com/aarsakian/GIFCarver/filters"
	FSLogger "github.com/aarsakian/GIFCarver/logger"
	"github.com/aarsakian/GIFCarver/metrics"
	"github.com/aarsakian/GIFCarver/recovery"
	"github.com/aarsakian/GIFCarver/reporter"
	"github.com/aarsakian/GIFCarver/resolver"
	"github.com/aarsakian/GIFCarver/scanner"
	"github.com/aarsakian/GIFCarver/utils"
)

var flags = []cli.Flag{
	&cli.StringFlag{Name: "evidence", Usage: "path to image file or block device (EWF/Raw formats are supported)"},
	&cli.IntFlag{Name: "physicaldrive", Value: -1, Usage: "select disk drive number"},
	&cli.StringFlag{Name: "partition", Usage: "select partitions use comma as a seperator (1,3), all when unset"},
	&cli.StringFlag{Name: "location", Usage: "the path to export recovered files and plan scripts"},
	&cli.StringFlag{Name: "config", Usage: "TOML configuration file, flags override it"},
	&cli.BoolFlag{Name: "log", Usage: "enable logging"},
	&cli.IntFlag{Name: "workers", Usage: "concurrent block reads while scanning"},
	&cli.IntFlag{Name: "window", Usage: "blocks read per scan window"},
	&cli.IntFlag{Name: "hit-workers", Usage: "hits recovered concurrently"},
	&cli.DurationFlag{Name: "read-timeout", Usage: "timeout of a single device read, 0 disables it"},
	&cli.StringFlag{Name: "debugfs", Usage: "path to the debugfs binary"},
	&cli.StringFlag{Name: "debugfs-device", Usage: "device handed to debugfs, defaults to the evidence"},
	&cli.DurationFlag{Name: "resolver-timeout", Usage: "timeout of a single debugfs call"},
	&cli.BoolFlag{Name: "sudo", Usage: "run debugfs through sudo"},
	&cli.BoolFlag{Name: "dry-run", Usage: "write the plan scripts without copying blocks"},
	&cli.BoolFlag{Name: "partition-relative", Usage: "read blocks from the partition start instead of the device start"},
	&cli.BoolFlag{Name: "scan-empty", Usage: "also scan partition slots with zero start and size"},
	&cli.BoolFlag{Name: "single-block-tokens", Usage: "accept (n):block extent tokens"},
	&cli.Uint64Flag{Name: "fromblock", Usage: "first block whose hits are recovered"},
	&cli.Uint64Flag{Name: "toblock", Usage: "last block whose hits are recovered, 0 for no limit"},
	&cli.StringFlag{Name: "signature", Usage: "signatures to recover use comma as a seperator (GIF87a,GIF89a)"},
	&cli.StringFlag{Name: "hash", Usage: "hash exported files, enter md5 or sha1"},
	&cli.BoolFlag{Name: "listpartitions", Usage: "list partitions"},
	&cli.BoolFlag{Name: "volinfo", Usage: "show volume information"},
	&cli.StringFlag{Name: "metrics-file", Usage: "write prometheus metrics to this file on exit"},
}

// loadConfig merges the config file with the flags that were set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("evidence") {
		cfg.Evidence = c.String("evidence")
	}
	if c.IsSet("physicaldrive") {
		cfg.PhysicalDrive = c.Int("physicaldrive")
	}
	if c.IsSet("partition") {
		cfg.SetPartitions(c.String("partition"))
	}
	if c.IsSet("location") {
		cfg.Location = c.String("location")
	}
	if c.IsSet("log") {
		cfg.Log = c.Bool("log")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("window") {
		cfg.Window = c.Int("window")
	}
	if c.IsSet("hit-workers") {
		cfg.HitWorkers = c.Int("hit-workers")
	}
	if c.IsSet("read-timeout") {
		cfg.ReadTimeout = c.Duration("read-timeout")
	}
	if c.IsSet("debugfs") {
		cfg.DebugfsPath = c.String("debugfs")
	}
	if c.IsSet("debugfs-device") {
		cfg.DebugfsDevice = c.String("debugfs-device")
	}
	if c.IsSet("resolver-timeout") {
		cfg.ResolverTimeout = c.Duration("resolver-timeout")
	}
	if c.IsSet("sudo") {
		cfg.Sudo = c.Bool("sudo")
	}
	if c.IsSet("dry-run") {
		cfg.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("partition-relative") {
		cfg.PartitionRelative = c.Bool("partition-relative")
	}
	if c.IsSet("scan-empty") {
		cfg.ScanEmptySlots = c.Bool("scan-empty")
	}
	if c.IsSet("single-block-tokens") {
		cfg.SingleBlockTokens = c.Bool("single-block-tokens")
	}
	if c.IsSet("fromblock") {
		cfg.FromBlock = c.Uint64("fromblock")
	}
	if c.IsSet("toblock") {
		cfg.ToBlock = c.Uint64("toblock")
	}
	if c.IsSet("signature") {
		cfg.Signatures = utils.GetEntries(c.String("signature"))
	}
	if c.IsSet("hash") {
		cfg.Hash = c.String("hash")
	}
	if c.IsSet("metrics-file") {
		cfg.MetricsFile = c.String("metrics-file")
	}
	cfg.Hash = strings.ToUpper(cfg.Hash)
	return cfg, cfg.Validate()
}

func selectedSignatures(names []string) ([]scanner.Signature, error) {
	var selected []scanner.Signature
	for _, name := range names {
		found := false
		for _, signature := range scanner.Signatures {
			if strings.EqualFold(signature.Name, name) {
				selected = append(selected, signature)
				found = true
			}
		}
		if !found {
			return nil, errors.Errorf("unknown signature %s", name)
		}
	}
	return selected, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 2)
	}
	signatures, err := selectedSignatures(cfg.Signatures)
	if err != nil {
		return cli.Exit(err, 2)
	}

	if cfg.Log {
		now := time.Now()
		logfilename := "logs" + now.Format("2006-01-02T15_04_05") + ".txt"
		FSLogger.InitializeLogger(cfg.Log, logfilename)
		VMDKLogger.InitializeLogger(cfg.Log, logfilename)
		EWFLogger.InitializeLogger(cfg.Log, logfilename)
	}

	metrics.Register()
	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.Export(cfg.MetricsFile); err != nil {
				FSLogger.FSLogger.Error(err)
			}
		}()
	}

	dsk := new(disk.Disk)
	if err := dsk.Initialize(cfg.Evidence, cfg.PhysicalDrive); err != nil {
		return cli.Exit(errors.Wrap(err, "cannot open evidence"), 1)
	}
	defer dsk.Close()

	if err := dsk.DiscoverPartitions(); err != nil {
		fmt.Println(err)
		FSLogger.FSLogger.Error(err)
		return nil
	}
	located := dsk.ProcessPartitions(cfg.PartitionIndexes(), cfg.ScanEmptySlots)

	if c.Bool("listpartitions") {
		dsk.ListPartitions()
	}
	if c.Bool("volinfo") {
		dsk.ShowVolumeInfo()
	}
	if c.Bool("listpartitions") || c.Bool("volinfo") {
		return nil
	}

	flm := filters.FilterManager{}
	if cfg.FromBlock != 0 || cfg.ToBlock != 0 {
		flm.Register(filters.BlockRangeFilter{From: cfg.FromBlock, To: cfg.ToBlock})
	}
	if len(signatures) != 0 {
		var names []string
		for _, signature := range signatures {
			names = append(names, signature.Name)
		}
		flm.Register(filters.SignatureFilter{Signatures: names})
	}

	debugfsDevice := cfg.DebugfsDevice
	if debugfsDevice == "" {
		debugfsDevice = dsk.Device
	}
	parser := extents.NewParser()
	parser.SingleBlockTokens = cfg.SingleBlockTokens

	coordinator := &recovery.Coordinator{
		Reader: dsk.Handler,
		Device: dsk.Device,
		Resolver: resolver.NewDebugfs(cfg.DebugfsPath, debugfsDevice,
			resolver.WithSudo(cfg.Sudo),
			resolver.WithTimeout(cfg.ResolverTimeout),
			resolver.WithParser(parser)),
		Exporter:          exporter.Exporter{Location: cfg.Location, Hash: cfg.Hash},
		Filters:           flm,
		Workers:           cfg.Workers,
		Window:            cfg.Window,
		HitWorkers:        cfg.HitWorkers,
		ReadTimeout:       cfg.ReadTimeout,
		PartitionRelative: cfg.PartitionRelative,
		DryRun:            cfg.DryRun,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	summary, err := coordinator.Run(ctx, dsk, located)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println(err)
		FSLogger.FSLogger.Error(err)
	}
	reporter.Reporter{ShowHashes: cfg.Hash != "", ShowMisses: true}.Show(summary)
	return nil
}

func main() {
	app := &cli.App{
		Name:   "gifcarver",
		Usage:  "recover GIF images from ext volumes by block signature and debugfs extents",
		Flags:  flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
