package reporter

import (
	"io"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aarsakian/GIFCarver/recovery"
)

type Reporter struct {
	ShowHashes bool
	ShowMisses bool
	Out        io.Writer
}

func (rp Reporter) printer() (*message.Printer, io.Writer) {
	out := rp.Out
	if out == nil {
		out = os.Stdout
	}
	return message.NewPrinter(language.English), out
}

func (rp Reporter) Show(summary recovery.Summary) {
	p, out := rp.printer()

	p.Fprintf(out, "Session %s\n", summary.Session)
	for _, recovered := range summary.Recovered {
		state := "recovered"
		if recovered.Planned {
			state = "planned"
		}
		p.Fprintf(out, "%d  --------------------------------------------------------------------\n", recovered.OutputID)
		p.Fprintf(out, "partition %d %s block %d inode %d %s\n", recovered.Partition+1,
			recovered.Hit.Signature, recovered.Hit.Block, recovered.Inode, state)
		p.Fprintf(out, "artifact %s script %s blocks %d copied %d bytes\n",
			recovered.Artifact, recovered.Script, recovered.TotalBlocks, recovered.BytesCopied)
		if recovered.Duplicates > 0 {
			p.Fprintf(out, "duplicate extents %d\n", recovered.Duplicates)
		}
		if recovered.FailedReads > 0 {
			p.Fprintf(out, "failed reads %d, regions left zero\n", recovered.FailedReads)
		}
		if rp.ShowHashes && recovered.Hash != "" {
			p.Fprintf(out, "hash %s\n", recovered.Hash)
		}
	}

	p.Fprintf(out, "hits %d recovered %d", summary.Hits, len(summary.Recovered))
	if rp.ShowMisses {
		p.Fprintf(out, " unresolved %d filtered %d", summary.Misses, summary.Filtered)
	}
	p.Fprintf(out, "\n")
}
