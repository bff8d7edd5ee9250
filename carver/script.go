package carver

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// skipArgs expresses the device position of block in dd terms.
func (plan Plan) skipArgs(block int64) string {
	bs := int64(plan.Job.BlockSize)
	if plan.Job.BaseOffset%bs == 0 {
		return fmt.Sprintf("skip=%d", plan.Job.BaseOffset/bs+block)
	}
	return fmt.Sprintf("iflag=skip_bytes skip=%d", plan.Job.BaseOffset+block*bs)
}

// WriteScript renders the plan as a dd script an operator can audit,
// edit and run instead of the in-process executor.
func WriteScript(w io.Writer, plan Plan, artifact string, session string) error {
	bw := bufio.NewWriter(w)
	job := plan.Job

	fmt.Fprintf(bw, "#!/bin/bash\n")
	fmt.Fprintf(bw, "# GIFCarver recovery plan, session %s\n", session)
	fmt.Fprintf(bw, "# source block %d inode %d output id %d\n", job.SourceBlock, job.Inode, job.OutputID)
	fmt.Fprintf(bw, "# total blocks %d, copied blocks %d, duplicate extents %d\n",
		job.TotalBlocks, plan.CopiedBlocks(), job.Extents.Duplicates)
	fmt.Fprintf(bw, "set -e\n")
	// the artifact name is relative to the script
	fmt.Fprintf(bw, "cd \"$(dirname \"$0\")\"\n")
	fmt.Fprintf(bw, "dd if=/dev/zero of=%s bs=%d count=%d\n",
		shellQuote(artifact), job.BlockSize, plan.Init.BlockCount)
	for _, op := range plan.Ops {
		fmt.Fprintf(bw, "dd if=%s of=%s bs=%d %s seek=%d count=%d conv=notrunc\n",
			shellQuote(op.SourceDevice), shellQuote(artifact), job.BlockSize,
			plan.skipArgs(op.ReadOffsetBlocks), op.WriteOffsetBlocks, op.BlockCount)
	}
	return bw.Flush()
}
