// Package resolver maps blocks to their owning inode and inodes to their
// block runs by asking debugfs. The text reports are parsed here and in
// package extents only.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/aarsakian/GIFCarver/extents"
)

var (
	ErrResolver = errors.New("resolver failed")
	ErrNoInode  = errors.New("block has no owning inode")
)

type Resolver interface {
	// ResolveInode returns ErrNoInode when no inode owns the block.
	ResolveInode(ctx context.Context, block uint64) (uint64, error)
	ListExtents(ctx context.Context, inode uint64) (extents.List, error)
}

type Debugfs struct {
	binaryPath string
	device     string
	sudo       bool
	timeout    time.Duration
	parser     extents.Parser
}

type Option func(*Debugfs)

func WithSudo(sudo bool) Option {
	return func(d *Debugfs) { d.sudo = sudo }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Debugfs) { d.timeout = timeout }
}

func WithParser(parser extents.Parser) Option {
	return func(d *Debugfs) { d.parser = parser }
}

func NewDebugfs(binaryPath, device string, opts ...Option) *Debugfs {
	d := &Debugfs{
		binaryPath: binaryPath,
		device:     device,
		parser:     extents.NewParser(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Command returns the argv used for a debugfs request.
func (d *Debugfs) Command(request string) []string {
	args := []string{d.binaryPath, "-R", request, d.device}
	if d.sudo {
		args = append([]string{"sudo"}, args...)
	}
	return args
}

func (d *Debugfs) run(ctx context.Context, request string) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	argv := d.Command(request)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(ErrResolver, "%s: %v %s", strings.Join(argv, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (d *Debugfs) ResolveInode(ctx context.Context, block uint64) (uint64, error) {
	out, err := d.run(ctx, fmt.Sprintf("icheck %d", block))
	if err != nil {
		return 0, err
	}
	_, inode, err := ParseICheck(bytes.NewReader(out))
	return inode, err
}

func (d *Debugfs) ListExtents(ctx context.Context, inode uint64) (extents.List, error) {
	out, err := d.run(ctx, fmt.Sprintf("stat <%d>", inode))
	if err != nil {
		return extents.List{}, err
	}
	list, err := d.parser.Parse(bytes.NewReader(out))
	if err != nil {
		return list, errors.Wrap(ErrResolver, err.Error())
	}
	return list, nil
}

// ParseICheck reads an icheck report:
//
//	Block	Inode number
//	37	12
func ParseICheck(report io.Reader) (uint64, uint64, error) {
	lines := bufio.NewScanner(report)
	header := false
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" {
			continue
		}
		if !header {
			header = strings.HasPrefix(line, "Block") && strings.Contains(line, "Inode number")
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, 0, errors.Wrapf(ErrResolver, "malformed icheck line %q", line)
		}
		block, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, 0, errors.Wrapf(ErrResolver, "malformed icheck block %q", fields[0])
		}
		if strings.HasPrefix(fields[1], "<") {
			return block, 0, errors.Wrapf(ErrNoInode, "block %d", block)
		}
		inode, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return block, 0, errors.Wrapf(ErrResolver, "malformed icheck inode %q", fields[1])
		}
		return block, inode, nil
	}
	if err := lines.Err(); err != nil {
		return 0, 0, errors.Wrap(ErrResolver, err.Error())
	}
	return 0, 0, errors.Wrap(ErrResolver, "no icheck result")
}
