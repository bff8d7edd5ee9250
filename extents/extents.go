// Package extents parses the block allocation section of an inode report
// into the ordered list of block runs that hold the file data.
package extents

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var DefaultMarkers = []string{"BLOCKS:", "EXTENTS:"}

// Tokens containing one of these hold block pointers, not file data.
var DefaultIndirectMarkers = []string{"(IND)", "(DIND)", "(TIND)", "(ETB"}

var (
	rangeToken  = regexp.MustCompile(`^\(([^)]+)\):(\d+)-(\d+)`)
	singleToken = regexp.MustCompile(`^\(([^)]+)\):(\d+)$`)
)

type Extent struct {
	Start int64
	End   int64
}

func (extent Extent) Blocks() int64 {
	return extent.End - extent.Start + 1
}

// List is the effective extent sequence in report order. TotalBlockCount
// also includes the blocks of extents dropped as duplicates.
type List struct {
	Extents         []Extent
	TotalBlockCount int64
	Duplicates      int
}

func (list List) EffectiveBlocks() int64 {
	var blocks int64
	for _, extent := range list.Extents {
		blocks += extent.Blocks()
	}
	return blocks
}

type StartSet map[int64]struct{}

// Add inserts start and reports whether it was not present before.
func (set StartSet) Add(start int64) bool {
	if _, ok := set[start]; ok {
		return false
	}
	set[start] = struct{}{}
	return true
}

type Parser struct {
	Markers         []string
	IndirectMarkers []string
	// SingleBlockTokens accepts "(label):n" as the extent n-n.
	SingleBlockTokens bool
}

func NewParser() Parser {
	return Parser{Markers: DefaultMarkers, IndirectMarkers: DefaultIndirectMarkers}
}

// Parse reads report with the default parser.
func Parse(report io.Reader) (List, error) {
	return NewParser().Parse(report)
}

func ParseString(report string) (List, error) {
	return Parse(strings.NewReader(report))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func splitTokens(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\r' || r == '\n'
	})
}

// ParseToken converts one token, ok is false for indirect or malformed tokens.
func (parser Parser) ParseToken(token string) (Extent, bool) {
	if containsAny(token, parser.IndirectMarkers) {
		return Extent{}, false
	}
	if match := rangeToken.FindStringSubmatch(token); match != nil {
		start, err1 := strconv.ParseInt(match[2], 10, 64)
		end, err2 := strconv.ParseInt(match[3], 10, 64)
		if err1 != nil || err2 != nil || end < start {
			return Extent{}, false
		}
		return Extent{Start: start, End: end}, true
	}
	if parser.SingleBlockTokens {
		if match := singleToken.FindStringSubmatch(token); match != nil {
			block, err := strconv.ParseInt(match[2], 10, 64)
			if err != nil {
				return Extent{}, false
			}
			return Extent{Start: block, End: block}, true
		}
	}
	return Extent{}, false
}

// Parse collects extents from the lines following a marker line up to the
// first blank line. A start block already seen is left out of Extents but
// its size still counts in TotalBlockCount.
func (parser Parser) Parse(report io.Reader) (List, error) {
	var list List
	seen := StartSet{}
	inSection := false

	lines := bufio.NewScanner(report)
	lines.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for lines.Scan() {
		line := lines.Text()
		if containsAny(line, parser.Markers) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}

		for _, token := range splitTokens(line) {
			extent, ok := parser.ParseToken(token)
			if !ok {
				continue
			}
			list.TotalBlockCount += extent.Blocks()
			if !seen.Add(extent.Start) {
				list.Duplicates++
				continue
			}
			list.Extents = append(list.Extents, extent)
		}
	}
	if err := lines.Err(); err != nil {
		return list, errors.Wrap(err, "read extent report")
	}
	return list, nil
}
