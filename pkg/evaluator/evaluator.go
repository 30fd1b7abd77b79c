// Package evaluator runs compiled rule patterns over file content and
// yields raw matches with resolved line/column positions.
package evaluator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sentinelscan/sentinel/pkg/analysis"
	"github.com/sentinelscan/sentinel/pkg/rules"
)

// DefaultTimeout bounds one (file, rule) evaluation.
const DefaultTimeout = 2 * time.Second

// maxSnippetLen caps snippet size so findings stay readable even for
// minified or generated input.
const maxSnippetLen = 240

// ErrDeadline is returned when a single (file, rule) evaluation runs
// past its deadline. Callers wrap it into an analysis.PatternError and
// keep scanning.
var ErrDeadline = errors.New("evaluation deadline exceeded")

// Content is file content with a precomputed line index, built once per
// file and shared across all rule evaluations for that file.
type Content struct {
	data        []byte
	lineOffsets []int // byte offset of each line start
}

func NewContent(data []byte) *Content {
	offsets := []int{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			offsets = append(offsets, i+1)
		}
	}
	return &Content{data: data, lineOffsets: offsets}
}

func (c *Content) Len() int { return len(c.data) }

// Head returns up to n leading bytes, for shebang sniffing.
func (c *Content) Head(n int) []byte {
	if len(c.data) < n {
		n = len(c.data)
	}
	return c.data[:n]
}

// position converts a byte offset into a 1-based line and column.
func (c *Content) position(offset int) (line, column int) {
	idx := sort.Search(len(c.lineOffsets), func(i int) bool {
		return c.lineOffsets[i] > offset
	}) - 1
	return idx + 1, offset - c.lineOffsets[idx] + 1
}

// snippet returns the matched line with at most one line of context on
// each side, truncated to maxSnippetLen bytes.
func (c *Content) snippet(line int) string {
	from := line - 1
	if from < 1 {
		from = 1
	}
	to := line + 1
	if to > len(c.lineOffsets) {
		to = len(c.lineOffsets)
	}

	start := c.lineOffsets[from-1]
	end := len(c.data)
	if to < len(c.lineOffsets) {
		end = c.lineOffsets[to] - 1
	}
	for end > start && (c.data[end-1] == '\n' || c.data[end-1] == '\r') {
		end--
	}
	if end-start > maxSnippetLen {
		end = start + maxSnippetLen
	}
	return string(c.data[start:end])
}

// Evaluate scans content with every pattern of one rule, returning all
// non-overlapping occurrences. Multi-line matches report their start
// line. The evaluation is bounded by timeout (DefaultTimeout when
// zero); exceeding it, or ctx being canceled, abandons only this
// (file, rule) pair.
func Evaluate(ctx context.Context, content *Content, rule *rules.Rule, timeout time.Duration) ([]analysis.RawMatch, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var matches []analysis.RawMatch
	for _, re := range rule.Compiled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrDeadline
		}

		// FindAllIndex keeps ^ and \b anchored against the full input;
		// resuming a search on a subslice would re-anchor them at every
		// previous match end.
		for _, loc := range re.FindAllIndex(content.data, -1) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if time.Now().After(deadline) {
				return nil, ErrDeadline
			}

			line, column := content.position(loc[0])
			matches = append(matches, analysis.RawMatch{
				RuleID:  rule.ID,
				Offset:  loc[0],
				Line:    line,
				Column:  column,
				Snippet: content.snippet(line),
			})
		}
	}
	return matches, nil
}

// SanitizerNearby reports whether any of the rule's sanitizer patterns
// matches within one line of the given match line. Used for the
// documented confidence downgrade.
func SanitizerNearby(content *Content, rule *rules.Rule, line int) bool {
	sanitizers := rule.CompiledSanitizers()
	if len(sanitizers) == 0 {
		return false
	}

	from := line - 1
	if from < 1 {
		from = 1
	}
	to := line + 1
	if to > len(content.lineOffsets) {
		to = len(content.lineOffsets)
	}

	start := content.lineOffsets[from-1]
	end := len(content.data)
	if to < len(content.lineOffsets) {
		end = content.lineOffsets[to]
	}
	window := content.data[start:end]

	for _, re := range sanitizers {
		if re.Match(window) {
			return true
		}
	}
	return false
}
