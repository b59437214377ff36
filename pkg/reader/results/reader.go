// Package results provides a streaming column-mapped reader for tool-native
// tab-delimited search result files.
package results

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pephit/pkg/core"
)

// maxRejected caps the stored rejection messages so a systematically
// malformed file cannot grow memory without bound; rejections past the cap
// are only counted.
const maxRejected = 255

// Reader provides streaming access to a tab-delimited results file. Column
// order is resolved from the header line against the tool's column table; a
// file whose first line is data falls back to the tool's fixed default order.
type Reader struct {
	scanner   *bufio.Scanner
	tool      *core.ToolConfig
	colIndex  [core.FieldCount]int
	lineNum   int
	row       []string
	pending   []string // first line, when it turned out to be data
	started   bool
	err       error
	rejected  []string
	truncated int
}

// NewReader creates a reader for one results file. The header line (or its
// absence) is resolved lazily on the first call to Next.
func NewReader(r io.Reader, tool *core.ToolConfig) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{
		scanner: sc,
		tool:    tool,
	}
}

// Next advances to the next data row. Blank lines are skipped; rows with
// fewer columns than the tool's minimum are rejected (recorded, not fatal).
// Returns false at end of stream or on a read error.
func (r *Reader) Next() bool {
	if !r.started {
		r.started = true
		if !r.resolveHeader() {
			return false
		}
	}

	if r.pending != nil {
		r.row = r.pending
		r.pending = nil
		return true
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < r.tool.MinColumns {
			r.reject(fmt.Sprintf("line %d: %d columns, need at least %d", r.lineNum, len(fields), r.tool.MinColumns))
			continue
		}

		r.row = fields
		return true
	}

	r.err = r.scanner.Err()
	return false
}

// resolveHeader reads the first non-blank line and decides whether it is a
// true header. A header-shaped line whose first few columns parse as numbers
// is actually data: it is stashed as the first row and the tool's default
// column order takes effect.
func (r *Reader) resolveHeader() bool {
	for r.scanner.Scan() {
		r.lineNum++
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if looksLikeData(fields) {
			r.colIndex = r.tool.DefaultIndex()
			if len(fields) >= r.tool.MinColumns {
				r.pending = fields
			} else {
				r.reject(fmt.Sprintf("line %d: %d columns, need at least %d", r.lineNum, len(fields), r.tool.MinColumns))
			}
		} else {
			r.colIndex = r.tool.ColumnIndex(fields)
		}
		return true
	}

	r.err = r.scanner.Err()
	return false
}

// looksLikeData reports whether any of the first few columns parses as a
// number, which no header name does.
func looksLikeData(fields []string) bool {
	n := len(fields)
	if n > 4 {
		n = 4
	}
	for _, f := range fields[:n] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err == nil {
			return true
		}
	}
	return false
}

func (r *Reader) reject(msg string) {
	if len(r.rejected) >= maxRejected {
		r.truncated++
		return
	}
	r.rejected = append(r.rejected, msg)
}

// Field returns the current row's value for a logical field, or def when the
// field is absent from this file or the row is shorter than its column.
func (r *Reader) Field(f core.Field, def string) string {
	idx := r.colIndex[f]
	if idx < 0 || idx >= len(r.row) {
		return def
	}
	return strings.TrimSpace(r.row[idx])
}

// FloatField parses a logical field as a float, returning def when the field
// is absent or unparseable. ok reports whether a parseable value was present.
func (r *Reader) FloatField(f core.Field, def float64) (float64, bool) {
	s := r.Field(f, "")
	if s == "" {
		return def, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def, false
	}
	return v, true
}

// IntField parses a logical field as an integer, returning def when the
// field is absent or unparseable.
func (r *Reader) IntField(f core.Field, def int) int {
	s := r.Field(f, "")
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// HasField reports whether the resolved mapping carries this logical field.
func (r *Reader) HasField(f core.Field) bool {
	return r.colIndex[f] >= 0
}

// LineNum returns the 1-based line number of the current row.
func (r *Reader) LineNum() int {
	return r.lineNum
}

// Rejected returns the messages for rows dropped for having too few columns,
// capped at maxRejected entries.
func (r *Reader) Rejected() []string {
	return r.rejected
}

// Truncated returns how many rejections past the message cap were only
// counted.
func (r *Reader) Truncated() int {
	return r.truncated
}

// Err returns any read error encountered.
func (r *Reader) Err() error {
	return r.err
}
