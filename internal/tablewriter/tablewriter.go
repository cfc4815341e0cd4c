// Package tablewriter renders ASCII tables for CLI output. Cell widths are
// computed on display width, so colored (ANSI) and wide-rune content lines
// up.
package tablewriter

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// Writer accumulates rows and renders them as an ASCII table.
type Writer struct {
	out        io.Writer
	headers    []string
	rows       [][]string
	widths     []int
	maxColumns int
}

// NewWriter creates a table writer that renders to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// SetHeader sets the column headers. The header count caps the number of
// rendered columns.
func (t *Writer) SetHeader(headers []string) {
	t.headers = headers
	t.maxColumns = len(headers)
	t.updateWidths(headers)
}

// Append adds one row.
func (t *Writer) Append(row []string) {
	t.rows = append(t.rows, row)
	t.updateWidths(row)
}

// Render writes the table. An empty table renders nothing.
func (t *Writer) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}
	t.printBorder()
	if len(t.headers) > 0 {
		t.printRow(t.headers)
		t.printBorder()
	}
	for _, row := range t.rows {
		t.printRow(row)
	}
	t.printBorder()
}

func displayWidth(s string) int {
	return runewidth.StringWidth(ansiRegex.ReplaceAllString(s, ""))
}

func (t *Writer) updateWidths(row []string) {
	limit := len(row)
	if t.maxColumns > 0 && limit > t.maxColumns {
		limit = t.maxColumns
	}
	for i := 0; i < limit; i++ {
		if i >= len(t.widths) {
			t.widths = append(t.widths, 0)
		}
		if w := displayWidth(row[i]); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	if t.maxColumns == 0 && len(t.widths) > t.maxColumns {
		t.maxColumns = len(t.widths)
	}
}

func (t *Writer) printBorder() {
	fmt.Fprint(t.out, "+")
	for _, width := range t.widths {
		fmt.Fprint(t.out, strings.Repeat("-", width+2))
		fmt.Fprint(t.out, "+")
	}
	fmt.Fprintln(t.out)
}

func (t *Writer) printRow(row []string) {
	fmt.Fprint(t.out, "|")
	for i := 0; i < len(t.widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		padding := t.widths[i] - displayWidth(cell)
		fmt.Fprintf(t.out, " %s%s |", cell, strings.Repeat(" ", padding))
	}
	fmt.Fprintln(t.out)
}
