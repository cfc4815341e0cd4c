package tablewriter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderBasicTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetHeader([]string{"ID", "Name"})
	w.Append([]string{"1", "alpha"})
	w.Append([]string{"2", "beta"})
	w.Render()

	expected := strings.Join([]string{
		"+----+-------+",
		"| ID | Name  |",
		"+----+-------+",
		"| 1  | alpha |",
		"| 2  | beta  |",
		"+----+-------+",
		"",
	}, "\n")
	require.Equal(t, expected, buf.String())
}

func TestRenderEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Render()
	require.Empty(t, buf.String())
}

func TestRenderShortRow(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetHeader([]string{"A", "B", "C"})
	w.Append([]string{"x"})
	w.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "| x |   |   |", lines[3])
}

func TestDisplayWidthIgnoresANSI(t *testing.T) {
	plain := "hello"
	colored := "\x1b[31mhello\x1b[0m"
	require.Equal(t, displayWidth(plain), displayWidth(colored))

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetHeader([]string{"Value"})
	w.Append([]string{colored})
	w.Render()

	// The border width follows the visible text, not the escape codes.
	require.True(t, strings.HasPrefix(buf.String(), "+-------+\n"))
}

func TestDisplayWidthWideRunes(t *testing.T) {
	require.Equal(t, 4, displayWidth("日本"))
}
