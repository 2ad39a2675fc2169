package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		tty  bool
		want Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
		{ModeText, false, ModeText},
	}
	for _, tt := range tests {
		r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode, tt.tty)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode %q tty %v", tt.mode, tt.tty)
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestTable(t *testing.T) {
	var md bytes.Buffer
	NewRendererWithTTY(&md, nil, ModeMarkdown, false).Table(
		[]string{"Name", "Type"}, [][]string{{"OrderID", "int"}})
	assert.Contains(t, md.String(), "| Name | Type |")
	assert.Contains(t, md.String(), "| OrderID | int |")

	var text bytes.Buffer
	NewRendererWithTTY(&text, nil, ModeText, false).Table(
		[]string{"Name"}, [][]string{{"OrderID"}})
	assert.Contains(t, text.String(), "│ OrderID │")

	var empty bytes.Buffer
	NewRendererWithTTY(&empty, nil, ModeText, false).Table([]string{"Name"}, nil)
	assert.Equal(t, "(none)\n", empty.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithTTY(&buf, nil, ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestHeaderAndMessages(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, ModeMarkdown, false)
	r.Header(2, "Joins")
	r.Success("saved")
	r.Warning("stale")

	assert.True(t, strings.HasPrefix(out.String(), "## Joins\n\n"))
	assert.Contains(t, out.String(), "✓ saved")
	assert.Equal(t, "warning: stale\n", errOut.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "###### Deep", FormatHeader(9, "Deep"))
	assert.Equal(t, "**Source:** yaml", FormatKeyValue("Source", "yaml"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
}
