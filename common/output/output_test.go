package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/reconcile/common/table"
)

func init() {
	color.NoColor = true
}

func TestPrinter(t *testing.T) {
	tests := []struct {
		name  string
		print func(p *Printer)
		want  string
	}{
		{name: "success", print: func(p *Printer) { p.Success("Wrote %d rows", 6) }, want: "✓ Wrote 6 rows\n"},
		{name: "error", print: func(p *Printer) { p.Error("run failed: %s", "boom") }, want: "✗ run failed: boom\n"},
		{name: "info", print: func(p *Printer) { p.Info("Run %s", "abc") }, want: "Run abc\n"},
		{name: "warn", print: func(p *Printer) { p.Warn("%d datasets failed", 1) }, want: "⚠ 1 datasets failed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(NewPrinter(&buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestGrid_Render(t *testing.T) {
	g := NewGrid([]string{"ID", "Name"})
	g.AddRow([]string{"1", "Alpha"})
	g.AddRow([]string{"22", "B"})

	var buf bytes.Buffer
	g.Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  Name   ", lines[0])
	assert.Equal(t, "--  -----  ", lines[1])
	assert.Equal(t, "1   Alpha  ", lines[2])
	assert.Equal(t, "22  B      ", lines[3])
}

func TestGrid_Render_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewGrid([]string{"A"}).Render(&buf)
	assert.Equal(t, "A  \n-  \n", buf.String())
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.Field{Name: "animal_id", Kind: table.String},
		table.Field{Name: "datetime_outcome", Kind: table.Time},
		table.Field{Name: "age_upon_outcome(years)", Kind: table.Float},
		table.Field{Name: "duration(days)", Kind: table.Int},
	)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow(
		table.StringValue("a"),
		table.TimeValue(time.Date(2019, 5, 13, 18, 20, 0, 0, time.UTC)),
		table.FloatValue(5.1),
		table.IntValue(5),
	))
	require.NoError(t, tbl.AppendRow(
		table.StringValue("007"),
		table.NullValue(table.Time),
		table.FloatValue(1),
		table.NullValue(table.Int),
	))
	return tbl
}

func TestWriteTable_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleTable(t), FormatCSV, ""))
	assert.Equal(t,
		"animal_id,datetime_outcome,age_upon_outcome(years),duration(days)\n"+
			"a,2019-05-13 18:20:00,5.1,5\n"+
			"007,,1,\n",
		buf.String())
}

func TestWriteTable_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleTable(t), FormatJSON, "2006-01-02T15:04"))

	// keys follow column order
	first := buf.String()[:strings.Index(buf.String(), "}")]
	assert.Less(t, strings.Index(first, "animal_id"), strings.Index(first, "datetime_outcome"))
	assert.Less(t, strings.Index(first, "datetime_outcome"), strings.Index(first, "duration(days)"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2019-05-13T18:20", rows[0]["datetime_outcome"])
	assert.Equal(t, 5.1, rows[0]["age_upon_outcome(years)"])
	assert.Equal(t, float64(5), rows[0]["duration(days)"])
	assert.Equal(t, "007", rows[1]["animal_id"])
	assert.Nil(t, rows[1]["datetime_outcome"])
	assert.Nil(t, rows[1]["duration(days)"])
}

func TestWriteTable_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleTable(t), FormatYAML, ""))

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["animal_id"])
	assert.Equal(t, "2019-05-13 18:20:00", rows[0]["datetime_outcome"])
	assert.Equal(t, 5.1, rows[0]["age_upon_outcome(years)"])
	assert.Equal(t, 5, rows[0]["duration(days)"])
	assert.Equal(t, "007", rows[1]["animal_id"], "numeric-looking ids stay strings")
	assert.Equal(t, 1.0, rows[1]["age_upon_outcome(years)"])
	assert.Nil(t, rows[1]["datetime_outcome"])

	var nodes []yaml.Node
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &nodes))
	require.NotEmpty(t, nodes)
	assert.Equal(t, "animal_id", nodes[0].Content[0].Value)
}

func TestWriteTable_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteTable(&buf, sampleTable(t), Format("xml"), ""))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "csv": FormatCSV, "json": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("parquet")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, sampleTable(t), 10, "2006-01-02")

	out := buf.String()
	assert.Contains(t, out, "animal_id")
	assert.Contains(t, out, "2019-05-13")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[3], "007"))
	assert.Contains(t, lines[3], "-")

	buf.Reset()
	Preview(&buf, sampleTable(t), 0, "")
	assert.Empty(t, buf.String())
}
