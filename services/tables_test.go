package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTablesColumnarRun(t *testing.T) {
	text := "BRAKE PERFORMANCE\n" +
		"Parameter\tUnit\tValue\n" +
		"Stopping distance\tm\t25.4\n" +
		"Deceleration\tm/s2\t5.8\n" +
		"The test was conducted at GVW."

	tables := detectTables(text)
	require.Len(t, tables, 1)
	assert.Equal(t, 3, tables[0].Rows)
	assert.Equal(t, 3, tables[0].Cols)
	assert.Contains(t, tables[0].Markdown, "| Parameter | Unit | Value |")
	assert.Contains(t, tables[0].Markdown, "| --- | --- | --- |")
	assert.Contains(t, tables[0].Markdown, "| Stopping distance | m | 25.4 |")
}

func TestDetectTablesSpaceGapColumns(t *testing.T) {
	text := "Speed  Distance  Effort\n" +
		"40     14.2      118\n" +
		"60     25.4      131"

	tables := detectTables(text)
	require.Len(t, tables, 1)
	assert.Equal(t, 3, tables[0].Cols)
}

func TestDetectTablesShortRunIgnored(t *testing.T) {
	// Two columnar lines stay prose.
	text := "Speed\tDistance\n40\t14.2\nplain prose line follows here"
	assert.Empty(t, detectTables(text))
}

func TestDetectTablesNoColumns(t *testing.T) {
	assert.Empty(t, detectTables("just ordinary prose\nwith no columns at all"))
}

func TestRenderTablePadsShortRows(t *testing.T) {
	table, ok := renderTable([][]string{
		{"Parameter", "Value", "Unit"},
		{"GVW", "16200"},
	})
	require.True(t, ok)
	assert.Equal(t, 3, table.Cols)
	assert.Contains(t, table.Markdown, "| GVW | 16200 |  |")
}

func TestRenderTableEscapesPipes(t *testing.T) {
	table, ok := renderTable([][]string{
		{"Ratio", "40|60"},
		{"Split", "front|rear"},
	})
	require.True(t, ok)
	assert.Contains(t, table.Markdown, "40/60")
	assert.NotContains(t, table.Markdown, "40|60")
}

func TestRenderTableSingleColumnRejected(t *testing.T) {
	_, ok := renderTable([][]string{{"only"}, {"one"}})
	assert.False(t, ok)
}
