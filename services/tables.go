package services

import (
	"regexp"
	"strings"

	"engdocs-qa-platform/models"
)

// Minimum consecutive columnar lines to count as a table.
const minTableLines = 3

var columnGap = regexp.MustCompile(`\t+| {2,}`)

// detectTables scans structural page text for columnar runs and
// materializes each as markdown with a header separator. Cells with
// embedded newlines were already flattened by the line split; cell text
// is additionally trimmed so pipe rendering stays clean.
func detectTables(text string) []models.PageTable {
	lines := strings.Split(text, "\n")

	var tables []models.PageTable
	var run [][]string

	flush := func() {
		if len(run) >= minTableLines {
			if t, ok := renderTable(run); ok {
				tables = append(tables, t)
			}
		}
		run = nil
	}

	for _, line := range lines {
		cells := splitColumns(line)
		if len(cells) >= 2 {
			run = append(run, cells)
			continue
		}
		flush()
	}
	flush()

	return tables
}

// splitColumns breaks a line at tab or 2+ space gaps. Lines that do not
// produce at least two cells are not columnar.
func splitColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) < 5 {
		return nil
	}
	parts := columnGap.Split(trimmed, -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

// renderTable converts a run of cell rows to pipe-delimited markdown.
// The column count is the widest row; shorter rows are padded.
func renderTable(rows [][]string) (models.PageTable, bool) {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols < 2 {
		return models.PageTable{}, false
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("|")
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = strings.ReplaceAll(row[c], "|", "/")
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}

	return models.PageTable{
		Markdown: strings.TrimRight(b.String(), "\n"),
		Rows:     len(rows),
		Cols:     cols,
	}, true
}
