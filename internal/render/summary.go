// Package render prints human-readable run summaries to the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/metaport/internal/migrate"
)

// table is a minimal column-aligned text table. Widths are computed with
// runewidth so kind names and identifiers with wide runes stay aligned.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func (t *table) write(w io.Writer) {
	widths := t.widths()

	var header strings.Builder
	var rule strings.Builder
	for i, h := range t.headers {
		header.WriteString(runewidth.FillRight(h, widths[i]))
		rule.WriteString(strings.Repeat("-", widths[i]))
		if i < len(t.headers)-1 {
			header.WriteString("  ")
			rule.WriteString("  ")
		}
	}
	fmt.Fprintln(w, color.Bold.Sprint(header.String()))
	fmt.Fprintln(w, rule.String())

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(w, runewidth.FillRight(cell, widths[i]))
			if i < len(row)-1 {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprintln(w)
	}
}

// ExportSummary prints the per-kind export counts and the run footer.
func ExportSummary(w io.Writer, m *migrate.Manifest) {
	fmt.Fprintf(w, "\nExport run %s\n\n", m.RunID)

	t := &table{headers: []string{"KIND", "EXPORTED"}}
	for _, summary := range m.Summaries() {
		t.addRow(string(summary.Kind), fmt.Sprintf("%d", summary.Exported))
	}
	t.write(w)

	total := m.Totals()
	fmt.Fprintf(w, "\nTotal: %s records exported\n",
		color.Green.Sprintf("%d", total.Exported))
}

// ImportSummary prints the per-kind import outcomes, any per-record errors,
// and the run footer.
func ImportSummary(w io.Writer, m *migrate.Manifest) {
	label := "Import run"
	if m.DryRun {
		label = "Import dry run"
	}
	fmt.Fprintf(w, "\n%s %s\n\n", label, m.RunID)

	// Cells stay uncolored: escape sequences would throw off the width
	// calculation.
	t := &table{headers: []string{"KIND", "CREATED", "UPDATED", "SKIPPED", "FAILED"}}
	for _, summary := range m.Summaries() {
		t.addRow(string(summary.Kind),
			fmt.Sprintf("%d", summary.Created),
			fmt.Sprintf("%d", summary.Updated),
			fmt.Sprintf("%d", summary.Skipped),
			fmt.Sprintf("%d", summary.Failed))
	}
	t.write(w)

	for _, summary := range m.Summaries() {
		for _, recErr := range summary.Errors {
			fmt.Fprintf(w, "%s %s %s: %s\n",
				color.Red.Sprint("error:"), summary.Kind, recErr.Identifier, recErr.Message)
		}
	}

	total := m.Totals()
	fmt.Fprintf(w, "\nTotal: %s created, %s updated, %s skipped, %s failed\n",
		color.Green.Sprintf("%d", total.Created),
		color.Cyan.Sprintf("%d", total.Updated),
		color.Yellow.Sprintf("%d", total.Skipped),
		color.Red.Sprintf("%d", total.Failed))
}
