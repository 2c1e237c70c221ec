// internal/report/report.go

// Package report aggregates per-condition results into the summary CSV and a
// styled terminal table. Row order is whatever the sweep produced; nothing
// here re-sorts by any statistic.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/numleak/internal/ablation"
)

// Header is the fixed column order of the summary artifact.
var Header = []string{"mode", "condition", "turns", "out_path", "n", "detected", "percent", "avg_prob", "hallucination_rate"}

// WriteCSV writes the summary table. An undefined hallucination rate becomes
// an empty cell, not a zero.
func WriteCSV(path string, results []ablation.ConditionResult) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary directory %q: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file %q: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write(row(r)); err != nil {
			return fmt.Errorf("write summary row for %s: %w", r.OutPath, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush summary file %q: %w", path, err)
	}
	return nil
}

func row(r ablation.ConditionResult) []string {
	rate := ""
	if r.HallucinationRate != nil {
		rate = formatFloat(*r.HallucinationRate)
	}
	return []string{
		r.Mode,
		r.Condition,
		strconv.Itoa(r.Turns),
		r.OutPath,
		strconv.Itoa(r.N),
		strconv.Itoa(r.Detected),
		formatFloat(r.Percent),
		formatFloat(r.AvgProb),
		rate,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render returns the summary as a styled terminal table.
func Render(results []ablation.ConditionResult) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	cellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, Header)
	for _, r := range results {
		rows = append(rows, row(r))
	}

	widths := make([]int, len(Header))
	for _, cells := range rows {
		for i, cell := range cells {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for rowIdx, cells := range rows {
		line := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell + strings.Repeat(" ", widths[i]-len(cell))
			if rowIdx == 0 {
				line[i] = headerStyle.Render(padded)
			} else {
				line[i] = cellStyle.Render(padded)
			}
		}
		b.WriteString(strings.Join(line, "  "))
		b.WriteByte('\n')
	}
	return b.String()
}
