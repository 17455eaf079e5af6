package attendance

import (
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strings"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

// EatenMark fills a meal column for residents who ate it.
const EatenMark = "✓"

// Table returns the attendance grid: a header row followed by one row per
// roster name with EatenMark in each meal column the name ate.
func (l *Ledger) Table(ctx context.Context) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return buildTable(snap), nil
}

// ExportCSV renders Table as CSV text with a trailing newline per row.
func (l *Ledger) ExportCSV(ctx context.Context) (string, error) {
	table, err := l.Table(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(table); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}
	return sb.String(), nil
}

func buildTable(snap models.Snapshot) [][]string {
	header := make([]string, 0, len(models.MealTypes)+1)
	header = append(header, "Name")
	for _, meal := range models.MealTypes {
		header = append(header, string(meal))
	}

	table := make([][]string, 0, len(snap.Names)+1)
	table = append(table, header)

	for _, name := range snap.Names {
		row := make([]string, 0, len(header))
		row = append(row, name)
		for _, meal := range models.MealTypes {
			mark := ""
			if slices.Contains(snap.State.Eaten(meal), name) {
				mark = EatenMark
			}
			row = append(row, mark)
		}
		table = append(table, row)
	}

	return table
}
