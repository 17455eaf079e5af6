package reporting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	repo "github.com/mamadbah2/hostelbites/internal/repository/sheets"
)

// ErrPublisherDisabled is returned when no spreadsheet is configured.
var ErrPublisherDisabled = errors.New("sheet publishing is not configured")

// TableSource produces the attendance grid, header row first.
type TableSource interface {
	Table(ctx context.Context) ([][]string, error)
}

// Service pushes the current attendance grid to a spreadsheet tab, replacing
// whatever the tab held before.
type Service struct {
	repo      repo.Repository
	source    TableSource
	sheetName string
	logger    *zap.Logger
}

// NewService wires a new publisher. A nil repository yields a disabled publisher.
func NewService(repository repo.Repository, source TableSource, sheetName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repository, source: source, sheetName: sheetName, logger: logger}
}

// Enabled reports whether a spreadsheet is wired.
func (s *Service) Enabled() bool {
	return s != nil && s.repo != nil
}

// Publish clears the tab and writes the grid from A1. It returns the number
// of resident rows written.
func (s *Service) Publish(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, ErrPublisherDisabled
	}

	table, err := s.source.Table(ctx)
	if err != nil {
		return 0, fmt.Errorf("load attendance table: %w", err)
	}

	if err := s.repo.ClearRange(ctx, s.sheetName); err != nil {
		return 0, fmt.Errorf("clear sheet: %w", err)
	}

	if err := s.repo.WriteRange(ctx, s.sheetName+"!A1", toCells(table)); err != nil {
		return 0, fmt.Errorf("write sheet: %w", err)
	}

	rows := len(table) - 1
	if rows < 0 {
		rows = 0
	}
	s.logger.Info("attendance published", zap.String("sheet", s.sheetName), zap.Int("rows", rows))
	return rows, nil
}

func toCells(table [][]string) [][]interface{} {
	cells := make([][]interface{}, 0, len(table))
	for _, row := range table {
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		cells = append(cells, values)
	}
	return cells
}
