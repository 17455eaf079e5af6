package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

// Store keeps the roster and the ledger state in two JSON documents.
type Store struct {
	dataPath  string
	namesPath string
	logger    *zap.Logger
}

// NewStore builds a file backed store. Files are created lazily on first save.
func NewStore(dataPath, namesPath string, logger *zap.Logger) (*Store, error) {
	if dataPath == "" || namesPath == "" {
		return nil, errors.New("data and names paths must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dataPath: dataPath, namesPath: namesPath, logger: logger}, nil
}

// Load reads both documents. Missing files yield an empty snapshot.
func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}

	names, err := s.loadNames()
	if err != nil {
		return models.Snapshot{}, err
	}

	state, err := s.loadState()
	if err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{Names: names, State: state}, nil
}

// Save writes the names document first, then the ledger document. When the
// ledger write fails the previous names document is put back, so a failed
// save leaves both files as they were.
func (s *Store) Save(ctx context.Context, snapshot models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	previous, err := os.ReadFile(s.namesPath)
	existed := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read names file: %w", err)
	}

	names := snapshot.Names
	if names == nil {
		names = []string{}
	}
	if err := writeJSON(s.namesPath, names); err != nil {
		return fmt.Errorf("write names file: %w", err)
	}

	state := snapshot.State
	state.Normalize()
	if err := writeJSON(s.dataPath, state); err != nil {
		if rerr := s.restoreNames(previous, existed); rerr != nil {
			s.logger.Error("failed to restore names file", zap.String("path", s.namesPath), zap.Error(rerr))
			return fmt.Errorf("write data file: %w (restore names: %v)", err, rerr)
		}
		return fmt.Errorf("write data file: %w", err)
	}

	s.logger.Debug("ledger files written", zap.String("data", s.dataPath), zap.Int("names", len(names)))
	return nil
}

// restoreNames puts the names document back to its state before a save.
func (s *Store) restoreNames(previous []byte, existed bool) error {
	if !existed {
		if err := os.Remove(s.namesPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeFile(s.namesPath, previous)
}

func (s *Store) loadNames() ([]string, error) {
	raw, err := os.ReadFile(s.namesPath)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode names file %s: %w", s.namesPath, err)
	}

	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered, nil
}

func (s *Store) loadState() (models.LedgerState, error) {
	var state models.LedgerState

	raw, err := os.ReadFile(s.dataPath)
	if errors.Is(err, os.ErrNotExist) {
		state.Normalize()
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read data file: %w", err)
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode data file %s: %w", s.dataPath, err)
	}
	state.Normalize()
	return state, nil
}

// writeJSON replaces path atomically with the indented encoding of value.
func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, payload)
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
