package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS names (
    name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS votes (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    meal TEXT NOT NULL CHECK (meal IN ('Breakfast', 'Lunch', 'Dinner')),
    UNIQUE (name, meal)
);

CREATE INDEX IF NOT EXISTS idx_votes_meal ON votes(meal);

CREATE TABLE IF NOT EXISTS ledger_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_reset TEXT NOT NULL
);
`

// Store keeps the roster in a names table and each meal's eaten set as rows of
// a votes table keyed by (name, meal).
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens the database at dataSourceName and creates the schema.
func NewStore(ctx context.Context, dataSourceName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Load reads the roster, the votes in insertion order and the reset marker.
func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	names, err := s.loadNames(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}

	var state models.LedgerState
	state.Normalize()

	rows, err := s.db.QueryContext(ctx, `SELECT name, meal FROM votes ORDER BY seq`)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, meal string
		if err := rows.Scan(&name, &meal); err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to scan vote: %w", err)
		}
		mealType, err := models.ParseMealType(meal)
		if err != nil {
			s.logger.Warn("skip vote with unknown meal", zap.String("name", name), zap.String("meal", meal))
			continue
		}
		record := state.Meals[mealType]
		record.Eaten = append(record.Eaten, name)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("error iterating vote rows: %w", err)
	}
	// Release the single connection before the next query.
	_ = rows.Close()

	var lastReset string
	err = s.db.QueryRowContext(ctx, `SELECT last_reset FROM ledger_meta WHERE id = 1`).Scan(&lastReset)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return models.Snapshot{}, fmt.Errorf("failed to query last reset: %w", err)
	default:
		parsed, err := time.Parse(time.RFC3339Nano, lastReset)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to parse last reset %q: %w", lastReset, err)
		}
		state.LastReset = parsed
	}

	return models.Snapshot{Names: names, State: state}, nil
}

// Save replaces the stored roster and votes inside one transaction.
func (s *Store) Save(ctx context.Context, snapshot models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM names`); err != nil {
		return fmt.Errorf("failed to clear names: %w", err)
	}
	for _, name := range snapshot.Names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO names (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to insert name %q: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes`); err != nil {
		return fmt.Errorf("failed to clear votes: %w", err)
	}
	for _, meal := range models.MealTypes {
		for _, name := range snapshot.State.Eaten(meal) {
			_, err := tx.ExecContext(ctx, `INSERT INTO votes (name, meal) VALUES (?, ?)`, name, string(meal))
			if err != nil {
				return fmt.Errorf("failed to insert vote %q/%s: %w", name, meal, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (id, last_reset) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_reset = excluded.last_reset
	`, snapshot.State.LastReset.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store last reset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM names ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating name rows: %w", err)
	}
	return names, nil
}
