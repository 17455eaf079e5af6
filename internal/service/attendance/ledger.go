package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
	"github.com/mamadbah2/hostelbites/internal/repository"
)

var (
	// ErrInvalidMeal is returned for meals outside Breakfast, Lunch and Dinner.
	ErrInvalidMeal = models.ErrInvalidMeal
	// ErrEmptyName is returned when a name is blank after trimming.
	ErrEmptyName = errors.New("name cannot be empty")
	// ErrDuplicateVote is returned when a name already ate the requested meal.
	ErrDuplicateVote = errors.New("already voted")
	// ErrDuplicateName is returned when the roster already holds the name.
	ErrDuplicateName = errors.New("name already exists")
	// ErrNameNotFound is returned when the roster does not hold the name.
	ErrNameNotFound = errors.New("name not found")
	// ErrPersistence wraps every failure of the backing store.
	ErrPersistence = errors.New("persistence failure")
)

// Options tunes a Ledger. Zero values fall back to sensible defaults.
type Options struct {
	ExpectedCount     int
	Location          *time.Location
	StrictRosterVotes bool
	Now               func() time.Time
}

// Ledger owns the roster and the daily attendance records. All operations
// run load, mutate and persist under one mutex.
type Ledger struct {
	store  repository.Store
	logger *zap.Logger

	expected int
	loc      *time.Location
	strict   bool
	now      func() time.Time

	mu sync.Mutex
}

// NewLedger wires a ledger on top of store.
func NewLedger(store repository.Store, opts Options, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:    store,
		logger:   logger,
		expected: opts.ExpectedCount,
		loc:      opts.Location,
		strict:   opts.StrictRosterVotes,
		now:      opts.Now,
	}
}

// Status returns the per-meal view, rolling the day over first if needed.
func (l *Ledger) Status(ctx context.Context) (models.StatusView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return models.StatusView{}, err
	}
	return l.view(snap), nil
}

// Vote records that name ate meal today.
func (l *Ledger) Vote(ctx context.Context, name string, meal models.MealType) (models.StatusView, error) {
	if !meal.Valid() {
		return models.StatusView{}, fmt.Errorf("%w: %q", ErrInvalidMeal, meal)
	}
	if strings.TrimSpace(name) == "" {
		return models.StatusView{}, ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return models.StatusView{}, err
	}

	if l.strict && !slices.Contains(snap.Names, name) {
		return models.StatusView{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}

	record := snap.State.Meals[meal]
	if slices.Contains(record.Eaten, name) {
		return models.StatusView{}, fmt.Errorf("%w: %s for %s", ErrDuplicateVote, name, meal)
	}

	record.Eaten = append(record.Eaten, name)
	if err := l.save(ctx, snap); err != nil {
		return models.StatusView{}, err
	}

	l.logger.Info("vote recorded", zap.String("name", name), zap.String("meal", string(meal)))
	return l.view(snap), nil
}

// ResetMeal clears one meal without touching the reset timestamp.
func (l *Ledger) ResetMeal(ctx context.Context, meal models.MealType) (models.StatusView, error) {
	if !meal.Valid() {
		return models.StatusView{}, fmt.Errorf("%w: %q", ErrInvalidMeal, meal)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return models.StatusView{}, err
	}

	snap.State.Meals[meal].Eaten = []string{}
	if err := l.save(ctx, snap); err != nil {
		return models.StatusView{}, err
	}

	l.logger.Info("meal reset", zap.String("meal", string(meal)))
	return l.view(snap), nil
}

// ResetAll clears every meal and moves the reset timestamp to now.
func (l *Ledger) ResetAll(ctx context.Context) (models.StatusView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return models.StatusView{}, err
	}

	clearMeals(&snap.State, l.now())
	if err := l.save(ctx, snap); err != nil {
		return models.StatusView{}, err
	}

	l.logger.Info("all meals reset")
	return l.view(snap), nil
}

// Rollover applies the daily reset if the calendar day changed since the last
// reset and reports whether it did.
func (l *Ledger) Rollover(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.loadRaw(ctx)
	if err != nil {
		return false, err
	}
	return l.rollover(ctx, &snap)
}

// Roster returns the registered names in sorted order.
func (l *Ledger) Roster(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Names, nil
}

// AddName registers a trimmed name.
func (l *Ledger) AddName(ctx context.Context, name string) ([]string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	if slices.Contains(snap.Names, trimmed) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, trimmed)
	}

	snap.Names = append(snap.Names, trimmed)
	sort.Strings(snap.Names)
	if err := l.save(ctx, snap); err != nil {
		return nil, err
	}

	l.logger.Info("name added", zap.String("name", trimmed))
	return snap.Names, nil
}

// RenameName replaces oldName with newName in the roster and in every meal,
// keeping the votes oldName already cast.
func (l *Ledger) RenameName(ctx context.Context, oldName, newName string) ([]string, error) {
	trimmed := strings.TrimSpace(newName)
	if trimmed == "" {
		return nil, ErrEmptyName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := slices.Index(snap.Names, oldName)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, oldName)
	}
	if oldName != trimmed && slices.Contains(snap.Names, trimmed) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, trimmed)
	}

	snap.Names[idx] = trimmed
	sort.Strings(snap.Names)

	for _, meal := range models.MealTypes {
		record := snap.State.Meals[meal]
		pos := slices.Index(record.Eaten, oldName)
		if pos == -1 || oldName == trimmed {
			continue
		}
		if slices.Contains(record.Eaten, trimmed) {
			// An unregistered vote already carries the new name.
			record.Eaten = slices.Delete(record.Eaten, pos, pos+1)
			continue
		}
		record.Eaten[pos] = trimmed
	}

	if err := l.save(ctx, snap); err != nil {
		return nil, err
	}

	l.logger.Info("name renamed", zap.String("old", oldName), zap.String("new", trimmed))
	return snap.Names, nil
}

// DeleteName removes name from the roster and from every meal.
func (l *Ledger) DeleteName(ctx context.Context, name string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := slices.Index(snap.Names, name)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	snap.Names = slices.Delete(snap.Names, idx, idx+1)

	for _, meal := range models.MealTypes {
		record := snap.State.Meals[meal]
		record.Eaten = slices.DeleteFunc(record.Eaten, func(n string) bool { return n == name })
	}

	if err := l.save(ctx, snap); err != nil {
		return nil, err
	}

	l.logger.Info("name deleted", zap.String("name", name))
	return snap.Names, nil
}

// Backup returns the persisted roster and state as they are stored, roster
// order included. Only the rollover guard runs first.
func (l *Ledger) Backup(ctx context.Context) (models.Backup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.loadRaw(ctx)
	if err != nil {
		return models.Backup{}, err
	}
	if _, err := l.rollover(ctx, &snap); err != nil {
		return models.Backup{}, err
	}
	return models.Backup{Names: snap.Names, Data: snap.State}, nil
}

// load reads the snapshot, applies the rollover guard and sorts the roster.
func (l *Ledger) load(ctx context.Context) (models.Snapshot, error) {
	snap, err := l.loadRaw(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	if _, err := l.rollover(ctx, &snap); err != nil {
		return models.Snapshot{}, err
	}
	sort.Strings(snap.Names)
	return snap, nil
}

func (l *Ledger) loadRaw(ctx context.Context) (models.Snapshot, error) {
	snap, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Error("failed to load ledger", zap.Error(err))
		return models.Snapshot{}, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	snap.State.Normalize()
	if snap.Names == nil {
		snap.Names = []string{}
	}
	return snap, nil
}

func (l *Ledger) save(ctx context.Context, snap models.Snapshot) error {
	if err := l.store.Save(ctx, snap); err != nil {
		l.logger.Error("failed to persist ledger", zap.Error(err))
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	return nil
}

// rollover clears all meals and persists when the calendar day of the last
// reset differs from today in the ledger's location.
func (l *Ledger) rollover(ctx context.Context, snap *models.Snapshot) (bool, error) {
	now := l.now()
	if sameDay(snap.State.LastReset, now, l.loc) {
		return false, nil
	}

	previous := snap.State.LastReset
	clearMeals(&snap.State, now)
	if err := l.save(ctx, *snap); err != nil {
		return false, err
	}

	l.logger.Info("daily rollover applied", zap.Time("previous_reset", previous), zap.Time("reset_at", now))
	return true, nil
}

func (l *Ledger) view(snap models.Snapshot) models.StatusView {
	view := models.StatusView{
		Meals:         make(map[models.MealType]models.MealStatus, len(models.MealTypes)),
		ExpectedCount: l.expected,
	}

	for _, meal := range models.MealTypes {
		eaten := snap.State.Eaten(meal)
		eatenSet := make(map[string]struct{}, len(eaten))
		for _, name := range eaten {
			eatenSet[name] = struct{}{}
		}

		notEaten := make([]string, 0, len(snap.Names))
		for _, name := range snap.Names {
			if _, ok := eatenSet[name]; !ok {
				notEaten = append(notEaten, name)
			}
		}

		view.Meals[meal] = models.MealStatus{
			Eaten:         slices.Clone(eaten),
			NotEaten:      notEaten,
			EatenCount:    len(eaten),
			NotEatenCount: len(snap.Names) - len(eaten),
		}
	}

	return view
}

func clearMeals(state *models.LedgerState, now time.Time) {
	state.Normalize()
	for _, meal := range models.MealTypes {
		state.Meals[meal].Eaten = []string{}
	}
	state.LastReset = now
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
