package attendance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
	"github.com/mamadbah2/hostelbites/internal/repository/jsonfile"
)

type memStore struct {
	snap    models.Snapshot
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (models.Snapshot, error) {
	if m.loadErr != nil {
		return models.Snapshot{}, m.loadErr
	}
	return cloneSnapshot(m.snap), nil
}

func (m *memStore) Save(_ context.Context, snap models.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = cloneSnapshot(snap)
	m.saves++
	return nil
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	out := models.Snapshot{
		Names: slices.Clone(s.Names),
		State: models.LedgerState{LastReset: s.State.LastReset},
	}
	out.State.Normalize()
	for _, meal := range models.MealTypes {
		out.State.Meals[meal].Eaten = append([]string{}, s.State.Eaten(meal)...)
	}
	return out
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, names ...string) (*Ledger, *memStore, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: testNow}
	store := &memStore{snap: models.Snapshot{
		Names: names,
		State: models.NewLedgerState(testNow.Add(-time.Hour)),
	}}
	ledger := NewLedger(store, Options{
		ExpectedCount: 70,
		Location:      time.UTC,
		Now:           clock.Now,
	}, nil)
	return ledger, store, clock
}

func TestLedger_LunchScenario(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t, "Alice", "Bob", "Carol")

	_, err := ledger.Vote(ctx, "Alice", models.MealLunch)
	require.NoError(t, err)
	status, err := ledger.Vote(ctx, "Bob", models.MealLunch)
	require.NoError(t, err)

	lunch := status.Meals[models.MealLunch]
	assert.Equal(t, []string{"Alice", "Bob"}, lunch.Eaten)
	assert.Equal(t, []string{"Carol"}, lunch.NotEaten)
	assert.Equal(t, 2, lunch.EatenCount)
	assert.Equal(t, 1, lunch.NotEatenCount)
	assert.Equal(t, 70, status.ExpectedCount)

	breakfast := status.Meals[models.MealBreakfast]
	assert.Empty(t, breakfast.Eaten)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, breakfast.NotEaten)
}

func TestLedger_VoteKeepsEatenInVoteOrder(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t, "Alice", "Bob", "Carol")

	for _, name := range []string{"Carol", "Alice"} {
		_, err := ledger.Vote(ctx, name, models.MealDinner)
		require.NoError(t, err)
	}

	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "Alice"}, status.Meals[models.MealDinner].Eaten)
	assert.Equal(t, []string{"Bob"}, status.Meals[models.MealDinner].NotEaten)
}

func TestLedger_DuplicateVoteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice")

	_, err := ledger.Vote(ctx, "Alice", models.MealBreakfast)
	require.NoError(t, err)
	saves := store.saves
	before := cloneSnapshot(store.snap)

	_, err = ledger.Vote(ctx, "Alice", models.MealBreakfast)
	require.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, saves, store.saves)
	assert.Equal(t, before, store.snap)
}

func TestLedger_VoteValidation(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t, "Alice")

	_, err := ledger.Vote(ctx, "Alice", models.MealType("Supper"))
	require.ErrorIs(t, err, ErrInvalidMeal)

	_, err = ledger.Vote(ctx, "   ", models.MealLunch)
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestLedger_UnregisteredVote(t *testing.T) {
	ctx := context.Background()

	t.Run("recorded by default", func(t *testing.T) {
		ledger, store, _ := newTestLedger(t, "Alice")

		status, err := ledger.Vote(ctx, "Mallory", models.MealLunch)
		require.NoError(t, err)
		assert.Equal(t, []string{"Mallory"}, status.Meals[models.MealLunch].Eaten)
		assert.Equal(t, []string{"Alice"}, status.Meals[models.MealLunch].NotEaten)
		assert.Equal(t, []string{"Alice"}, store.snap.Names)
	})

	t.Run("rejected in strict mode", func(t *testing.T) {
		_, store, clock := newTestLedger(t, "Alice")
		ledger := NewLedger(store, Options{Location: time.UTC, Now: clock.Now, StrictRosterVotes: true}, nil)

		_, err := ledger.Vote(ctx, "Mallory", models.MealLunch)
		require.ErrorIs(t, err, ErrNameNotFound)
		assert.Empty(t, store.snap.State.Eaten(models.MealLunch))

		_, err = ledger.Vote(ctx, "Alice", models.MealLunch)
		require.NoError(t, err)
	})
}

func TestLedger_ResetMealOnlyTouchesThatMeal(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice", "Bob")
	lastReset := store.snap.State.LastReset

	for _, meal := range models.MealTypes {
		_, err := ledger.Vote(ctx, "Alice", meal)
		require.NoError(t, err)
	}

	status, err := ledger.ResetMeal(ctx, models.MealLunch)
	require.NoError(t, err)

	assert.Empty(t, status.Meals[models.MealLunch].Eaten)
	assert.Equal(t, []string{"Alice"}, status.Meals[models.MealBreakfast].Eaten)
	assert.Equal(t, []string{"Alice"}, status.Meals[models.MealDinner].Eaten)
	assert.Equal(t, lastReset, store.snap.State.LastReset)

	_, err = ledger.ResetMeal(ctx, models.MealType("brunch"))
	require.ErrorIs(t, err, ErrInvalidMeal)
}

func TestLedger_ResetAllAdvancesLastReset(t *testing.T) {
	ctx := context.Background()
	ledger, store, clock := newTestLedger(t, "Alice", "Bob")

	_, err := ledger.Vote(ctx, "Alice", models.MealBreakfast)
	require.NoError(t, err)
	_, err = ledger.Vote(ctx, "Bob", models.MealDinner)
	require.NoError(t, err)

	clock.now = testNow.Add(30 * time.Minute)
	status, err := ledger.ResetAll(ctx)
	require.NoError(t, err)

	for _, meal := range models.MealTypes {
		assert.Empty(t, status.Meals[meal].Eaten, meal)
		assert.Equal(t, 2, status.Meals[meal].NotEatenCount, meal)
	}
	assert.Equal(t, clock.now, store.snap.State.LastReset)
}

func TestLedger_RolloverOnNewCalendarDay(t *testing.T) {
	ctx := context.Background()
	yesterday := time.Date(2025, time.March, 13, 23, 59, 59, 0, time.UTC)
	clock := &fakeClock{now: time.Date(2025, time.March, 14, 0, 0, 30, 0, time.UTC)}

	state := models.NewLedgerState(yesterday)
	state.Meals[models.MealBreakfast].Eaten = []string{"Alice"}
	store := &memStore{snap: models.Snapshot{Names: []string{"Alice"}, State: state}}
	ledger := NewLedger(store, Options{Location: time.UTC, Now: clock.Now}, nil)

	status, err := ledger.Status(ctx)
	require.NoError(t, err)

	assert.Empty(t, status.Meals[models.MealBreakfast].Eaten)
	assert.Equal(t, []string{"Alice"}, status.Meals[models.MealBreakfast].NotEaten)
	assert.Equal(t, clock.now, store.snap.State.LastReset)
	assert.Empty(t, store.snap.State.Eaten(models.MealBreakfast))
}

func TestLedger_RolloverUsesConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+3", 3*60*60)

	// 22:00 UTC on the 13th is already 01:00 on the 14th at UTC+3.
	lastReset := time.Date(2025, time.March, 13, 20, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.March, 13, 22, 0, 0, 0, time.UTC)

	state := models.NewLedgerState(lastReset)
	state.Meals[models.MealDinner].Eaten = []string{"Alice"}
	store := &memStore{snap: models.Snapshot{Names: []string{"Alice"}, State: state}}

	utcLedger := NewLedger(store, Options{Location: time.UTC, Now: func() time.Time { return now }}, nil)
	rolled, err := utcLedger.Rollover(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	localLedger := NewLedger(store, Options{Location: loc, Now: func() time.Time { return now }}, nil)
	rolled, err = localLedger.Rollover(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Empty(t, store.snap.State.Eaten(models.MealDinner))

	rolled, err = localLedger.Rollover(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)
}

func TestLedger_SameDayDoesNotRollOver(t *testing.T) {
	ctx := context.Background()
	ledger, store, clock := newTestLedger(t, "Alice")

	_, err := ledger.Vote(ctx, "Alice", models.MealLunch)
	require.NoError(t, err)

	clock.now = time.Date(2025, time.March, 14, 23, 59, 59, 0, time.UTC)
	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, status.Meals[models.MealLunch].Eaten)
	assert.Equal(t, testNow.Add(-time.Hour), store.snap.State.LastReset)
}

func TestLedger_FreshStoreIsInitialized(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: testNow}
	store := &memStore{}
	ledger := NewLedger(store, Options{Location: time.UTC, Now: clock.Now}, nil)

	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	for _, meal := range models.MealTypes {
		assert.NotNil(t, status.Meals[meal].Eaten)
		assert.Empty(t, status.Meals[meal].Eaten)
	}
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, testNow, store.snap.State.LastReset)
}

func TestLedger_AddName(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newTestLedger(t, "Carol")

	names, err := ledger.AddName(ctx, "  Alice  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, names)

	_, err = ledger.AddName(ctx, "Alice")
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = ledger.AddName(ctx, " \t ")
	require.ErrorIs(t, err, ErrEmptyName)

	roster, err := ledger.Roster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, roster)
}

func TestLedger_RenameCascadesIntoVotes(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice", "Bob")

	_, err := ledger.Vote(ctx, "Bob", models.MealBreakfast)
	require.NoError(t, err)
	_, err = ledger.Vote(ctx, "Alice", models.MealBreakfast)
	require.NoError(t, err)

	names, err := ledger.RenameName(ctx, "Alice", " Zoe ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Zoe"}, names)

	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Zoe"}, status.Meals[models.MealBreakfast].Eaten)
	for _, meal := range models.MealTypes {
		assert.NotContains(t, store.snap.State.Eaten(meal), "Alice")
	}
	assert.NotContains(t, store.snap.Names, "Alice")
}

func TestLedger_RenameErrors(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice", "Bob")

	_, err := ledger.RenameName(ctx, "Alice", "   ")
	require.ErrorIs(t, err, ErrEmptyName)

	_, err = ledger.RenameName(ctx, "Nobody", "Zoe")
	require.ErrorIs(t, err, ErrNameNotFound)

	_, err = ledger.RenameName(ctx, "Alice", "Bob")
	require.ErrorIs(t, err, ErrDuplicateName)

	names, err := ledger.RenameName(ctx, "Alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names)
	assert.Equal(t, []string{"Alice", "Bob"}, store.snap.Names)
}

func TestLedger_RenameOntoUnregisteredVoteDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice")

	_, err := ledger.Vote(ctx, "Alice", models.MealLunch)
	require.NoError(t, err)
	_, err = ledger.Vote(ctx, "Zoe", models.MealLunch)
	require.NoError(t, err)

	_, err = ledger.RenameName(ctx, "Alice", "Zoe")
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoe"}, store.snap.State.Eaten(models.MealLunch))
}

func TestLedger_DeleteCascadesAndReaddStartsClean(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Alice", "Bob")

	for _, meal := range models.MealTypes {
		_, err := ledger.Vote(ctx, "Alice", meal)
		require.NoError(t, err)
	}

	names, err := ledger.DeleteName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names)
	for _, meal := range models.MealTypes {
		assert.NotContains(t, store.snap.State.Eaten(meal), "Alice")
	}

	_, err = ledger.AddName(ctx, "Alice")
	require.NoError(t, err)

	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	for _, meal := range models.MealTypes {
		assert.Empty(t, status.Meals[meal].Eaten)
		assert.Contains(t, status.Meals[meal].NotEaten, "Alice")
	}

	_, err = ledger.DeleteName(ctx, "Nobody")
	require.ErrorIs(t, err, ErrNameNotFound)
}

func TestLedger_EatenAndNotEatenPartitionRoster(t *testing.T) {
	ctx := context.Background()
	roster := []string{"Alice", "Bob", "Carol", "Dave"}
	ledger, _, _ := newTestLedger(t, roster...)

	steps := []func() error{
		func() error { _, err := ledger.Vote(ctx, "Alice", models.MealBreakfast); return err },
		func() error { _, err := ledger.Vote(ctx, "Dave", models.MealBreakfast); return err },
		func() error { _, err := ledger.Vote(ctx, "Bob", models.MealLunch); return err },
		func() error { _, err := ledger.ResetMeal(ctx, models.MealBreakfast); return err },
		func() error { _, err := ledger.Vote(ctx, "Carol", models.MealBreakfast); return err },
		func() error { _, err := ledger.Vote(ctx, "Carol", models.MealDinner); return err },
		func() error { _, err := ledger.Vote(ctx, "Alice", models.MealDinner); return err },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)

		status, err := ledger.Status(ctx)
		require.NoError(t, err)
		for _, meal := range models.MealTypes {
			ms := status.Meals[meal]
			union := append(slices.Clone(ms.Eaten), ms.NotEaten...)
			slices.Sort(union)
			assert.Equal(t, roster, union, "meal %s after step %d", meal, i)
			for _, name := range ms.Eaten {
				assert.NotContains(t, ms.NotEaten, name)
			}
			assert.Equal(t, len(roster), ms.EatenCount+ms.NotEatenCount)
		}
	}
}

func TestLedger_BackupReturnsRawSnapshot(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newTestLedger(t, "Bob", "Alice")
	store.snap.State.Meals[models.MealLunch].Eaten = []string{"Bob"}

	backup, err := ledger.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, backup.Names, "stored roster order is kept")
	assert.Equal(t, []string{"Bob"}, backup.Data.Eaten(models.MealLunch))
	assert.Equal(t, testNow.Add(-time.Hour), backup.Data.LastReset)
	assert.Zero(t, store.saves)

	roster, err := ledger.Roster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, roster)
}

func TestLedger_BackupAppliesRollover(t *testing.T) {
	ctx := context.Background()
	ledger, store, clock := newTestLedger(t, "Alice")
	store.snap.State.Meals[models.MealDinner].Eaten = []string{"Alice"}
	clock.now = testNow.Add(24 * time.Hour)

	backup, err := ledger.Backup(ctx)
	require.NoError(t, err)
	assert.Empty(t, backup.Data.Eaten(models.MealDinner))
	assert.Equal(t, clock.now, backup.Data.LastReset)
}

func TestLedger_ConcurrentVotesAreNotLost(t *testing.T) {
	ctx := context.Background()
	const voters = 50

	names := make([]string, voters)
	for i := range names {
		names[i] = fmt.Sprintf("Resident %02d", i)
	}
	ledger, store, _ := newTestLedger(t, names...)

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := ledger.Vote(ctx, name, models.MealDinner); err != nil {
				errs <- err
			}
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	status, err := ledger.Status(ctx)
	require.NoError(t, err)
	dinner := status.Meals[models.MealDinner]
	assert.Equal(t, voters, dinner.EatenCount)
	assert.ElementsMatch(t, names, dinner.Eaten)
	assert.Empty(t, dinner.NotEaten)
	assert.Equal(t, voters, store.saves)
}

func TestLedger_ConcurrentAddNameKeepsEveryName(t *testing.T) {
	ctx := context.Background()
	const residents = 50

	ledger, _, _ := newTestLedger(t)

	names := make([]string, residents)
	var wg sync.WaitGroup
	errs := make(chan error, residents)
	for i := range names {
		names[i] = fmt.Sprintf("Resident %02d", i)
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := ledger.AddName(ctx, name); err != nil {
				errs <- err
			}
		}(names[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	roster, err := ledger.Roster(ctx)
	require.NoError(t, err)
	assert.Equal(t, names, roster)
}

func TestLedger_PersistenceFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	ledger, store, _ := newTestLedger(t, "Alice")
	store.loadErr = boom
	_, err := ledger.Status(ctx)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, boom)

	store.loadErr = nil
	store.saveErr = boom
	_, err = ledger.AddName(ctx, "Bob")
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, []string{"Alice"}, store.snap.Names)
}

func TestLedger_WithFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := jsonfile.NewStore(filepath.Join(dir, "data.json"), filepath.Join(dir, "names.json"), nil)
	require.NoError(t, err)

	clock := &fakeClock{now: testNow}
	ledger := NewLedger(store, Options{Location: time.UTC, Now: clock.Now}, nil)

	_, err = ledger.AddName(ctx, "Alice")
	require.NoError(t, err)
	_, err = ledger.Vote(ctx, "Alice", models.MealBreakfast)
	require.NoError(t, err)

	reopened := NewLedger(store, Options{Location: time.UTC, Now: clock.Now}, nil)
	status, err := reopened.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, status.Meals[models.MealBreakfast].Eaten)

	clock.now = testNow.Add(24 * time.Hour)
	status, err = reopened.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Meals[models.MealBreakfast].Eaten)
}
