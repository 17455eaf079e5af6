package models

import "time"

// MealRecord holds the names that ate a meal today, in vote order.
type MealRecord struct {
	Eaten []string `json:"eaten" bson:"eaten"`
}

// LedgerState is the persisted attendance document.
type LedgerState struct {
	Meals     map[MealType]*MealRecord `json:"meals" bson:"meals"`
	LastReset time.Time                `json:"last_reset" bson:"last_reset"`
}

// NewLedgerState returns a state with three empty meals reset at now.
func NewLedgerState(now time.Time) LedgerState {
	state := LedgerState{
		Meals:     make(map[MealType]*MealRecord, len(MealTypes)),
		LastReset: now,
	}
	state.Normalize()
	return state
}

// Normalize guarantees every meal has a non-nil record with a non-nil slice,
// so encoded documents always carry `"eaten": []` instead of null.
func (s *LedgerState) Normalize() {
	if s.Meals == nil {
		s.Meals = make(map[MealType]*MealRecord, len(MealTypes))
	}
	for _, meal := range MealTypes {
		record, ok := s.Meals[meal]
		if !ok || record == nil {
			record = &MealRecord{}
			s.Meals[meal] = record
		}
		if record.Eaten == nil {
			record.Eaten = []string{}
		}
	}
}

// Eaten returns the eaten list for meal, or nil when the meal is unknown.
func (s LedgerState) Eaten(meal MealType) []string {
	if record, ok := s.Meals[meal]; ok && record != nil {
		return record.Eaten
	}
	return nil
}

// Snapshot bundles the roster and attendance state as persisted by a store.
type Snapshot struct {
	Names []string
	State LedgerState
}

// Backup mirrors the downloadable backup file.
type Backup struct {
	Names []string    `json:"names"`
	Data  LedgerState `json:"data"`
}

// MealStatus is the derived attendance view for a single meal.
type MealStatus struct {
	Eaten         []string `json:"eaten"`
	NotEaten      []string `json:"notEaten"`
	EatenCount    int      `json:"eatenCount"`
	NotEatenCount int      `json:"notEatenCount"`
}

// StatusView is returned by every status-producing ledger call.
type StatusView struct {
	Meals         map[MealType]MealStatus `json:"meals"`
	ExpectedCount int                     `json:"expectedCount"`
}
