package models

import (
	"errors"
	"fmt"
)

// ErrInvalidMeal indicates a value outside the closed set of meal types.
var ErrInvalidMeal = errors.New("invalid meal type")

// MealType enumerates the meals residents can mark as eaten.
type MealType string

const (
	MealBreakfast MealType = "Breakfast"
	MealLunch     MealType = "Lunch"
	MealDinner    MealType = "Dinner"
)

// MealTypes lists every meal in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// ParseMealType converts raw input into a MealType. Matching is exact.
func ParseMealType(value string) (MealType, error) {
	switch MealType(value) {
	case MealBreakfast, MealLunch, MealDinner:
		return MealType(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMeal, value)
	}
}

// Valid reports whether m belongs to the closed set.
func (m MealType) Valid() bool {
	_, err := ParseMealType(string(m))
	return err == nil
}
