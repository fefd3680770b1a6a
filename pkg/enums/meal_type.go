package enums

import "fmt"

// MealType is the slot of the day a meal is served in.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack1    MealType = "snack1"
	MealTypeSnack2    MealType = "snack2"
	MealTypeSnack3    MealType = "snack3"
)

var validMealTypes = []MealType{
	MealTypeBreakfast,
	MealTypeLunch,
	MealTypeDinner,
	MealTypeSnack1,
	MealTypeSnack2,
	MealTypeSnack3,
}

// String implements fmt.Stringer.
func (m MealType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MealType.
func (m MealType) IsValid() bool {
	for _, candidate := range validMealTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMealType converts raw input into a MealType.
func ParseMealType(value string) (MealType, error) {
	for _, candidate := range validMealTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid meal type %q", value)
}
