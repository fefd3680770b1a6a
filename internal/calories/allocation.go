package calories

import (
	"math"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// Allocation is the share of daily calories assigned to one meal slot.
type Allocation struct {
	MealType   enums.MealType
	Label      string
	Percentage float64
}

// MealPlan is an allocation resolved against a concrete calorie need.
type MealPlan struct {
	MealType   enums.MealType
	Label      string
	KcalTarget int
}

var (
	fourMeals = []Allocation{
		{MealType: enums.MealTypeLunch, Label: "Lunch", Percentage: 30},
		{MealType: enums.MealTypeSnack1, Label: "Snack 1", Percentage: 15},
		{MealType: enums.MealTypeDinner, Label: "Dinner", Percentage: 40},
		{MealType: enums.MealTypeSnack2, Label: "Snack 2", Percentage: 15},
	}
	fiveMeals = []Allocation{
		{MealType: enums.MealTypeBreakfast, Label: "Breakfast", Percentage: 21},
		{MealType: enums.MealTypeSnack1, Label: "Snack 1", Percentage: 9},
		{MealType: enums.MealTypeLunch, Label: "Lunch", Percentage: 30},
		{MealType: enums.MealTypeDinner, Label: "Dinner", Percentage: 31},
		{MealType: enums.MealTypeSnack2, Label: "Snack 2", Percentage: 9},
	}
	sixMeals = []Allocation{
		{MealType: enums.MealTypeBreakfast, Label: "Breakfast", Percentage: 18},
		{MealType: enums.MealTypeSnack1, Label: "Snack 1", Percentage: 9},
		{MealType: enums.MealTypeLunch, Label: "Lunch", Percentage: 27},
		{MealType: enums.MealTypeSnack2, Label: "Snack 2", Percentage: 9},
		{MealType: enums.MealTypeDinner, Label: "Dinner", Percentage: 28},
		{MealType: enums.MealTypeSnack3, Label: "Snack 3", Percentage: 9},
	}
)

// MealAllocations returns the split for mealsPerDay. Anything other than 5
// or 6 gets the 4 meal table.
func MealAllocations(mealsPerDay int) []Allocation {
	var table []Allocation
	switch mealsPerDay {
	case 5:
		table = fiveMeals
	case 6:
		table = sixMeals
	default:
		table = fourMeals
	}
	out := make([]Allocation, len(table))
	copy(out, table)
	return out
}

// MealPlansForNeed turns the allocation table into whole-kcal targets.
func MealPlansForNeed(mealsPerDay int, kcalNeed float64) []MealPlan {
	allocations := MealAllocations(mealsPerDay)
	plans := make([]MealPlan, 0, len(allocations))
	for _, a := range allocations {
		plans = append(plans, MealPlan{
			MealType:   a.MealType,
			Label:      a.Label,
			KcalTarget: int(math.Round(kcalNeed / 100 * a.Percentage)),
		})
	}
	return plans
}

// PlanFor finds the target for mealType, if the day has such a slot.
func PlanFor(plans []MealPlan, mealType enums.MealType) (MealPlan, bool) {
	for _, p := range plans {
		if p.MealType == mealType {
			return p, true
		}
	}
	return MealPlan{}, false
}
