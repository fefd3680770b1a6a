package calories

import (
	"math"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

type macros struct {
	kcal, proteins, carbohydrates, fats, fiber float64
}

func baseMacros(ingredients []models.Ingredient) macros {
	var m macros
	for _, ing := range ingredients {
		m.kcal += ing.Kcal
		m.proteins += ing.Proteins
		m.carbohydrates += ing.Carbohydrates
		m.fats += ing.Fats
		m.fiber += ing.Fiber
	}
	return m
}

// ScaleMealToTarget sizes meal to a whole number of servings closest to the
// kcal target for plan.
func ScaleMealToTarget(meal models.Meal, plan MealPlan) (models.ScaledMeal, error) {
	base := baseMacros(meal.Ingredients)
	if base.kcal <= 0 {
		return models.ScaledMeal{}, pkgerrors.New(pkgerrors.CodeInvalidState, "meal has no calories to scale").
			WithDetails(map[string]any{"meal_id": meal.ID.String(), "meal_type": meal.MealType})
	}

	servings := int(math.Round(float64(plan.KcalTarget) / base.kcal))
	s := float64(servings)

	ingredients := make([]models.ScaledIngredient, 0, len(meal.Ingredients))
	for _, ing := range meal.Ingredients {
		ingredients = append(ingredients, models.ScaledIngredient{
			Ingredient: ing,
			TotalNeed:  ing.Quantity * s,
		})
	}

	return models.ScaledMeal{
		ID:                 meal.ID,
		Name:               meal.Name,
		MealType:           meal.MealType,
		Label:              plan.Label,
		KcalTarget:         plan.KcalTarget,
		Servings:           servings,
		Ingredients:        ingredients,
		TotalKcal:          roundInt(base.kcal * s),
		TotalProteins:      roundInt(base.proteins * s),
		TotalCarbohydrates: roundInt(base.carbohydrates * s),
		TotalFats:          roundInt(base.fats * s),
		TotalFiber:         roundInt(base.fiber * s),
	}, nil
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
