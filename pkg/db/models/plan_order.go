package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// PlanOrderWeekIndex enforces one order per plan and ISO week.
const PlanOrderWeekIndex = "idx_plan_orders_plan_week"

// PlanOrder is the confirmed meal selection for one plan week. Amounts are
// fixed at confirmation time.
type PlanOrder struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	PlanID          uuid.UUID                      `gorm:"column:plan_id;type:uuid;not null;uniqueIndex:idx_plan_orders_plan_week,priority:1"`
	Week            int                            `gorm:"column:week;not null;uniqueIndex:idx_plan_orders_plan_week,priority:2"`
	MealsForTheWeek datatypes.JSONType[[]DayMeals] `gorm:"column:meals_for_the_week;not null"`
	TotalAmount     decimal.Decimal                `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingAmount  decimal.Decimal                `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	Currency        enums.Currency                 `gorm:"column:currency;type:text;not null"`
	Status          enums.PlanOrderStatus          `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt       time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *PlanOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// DayMeals is the resolved selection for one delivery day (1-based).
type DayMeals struct {
	Day   int          `json:"day"`
	Meals []ScaledMeal `json:"meals"`
}

// ScaledMeal is a meal snapshot sized to a calorie target.
type ScaledMeal struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	MealType           enums.MealType     `json:"meal_type"`
	Label              string             `json:"label,omitempty"`
	KcalTarget         int                `json:"kcal_target"`
	Servings           int                `json:"servings"`
	Ingredients        []ScaledIngredient `json:"ingredients"`
	TotalKcal          int                `json:"total_kcal"`
	TotalProteins      int                `json:"total_proteins"`
	TotalCarbohydrates int                `json:"total_carbohydrates"`
	TotalFats          int                `json:"total_fats"`
	TotalFiber         int                `json:"total_fiber"`
}

// ScaledIngredient carries the reference values plus the quantity to pack.
type ScaledIngredient struct {
	Ingredient
	TotalNeed float64 `json:"total_need"`
}
