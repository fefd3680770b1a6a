package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// MealPlanSubscriberIndex allows one plan per subscriber.
const MealPlanSubscriberIndex = "idx_meal_plans_subscriber_id"

// MealPlan is the weekly plan a subscriber pays for. ConfirmOrderWeek is the
// ISO week the subscriber may confirm next; it only ever moves forward.
type MealPlan struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SubscriberID     uuid.UUID        `gorm:"column:subscriber_id;type:uuid;not null;uniqueIndex"`
	NumberOfDays     int              `gorm:"column:number_of_days;not null"`
	MealsPerDay      int              `gorm:"column:meals_per_day;not null"`
	Status           enums.PlanStatus `gorm:"column:status;type:text;not null;default:'inactive'"`
	ConfirmOrderWeek *int             `gorm:"column:confirm_order_week"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (MealPlan) TableName() string {
	return "meal_plans"
}

func (p *MealPlan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
