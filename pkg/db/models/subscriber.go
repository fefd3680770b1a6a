package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// Subscriber is an account that can own a weekly meal plan. The
// physiological fields are optional until onboarding completes.
type Subscriber struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Email         string        `gorm:"type:text;not null;uniqueIndex"`
	FirstName     string        `gorm:"column:first_name;not null"`
	LastName      string        `gorm:"column:last_name;not null"`
	CustomerRef   *string       `gorm:"column:stripe_customer_id;index"`
	PasswordHash  *string       `gorm:"column:password_hash"`
	Weight        *float64      `gorm:"column:weight"`
	Height        *float64      `gorm:"column:height"`
	Age           *int          `gorm:"column:age"`
	Gender        *enums.Gender `gorm:"column:gender;type:text"`
	ActivityLevel *float64      `gorm:"column:activity_level"`
	Goal          *float64      `gorm:"column:goal"`
	ZipCodeID     *uuid.UUID    `gorm:"column:zip_code_id;type:uuid;index"`
	ZipCode       *ZipCode      `gorm:"foreignKey:ZipCodeID"`
	Plan          *MealPlan     `gorm:"foreignKey:SubscriberID"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscriber) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// LockdownDay returns the weekly cutoff day from the assigned zip code.
func (s *Subscriber) LockdownDay() *int {
	if s == nil || s.ZipCode == nil {
		return nil
	}
	return s.ZipCode.LockdownDay
}

// ZipCode maps a postal code to its delivery cutoff.
type ZipCode struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code        string    `gorm:"type:text;not null;uniqueIndex"`
	LockdownDay *int      `gorm:"column:lockdown_day"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (z *ZipCode) BeforeCreate(*gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}
