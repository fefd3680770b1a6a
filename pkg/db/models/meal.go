package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// Ingredient macros are expressed for the reference Quantity in Unit.
type Ingredient struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"type:text;not null" json:"name"`
	Unit          string    `gorm:"type:text;not null" json:"unit"`
	Quantity      float64   `gorm:"column:quantity;not null" json:"quantity"`
	Kcal          float64   `gorm:"column:kcal;not null" json:"kcal"`
	Proteins      float64   `gorm:"column:proteins;not null" json:"proteins"`
	Carbohydrates float64   `gorm:"column:carbohydrates;not null" json:"carbohydrates"`
	Fats          float64   `gorm:"column:fats;not null" json:"fats"`
	Fiber         float64   `gorm:"column:fiber;not null" json:"fiber"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (i *Ingredient) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Meal is a catalog recipe served in one slot of the day.
type Meal struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name        string         `gorm:"type:text;not null"`
	Description string         `gorm:"type:text"`
	MealType    enums.MealType `gorm:"column:meal_type;type:text;not null;index"`
	Ingredients []Ingredient   `gorm:"many2many:meal_ingredients"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Meal) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// WeeklyMeal is the pool of meals offered during one ISO week.
type WeeklyMeal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Week      int       `gorm:"column:week;not null;uniqueIndex"`
	Meals     []Meal    `gorm:"many2many:weekly_meal_meals"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *WeeklyMeal) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
