package meals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
)

// Repository reads the meal catalog. Meals are reference data here; their
// lifecycle is owned by the catalog admin tools.
type Repository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Meal, error)
	WeeklyPool(ctx context.Context, week int) ([]models.Meal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a meals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Meal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var meals []models.Meal
	err := r.db.WithContext(ctx).
		Preload("Ingredients").
		Where("id IN ?", ids).
		Find(&meals).Error
	if err != nil {
		return nil, err
	}
	return meals, nil
}

// WeeklyPool returns the meals offered in week, or nothing when no weekly
// menu was published.
func (r *repository) WeeklyPool(ctx context.Context, week int) ([]models.Meal, error) {
	var weekly models.WeeklyMeal
	err := r.db.WithContext(ctx).
		Preload("Meals.Ingredients").
		Where("week = ?", week).
		First(&weekly).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return weekly.Meals, nil
}
