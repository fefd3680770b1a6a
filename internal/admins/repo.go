// Package admins reads back-office operator accounts.
package admins

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}
