package subscribers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// Repository reads subscribers with their zip code and plan, and moves the
// plan's state forward.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error)
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	ListEligibleForAutoConfirm(ctx context.Context, lockdownDay, week int) ([]models.Subscriber, error)
	AdvanceConfirmWeek(ctx context.Context, planID uuid.UUID, week int) (bool, error)
	SetConfirmWeek(ctx context.Context, planID uuid.UUID, week int) error
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status enums.PlanStatus) error
	CreatePlan(ctx context.Context, plan *models.MealPlan) error
	UpdatePlanShape(ctx context.Context, planID uuid.UUID, changes PlanShape) error
}

// PlanShape holds the subscriber-editable plan fields. Nil fields are left
// untouched.
type PlanShape struct {
	NumberOfDays *int
	MealsPerDay  *int
}

func (p PlanShape) Empty() bool {
	return p.NumberOfDays == nil && p.MealsPerDay == nil
}
