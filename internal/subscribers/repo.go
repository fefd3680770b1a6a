package subscribers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscribers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("ZipCode").Preload("Plan")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.withRelations(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.withRelations(ctx).Where("stripe_customer_id = ?", customerRef).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByEmail matches the address case-insensitively.
func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.withRelations(ctx).Where("LOWER(email) = LOWER(?)", email).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListEligibleForAutoConfirm returns subscribers whose lockdown day and
// plan cursor both match, ordered for stable processing.
func (r *repository) ListEligibleForAutoConfirm(ctx context.Context, lockdownDay, week int) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.withRelations(ctx).
		Select("subscribers.*").
		Joins("JOIN zip_codes ON zip_codes.id = subscribers.zip_code_id").
		Joins("JOIN meal_plans ON meal_plans.subscriber_id = subscribers.id").
		Where("zip_codes.lockdown_day = ?", lockdownDay).
		Where("meal_plans.confirm_order_week = ?", week).
		Order("subscribers.created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// AdvanceConfirmWeek moves the plan cursor to week unless it already points
// at week or later. It reports whether a row changed.
func (r *repository) AdvanceConfirmWeek(ctx context.Context, planID uuid.UUID, week int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MealPlan{}).
		Where("id = ?", planID).
		Where("(confirm_order_week IS NULL OR confirm_order_week < ?)", week).
		Update("confirm_order_week", week)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetConfirmWeek overwrites the cursor. Only plan (re)activation uses it.
func (r *repository) SetConfirmWeek(ctx context.Context, planID uuid.UUID, week int) error {
	return r.db.WithContext(ctx).
		Model(&models.MealPlan{}).
		Where("id = ?", planID).
		Update("confirm_order_week", week).Error
}

func (r *repository) UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status enums.PlanStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.MealPlan{}).
		Where("id = ?", planID).
		Update("status", status).Error
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.MealPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) UpdatePlanShape(ctx context.Context, planID uuid.UUID, changes PlanShape) error {
	updates := map[string]any{}
	if changes.NumberOfDays != nil {
		updates["number_of_days"] = *changes.NumberOfDays
	}
	if changes.MealsPerDay != nil {
		updates["meals_per_day"] = *changes.MealsPerDay
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.MealPlan{}).
		Where("id = ?", planID).
		Updates(updates).Error
}
