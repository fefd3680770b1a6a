// Package plans creates and reshapes a subscriber's weekly meal plan.
package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/calories"
	"github.com/angelmondragon/mealbox-backend/internal/subscribers"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

const (
	MinNumberOfDays = 1
	MaxNumberOfDays = 7
	MinMealsPerDay  = 4
	MaxMealsPerDay  = 6
)

type planStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	CreatePlan(ctx context.Context, plan *models.MealPlan) error
	UpdatePlanShape(ctx context.Context, planID uuid.UUID, changes subscribers.PlanShape) error
}

type billingSyncer interface {
	Sync(ctx context.Context, subscriberID uuid.UUID, opts billing.SyncOptions) (*billing.SyncResult, error)
}

// Service owns the plan row itself; activation and billing live in billing.
type Service interface {
	Get(ctx context.Context, subscriberID uuid.UUID) (*models.MealPlan, error)
	Create(ctx context.Context, subscriberID uuid.UUID, input CreateInput) (*models.MealPlan, error)
	Update(ctx context.Context, subscriberID uuid.UUID, input UpdateInput) (*UpdateResult, error)
}

type ServiceParams struct {
	Subscribers planStore
	Billing     billingSyncer
	Calendar    *weekcal.Calendar
	Logger      *logger.Logger
}

type CreateInput struct {
	NumberOfDays int
	MealsPerDay  int
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	NumberOfDays *int
	MealsPerDay  *int
}

// UpdateResult mirrors the order confirmation: the plan change stands even
// when the subscription price could not be synced.
type UpdateResult struct {
	Plan       *models.MealPlan
	Billing    *billing.SyncResult
	BillingErr error
}

type service struct {
	subscribers planStore
	billing     billingSyncer
	calendar    *weekcal.Calendar
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Subscribers == nil {
		return nil, errors.New("subscriber repository required")
	}
	if params.Billing == nil {
		return nil, errors.New("billing service required")
	}
	if params.Calendar == nil {
		return nil, errors.New("calendar required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		subscribers: params.Subscribers,
		billing:     params.Billing,
		calendar:    params.Calendar,
		logg:        params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, subscriberID uuid.UUID) (*models.MealPlan, error) {
	sub, err := s.loadSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return sub.Plan, nil
}

// Create stores an inactive plan whose first confirmable week is the current
// one, or the next when this week's lockdown day has passed.
func (s *service) Create(ctx context.Context, subscriberID uuid.UUID, input CreateInput) (*models.MealPlan, error) {
	if err := validateShape(&input.NumberOfDays, &input.MealsPerDay); err != nil {
		return nil, err
	}
	sub, err := s.loadSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if sub.Plan != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan already exists")
	}
	if _, ok := calories.CalorieNeed(calories.ProfileOf(sub)); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "calorie need unavailable")
	}

	status, err := s.calendar.LockdownStatus(sub.LockdownDay(), s.calendar.Now())
	if err != nil {
		return nil, err
	}
	week := status.CurrentWeek
	if status.IsAfterLockdownDay {
		week = weekcal.NextConfirmWeek(week)
	}

	plan := &models.MealPlan{
		SubscriberID:     sub.ID,
		NumberOfDays:     input.NumberOfDays,
		MealsPerDay:      input.MealsPerDay,
		Status:           enums.PlanStatusInactive,
		ConfirmOrderWeek: &week,
	}
	if err := s.subscribers.CreatePlan(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, models.MealPlanSubscriberIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create plan")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"subscriber_id":      sub.ID.String(),
		"plan_id":            plan.ID.String(),
		"confirm_order_week": week,
	}), "plan created")
	return plan, nil
}

// Update reshapes the plan and, for an active plan, re-prices the
// subscription.
func (s *service) Update(ctx context.Context, subscriberID uuid.UUID, input UpdateInput) (*UpdateResult, error) {
	if input.NumberOfDays == nil && input.MealsPerDay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if err := validateShape(input.NumberOfDays, input.MealsPerDay); err != nil {
		return nil, err
	}
	sub, err := s.loadSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}

	shape := subscribers.PlanShape{NumberOfDays: input.NumberOfDays, MealsPerDay: input.MealsPerDay}
	if err := s.subscribers.UpdatePlanShape(ctx, sub.Plan.ID, shape); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update plan")
	}
	plan := *sub.Plan
	if input.NumberOfDays != nil {
		plan.NumberOfDays = *input.NumberOfDays
	}
	if input.MealsPerDay != nil {
		plan.MealsPerDay = *input.MealsPerDay
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"subscriber_id":  sub.ID.String(),
		"plan_id":        plan.ID.String(),
		"number_of_days": plan.NumberOfDays,
		"meals_per_day":  plan.MealsPerDay,
	})
	s.logg.Info(ctx, "plan updated")

	result := &UpdateResult{Plan: &plan}
	if plan.Status != enums.PlanStatusActive {
		return result, nil
	}
	synced, err := s.billing.Sync(ctx, sub.ID, billing.SyncOptions{})
	if err != nil {
		s.logg.Error(ctx, "subscription sync after plan update failed", err)
		result.BillingErr = err
		return result, nil
	}
	result.Billing = synced
	return result, nil
}

func (s *service) loadSubscriber(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	sub, err := s.subscribers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscriber not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscriber")
	}
	return sub, nil
}

func validateShape(numberOfDays, mealsPerDay *int) error {
	details := map[string]any{}
	if numberOfDays != nil && (*numberOfDays < MinNumberOfDays || *numberOfDays > MaxNumberOfDays) {
		details["numberOfDays"] = fmt.Sprintf("must be between %d and %d", MinNumberOfDays, MaxNumberOfDays)
	}
	if mealsPerDay != nil && (*mealsPerDay < MinMealsPerDay || *mealsPerDay > MaxMealsPerDay) {
		details["mealsPerDay"] = fmt.Sprintf("must be between %d and %d", MinMealsPerDay, MaxMealsPerDay)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan").WithDetails(details)
	}
	return nil
}
