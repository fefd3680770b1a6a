package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/internal/calories"
	"github.com/angelmondragon/mealbox-backend/internal/pricing"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

type subscriberStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	AdvanceConfirmWeek(ctx context.Context, planID uuid.UUID, week int) (bool, error)
	SetConfirmWeek(ctx context.Context, planID uuid.UUID, week int) error
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status enums.PlanStatus) error
}

type orderCounter interface {
	CountForPlan(ctx context.Context, planID uuid.UUID, excludeOrderID uuid.UUID) (int64, error)
}

// Service keeps the provider subscription in line with the plan.
type Service interface {
	Sync(ctx context.Context, subscriberID uuid.UUID, opts SyncOptions) (*SyncResult, error)
	Activate(ctx context.Context, subscriberID uuid.UUID) (*ActivationResult, error)
	Cancel(ctx context.Context, subscriberID uuid.UUID) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Subscribers subscriberStore
	Orders      orderCounter
	Gateway     Gateway
	Pricing     *pricing.Engine
	Calendar    *weekcal.Calendar
	Logger      *logger.Logger
}

// SyncOptions tunes a sync. ExcludeOrderID leaves a just-created order out
// of the first-order check.
type SyncOptions struct {
	ExcludeOrderID uuid.UUID
}

type SyncResult struct {
	SubscriptionID string
	PriceRef       string
	AmountCents    int64
	TrialExtended  bool
}

type ActivationResult struct {
	SubscriptionID   string
	PriceRef         string
	AmountCents      int64
	TrialDays        int
	ConfirmOrderWeek int
}

type service struct {
	subscribers subscriberStore
	orders      orderCounter
	gateway     Gateway
	pricing     *pricing.Engine
	calendar    *weekcal.Calendar
	logg        *logger.Logger
}

// NewService builds the billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Subscribers == nil {
		return nil, errors.New("subscriber store required")
	}
	if params.Orders == nil {
		return nil, errors.New("order counter required")
	}
	if params.Gateway == nil {
		return nil, errors.New("billing gateway required")
	}
	if params.Pricing == nil {
		return nil, errors.New("pricing engine required")
	}
	if params.Calendar == nil {
		return nil, errors.New("calendar required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		subscribers: params.Subscribers,
		orders:      params.Orders,
		gateway:     params.Gateway,
		pricing:     params.Pricing,
		calendar:    params.Calendar,
		logg:        params.Logger,
	}, nil
}

// Sync replaces the subscription price with the current weekly plan price.
// While the subscription is still in its first trial and the plan has no
// orders yet, the trial is stretched to the coming Sunday first.
func (s *service) Sync(ctx context.Context, subscriberID uuid.UUID, opts SyncOptions) (*SyncResult, error) {
	sub, customerRef, err := s.loadBillable(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	plan := sub.Plan

	quote, ok := s.pricing.PlanWeeklyPrice(calories.ProfileOf(sub), plan.NumberOfDays)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "calorie need unavailable")
	}

	subs, err := s.gateway.ListSubscriptions(ctx, customerRef)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	current := subs[0]
	result := &SyncResult{SubscriptionID: current.ID, AmountCents: quote.AmountCents()}

	now := s.calendar.Now()
	if current.TrialEnd.After(now) {
		extended, err := s.extendFirstTrial(ctx, sub, current.ID, opts)
		if err != nil {
			return nil, err
		}
		result.TrialExtended = extended
	}

	if len(current.ItemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription has no items")
	}

	priceRef, err := s.gateway.CreatePrice(ctx, PriceParams{
		AmountCents: result.AmountCents,
		Currency:    quote.Currency,
		Interval:    enums.BillingIntervalWeek,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.gateway.UpdateSubscription(ctx, current.ID, UpdateParams{
		NewPriceRef:     priceRef,
		RemoveItemIDs:   current.ItemIDs,
		ProrationPolicy: ProrationNone,
	}); err != nil {
		return nil, err
	}
	result.PriceRef = priceRef

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscriber_id":   subscriberID.String(),
		"subscription_id": current.ID,
		"amount_cents":    result.AmountCents,
		"trial_extended":  result.TrialExtended,
	})
	s.logg.Info(logCtx, "subscription price synced")
	return result, nil
}

func (s *service) extendFirstTrial(ctx context.Context, sub *models.Subscriber, subscriptionID string, opts SyncOptions) (bool, error) {
	prior, err := s.orders.CountForPlan(ctx, sub.Plan.ID, opts.ExcludeOrderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count plan orders")
	}
	if prior > 0 {
		return false, nil
	}

	now := s.calendar.Now()
	status, err := s.calendar.LockdownStatus(sub.LockdownDay(), now)
	if err != nil {
		return false, err
	}
	trialEnd := now.AddDate(0, 0, s.calendar.DaysToNextSunday(now, status.IsAfterLockdownDay))
	if _, err := s.gateway.UpdateSubscription(ctx, subscriptionID, UpdateParams{
		TrialEnd:        &trialEnd,
		ProrationPolicy: ProrationNone,
	}); err != nil {
		return false, err
	}

	week := status.CurrentWeek
	if status.IsAfterLockdownDay {
		week = weekcal.NextConfirmWeek(week)
	}
	if _, err := s.subscribers.AdvanceConfirmWeek(ctx, sub.Plan.ID, week); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance confirm week")
	}
	return true, nil
}

// Activate starts billing for an inactive or canceled plan: a weekly price,
// a subscription with a trial up to the first delivery week, and the
// initial confirm week.
func (s *service) Activate(ctx context.Context, subscriberID uuid.UUID) (*ActivationResult, error) {
	sub, customerRef, err := s.loadBillable(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	plan := sub.Plan
	if plan.Status == enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan already active")
	}

	hasMethod, err := s.gateway.HasPaymentMethod(ctx, customerRef)
	if err != nil {
		return nil, err
	}
	if !hasMethod {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no payment method on file")
	}

	quote, ok := s.pricing.PlanWeeklyPrice(calories.ProfileOf(sub), plan.NumberOfDays)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "calorie need unavailable")
	}

	now := s.calendar.Now()
	lockdownDay := sub.LockdownDay()
	status, err := s.calendar.LockdownStatus(lockdownDay, now)
	if err != nil {
		return nil, err
	}
	trialDays := s.calendar.TrialDays(*lockdownDay, now)

	priceRef, err := s.gateway.CreatePrice(ctx, PriceParams{
		AmountCents: quote.AmountCents(),
		Currency:    quote.Currency,
		Interval:    enums.BillingIntervalWeek,
	})
	if err != nil {
		return nil, err
	}
	created, err := s.gateway.CreateSubscription(ctx, customerRef, priceRef, trialDays)
	if err != nil {
		return nil, err
	}

	week := status.CurrentWeek
	if status.IsAfterLockdownDay {
		week = weekcal.NextConfirmWeek(week)
	}
	if err := s.subscribers.SetConfirmWeek(ctx, plan.ID, week); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set confirm week")
	}
	if err := s.subscribers.UpdatePlanStatus(ctx, plan.ID, enums.PlanStatusActive); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate plan")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"subscriber_id":   subscriberID.String(),
		"subscription_id": created.ID,
		"trial_days":      trialDays,
	}), "plan subscription started")

	return &ActivationResult{
		SubscriptionID:   created.ID,
		PriceRef:         priceRef,
		AmountCents:      quote.AmountCents(),
		TrialDays:        trialDays,
		ConfirmOrderWeek: week,
	}, nil
}

// Cancel stops renewal at the end of the paid period and marks the plan
// canceled right away.
func (s *service) Cancel(ctx context.Context, subscriberID uuid.UUID) error {
	sub, customerRef, err := s.loadBillable(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub.Plan.Status != enums.PlanStatusActive {
		return pkgerrors.New(pkgerrors.CodeConflict, "plan is not active")
	}

	subs, err := s.gateway.ListSubscriptions(ctx, customerRef)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if _, err := s.gateway.UpdateSubscription(ctx, subs[0].ID, UpdateParams{CancelAtPeriodEnd: true}); err != nil {
		return err
	}
	if err := s.subscribers.UpdatePlanStatus(ctx, sub.Plan.ID, enums.PlanStatusCanceled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel plan")
	}
	return nil
}

func (s *service) loadBillable(ctx context.Context, subscriberID uuid.UUID) (*models.Subscriber, string, error) {
	sub, err := s.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "subscriber not found")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("load subscriber %s", subscriberID))
	}
	if sub.Plan == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if sub.CustomerRef == nil || strings.TrimSpace(*sub.CustomerRef) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "billing customer not found")
	}
	return sub, *sub.CustomerRef, nil
}
