package planorders

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/calories"
	"github.com/angelmondragon/mealbox-backend/internal/meals"
	"github.com/angelmondragon/mealbox-backend/internal/pricing"
	"github.com/angelmondragon/mealbox-backend/internal/subscribers"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

// RandomSource picks meals from the weekly pool. *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type billingSyncer interface {
	Sync(ctx context.Context, subscriberID uuid.UUID, opts billing.SyncOptions) (*billing.SyncResult, error)
}

// Service runs the weekly plan order confirmation.
type Service interface {
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	AutoConfirm(ctx context.Context, input AutoConfirmInput) (*ConfirmResult, error)
	ListForSubscriber(ctx context.Context, params ListParams) (*ListResult, error)
}

type ServiceParams struct {
	Orders            Repository
	Subscribers       subscribers.Repository
	Meals             meals.Repository
	Billing           billingSyncer
	Pricing           *pricing.Engine
	Calendar          *weekcal.Calendar
	TransactionRunner txRunner
	Random            RandomSource
	Logger            *logger.Logger
}

// MealSelection is the subscriber's own pick for one delivery day.
type MealSelection struct {
	Day     int
	MealIDs []uuid.UUID
}

// ConfirmInput drives the interactive path. Without Meals the week's menu is
// drawn at random, as the scheduler does.
type ConfirmInput struct {
	SubscriberID uuid.UUID
	Meals        []MealSelection
}

// AutoConfirmInput drives the scheduler path. Week and Weekday are the
// evaluation point; Pool is the weekly menu shared by the whole run.
type AutoConfirmInput struct {
	SubscriberID uuid.UUID
	Week         int
	Weekday      int
	Pool         []models.Meal
}

// ConfirmResult reports the stored order. BillingErr is set when the order
// stands but the subscription could not be synced.
type ConfirmResult struct {
	Order           *models.PlanOrder
	NextConfirmWeek int
	Billing         *billing.SyncResult
	BillingErr      error
}

type ListParams struct {
	SubscriberID uuid.UUID
	pagination.Params
}

type ListResult struct {
	Orders     []models.PlanOrder
	NextCursor string
}

type service struct {
	orders      Repository
	subscribers subscribers.Repository
	meals       meals.Repository
	billing     billingSyncer
	pricing     *pricing.Engine
	calendar    *weekcal.Calendar
	tx          txRunner
	random      RandomSource
	logg        *logger.Logger
}

// NewService wires the plan order workflow. Random defaults to math/rand/v2.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, errors.New("plan order repository required")
	}
	if params.Subscribers == nil {
		return nil, errors.New("subscriber repository required")
	}
	if params.Meals == nil {
		return nil, errors.New("meal repository required")
	}
	if params.Billing == nil {
		return nil, errors.New("billing service required")
	}
	if params.Pricing == nil {
		return nil, errors.New("pricing engine required")
	}
	if params.Calendar == nil {
		return nil, errors.New("calendar required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	random := params.Random
	if random == nil {
		random = globalRandom{}
	}
	return &service{
		orders:      params.Orders,
		subscribers: params.Subscribers,
		meals:       params.Meals,
		billing:     params.Billing,
		pricing:     params.Pricing,
		calendar:    params.Calendar,
		tx:          params.TransactionRunner,
		random:      random,
		logg:        params.Logger,
	}, nil
}

// evaluation is the week being confirmed and whether its cutoff has passed.
type evaluation struct {
	week          int
	afterLockdown bool
}

type mealResolver func(ctx context.Context, slots []calories.MealPlan, numberOfDays int) ([]models.DayMeals, error)

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	sub, err := s.loadSubscriber(ctx, input.SubscriberID)
	if err != nil {
		return nil, err
	}
	status, err := s.calendar.LockdownStatus(sub.LockdownDay(), s.calendar.Now())
	if err != nil {
		return nil, err
	}
	eval := evaluation{week: status.CurrentWeek, afterLockdown: status.IsAfterLockdownDay}

	resolve := s.explicitResolver(input.Meals)
	if len(input.Meals) == 0 {
		resolve = s.poolResolver(nil, eval.week)
	}
	return s.confirm(ctx, sub, eval, resolve)
}

func (s *service) AutoConfirm(ctx context.Context, input AutoConfirmInput) (*ConfirmResult, error) {
	sub, err := s.loadSubscriber(ctx, input.SubscriberID)
	if err != nil {
		return nil, err
	}
	lockdownDay := sub.LockdownDay()
	if lockdownDay == nil || *lockdownDay == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no lockdown day found for subscriber")
	}
	eval := evaluation{week: input.Week, afterLockdown: *lockdownDay < input.Weekday}
	pool := input.Pool
	if pool == nil {
		pool = []models.Meal{}
	}
	return s.confirm(ctx, sub, eval, s.poolResolver(pool, eval.week))
}

func (s *service) confirm(ctx context.Context, sub *models.Subscriber, eval evaluation, resolve mealResolver) (*ConfirmResult, error) {
	plan := sub.Plan
	ctx = s.logg.WithFields(ctx, map[string]any{
		"subscriber_id": sub.ID.String(),
		"plan_id":       plan.ID.String(),
		"week":          eval.week,
	})

	exists, err := s.orders.ExistsForWeek(ctx, plan.ID, eval.week)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing plan order")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already placed for this week")
	}
	if plan.ConfirmOrderWeek != nil && *plan.ConfirmOrderWeek != eval.week {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already confirmed for this week").
			WithDetails(map[string]any{"confirm_order_week": *plan.ConfirmOrderWeek, "week": eval.week})
	}
	if eval.afterLockdown {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lockdown day has passed for this week")
	}

	profile := calories.ProfileOf(sub)
	kcal, ok := calories.CalorieNeed(profile)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "calorie need unavailable")
	}
	quote, ok := s.pricing.PlanWeeklyPrice(profile, plan.NumberOfDays)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "plan price unavailable")
	}

	days, err := resolve(ctx, calories.MealPlansForNeed(plan.MealsPerDay, kcal), plan.NumberOfDays)
	if err != nil {
		return nil, err
	}

	order := &models.PlanOrder{
		PlanID:          plan.ID,
		Week:            eval.week,
		MealsForTheWeek: datatypes.NewJSONType(days),
		TotalAmount:     quote.Total.Round(2),
		ShippingAmount:  quote.Shipping.Round(2),
		Currency:        quote.Currency,
		Status:          enums.PlanOrderStatusPending,
	}
	next := weekcal.NextConfirmWeek(eval.week)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, models.PlanOrderWeekIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already placed for this week")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create plan order")
		}
		if _, err := s.subscribers.WithTx(tx).AdvanceConfirmWeek(ctx, plan.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance confirm week")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "plan_order_id", order.ID.String()), "plan order confirmed")

	result := &ConfirmResult{Order: order, NextConfirmWeek: next}
	synced, err := s.billing.Sync(ctx, sub.ID, billing.SyncOptions{ExcludeOrderID: order.ID})
	if err != nil {
		s.logg.Error(ctx, "subscription sync after plan order failed", err)
		result.BillingErr = err
		return result, nil
	}
	result.Billing = synced
	return result, nil
}

// explicitResolver scales the subscriber's own picks. Meals whose type has
// no slot in the plan are dropped; unknown meal ids fail the confirmation.
func (s *service) explicitResolver(selection []MealSelection) mealResolver {
	return func(ctx context.Context, slots []calories.MealPlan, numberOfDays int) ([]models.DayMeals, error) {
		byDay := make(map[int][]uuid.UUID, len(selection))
		var ids []uuid.UUID
		for _, sel := range selection {
			if _, seen := byDay[sel.Day]; seen {
				continue
			}
			byDay[sel.Day] = sel.MealIDs
			ids = append(ids, sel.MealIDs...)
		}

		found, err := s.meals.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load selected meals")
		}
		catalog := make(map[uuid.UUID]models.Meal, len(found))
		for _, m := range found {
			catalog[m.ID] = m
		}

		days := make([]models.DayMeals, 0, numberOfDays)
		for day := 1; day <= numberOfDays; day++ {
			entry := models.DayMeals{Day: day, Meals: []models.ScaledMeal{}}
			for _, id := range byDay[day] {
				meal, ok := catalog[id]
				if !ok {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("meal %s not found", id))
				}
				slot, ok := calories.PlanFor(slots, meal.MealType)
				if !ok {
					continue
				}
				scaled, err := calories.ScaleMealToTarget(meal, slot)
				if err != nil {
					return nil, err
				}
				entry.Meals = append(entry.Meals, scaled)
			}
			days = append(days, entry)
		}
		return days, nil
	}
}

// poolResolver draws one meal per slot and day from the weekly menu. A nil
// pool is loaded for week on demand.
func (s *service) poolResolver(pool []models.Meal, week int) mealResolver {
	return func(ctx context.Context, slots []calories.MealPlan, numberOfDays int) ([]models.DayMeals, error) {
		if pool == nil {
			loaded, err := s.meals.WeeklyPool(ctx, week)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load weekly menu")
			}
			pool = loaded
		}
		if len(pool) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no meals found")
		}

		byType := make(map[enums.MealType][]models.Meal)
		for _, m := range pool {
			byType[m.MealType] = append(byType[m.MealType], m)
		}

		days := make([]models.DayMeals, 0, numberOfDays)
		for day := 1; day <= numberOfDays; day++ {
			entry := models.DayMeals{Day: day, Meals: []models.ScaledMeal{}}
			for _, slot := range slots {
				candidates := byType[slot.MealType]
				if len(candidates) == 0 {
					continue
				}
				scaled, err := calories.ScaleMealToTarget(candidates[s.random.IntN(len(candidates))], slot)
				if err != nil {
					return nil, err
				}
				entry.Meals = append(entry.Meals, scaled)
			}
			days = append(days, entry)
		}
		return days, nil
	}
}

func (s *service) ListForSubscriber(ctx context.Context, params ListParams) (*ListResult, error) {
	sub, err := s.loadSubscriber(ctx, params.SubscriberID)
	if err != nil {
		return nil, err
	}

	cursor, err := params.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.orders.ListForPlan(ctx, sub.Plan.ID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plan orders")
	}

	out := &ListResult{}
	out.Orders, out.NextCursor = pagination.Trim(rows, params.Limit, orderCursor)
	return out, nil
}

func orderCursor(o models.PlanOrder) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

func (s *service) loadSubscriber(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	sub, err := s.subscribers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscriber not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscriber")
	}
	if sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return sub, nil
}
