package planorders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/meals"
	"github.com/angelmondragon/mealbox-backend/internal/pricing"
	"github.com/angelmondragon/mealbox-backend/internal/subscribers"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

type stubBilling struct {
	mu    sync.Mutex
	calls []billing.SyncOptions
	err   error
}

func (s *stubBilling) Sync(_ context.Context, _ uuid.UUID, opts billing.SyncOptions) (*billing.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return nil, s.err
	}
	return &billing.SyncResult{SubscriptionID: "sub_1", PriceRef: "price_1"}, nil
}

type firstPick struct{}

func (firstPick) IntN(int) int { return 0 }

type fixture struct {
	db        *gorm.DB
	svc       Service
	billing   *stubBilling
	sub       *models.Subscriber
	breakfast models.Meal
	lunch     models.Meal
	dinner    models.Meal
	snack     models.Meal
	offMenu   models.Meal
}

var amsterdam = func() *time.Location {
	loc, err := time.LoadLocation(weekcal.DefaultTimezone)
	if err != nil {
		panic(err)
	}
	return loc
}()

// Wednesday and Thursday of ISO week 10, 2026.
var (
	wednesday = time.Date(2026, 3, 4, 12, 0, 0, 0, amsterdam)
	thursday  = time.Date(2026, 3, 5, 12, 0, 0, 0, amsterdam)
)

func meal(name string, mealType enums.MealType, kcal float64) models.Meal {
	return models.Meal{
		Name:     name,
		MealType: mealType,
		Ingredients: []models.Ingredient{
			{Name: name + " base", Unit: "g", Quantity: 40, Kcal: kcal, Proteins: 5, Carbohydrates: 10, Fats: 2, Fiber: 1},
		},
	}
}

func newFixture(t *testing.T, now time.Time, lockdownDay, confirmWeek int) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:planorders_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.ZipCode{}, &models.Subscriber{}, &models.MealPlan{},
		&models.Ingredient{}, &models.Meal{}, &models.WeeklyMeal{}, &models.PlanOrder{},
	))

	f := &fixture{
		db:        conn,
		billing:   &stubBilling{},
		breakfast: meal("Oats", enums.MealTypeBreakfast, 100),
		lunch:     meal("Wrap", enums.MealTypeLunch, 150),
		dinner:    meal("Curry", enums.MealTypeDinner, 200),
		snack:     meal("Nuts", enums.MealTypeSnack1, 50),
		offMenu:   meal("Yoghurt", enums.MealTypeSnack3, 80),
	}
	weekly := &models.WeeklyMeal{Name: "Week 10", Week: 10, Meals: []models.Meal{f.breakfast, f.lunch, f.dinner, f.snack}}
	require.NoError(t, conn.Create(weekly).Error)
	f.breakfast, f.lunch, f.dinner, f.snack = weekly.Meals[0], weekly.Meals[1], weekly.Meals[2], weekly.Meals[3]
	require.NoError(t, conn.Create(&f.offMenu).Error)

	w, h, act, goal := 70.0, 175.0, 1.55, 0.0
	age := 30
	gender := enums.GenderMale
	zip := &models.ZipCode{Code: "1011AB", LockdownDay: &lockdownDay}
	require.NoError(t, conn.Create(zip).Error)
	sub := &models.Subscriber{
		Email: "sub@mealbox.test", FirstName: "Sam", LastName: "Doe", ZipCodeID: &zip.ID,
		Weight: &w, Height: &h, Age: &age, Gender: &gender, ActivityLevel: &act, Goal: &goal,
	}
	require.NoError(t, conn.Create(sub).Error)
	plan := &models.MealPlan{SubscriberID: sub.ID, NumberOfDays: 5, MealsPerDay: 5, Status: enums.PlanStatusActive, ConfirmOrderWeek: &confirmWeek}
	require.NoError(t, conn.Create(plan).Error)
	sub.Plan = plan
	f.sub = sub

	cal, err := weekcal.New(weekcal.DefaultTimezone)
	require.NoError(t, err)
	rates, err := config.PricingConfig{CaloriePrice: "0.004", ShippingCharge: "4.95", Currency: "eur", FreeShippingThreshold: "50"}.Rates()
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Orders:            NewRepository(conn),
		Subscribers:       subscribers.NewRepository(conn),
		Meals:             meals.NewRepository(conn),
		Billing:           f.billing,
		Pricing:           pricing.NewEngine(rates),
		Calendar:          cal.WithClock(func() time.Time { return now }),
		TransactionRunner: db.Wrap(conn),
		Random:            firstPick{},
		Logger:            logger.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PlanOrder{}).Count(&n).Error)
	return n
}

func (f *fixture) cursor(t *testing.T) int {
	t.Helper()
	var plan models.MealPlan
	require.NoError(t, f.db.First(&plan, "id = ?", f.sub.Plan.ID).Error)
	require.NotNil(t, plan.ConfirmOrderWeek)
	return *plan.ConfirmOrderWeek
}

func TestConfirm_ExplicitSelection(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SubscriberID: f.sub.ID,
		Meals: []MealSelection{
			{Day: 1, MealIDs: []uuid.UUID{f.breakfast.ID, f.offMenu.ID}},
			{Day: 2, MealIDs: []uuid.UUID{f.dinner.ID}},
			{Day: 9, MealIDs: []uuid.UUID{f.lunch.ID}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, res.BillingErr)

	order := res.Order
	assert.Equal(t, 10, order.Week)
	assert.Equal(t, "56.06", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "4.95", order.ShippingAmount.StringFixed(2))
	assert.Equal(t, enums.CurrencyEUR, order.Currency)

	days := order.MealsForTheWeek.Data()
	require.Len(t, days, 5)
	require.Len(t, days[0].Meals, 1)
	oats := days[0].Meals[0]
	assert.Equal(t, f.breakfast.ID, oats.ID)
	assert.Equal(t, 537, oats.KcalTarget)
	assert.Equal(t, 5, oats.Servings)
	assert.InDelta(t, 200, oats.Ingredients[0].TotalNeed, 1e-9)
	require.Len(t, days[1].Meals, 1)
	assert.Equal(t, f.dinner.ID, days[1].Meals[0].ID)
	for _, d := range days[2:] {
		assert.Empty(t, d.Meals)
	}

	assert.Equal(t, 11, res.NextConfirmWeek)
	assert.Equal(t, 11, f.cursor(t))
	require.Len(t, f.billing.calls, 1)
	assert.Equal(t, order.ID, f.billing.calls[0].ExcludeOrderID)
}

func TestConfirm_WithoutSelectionDrawsFromWeeklyMenu(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	require.NoError(t, err)
	days := res.Order.MealsForTheWeek.Data()
	require.Len(t, days, 5)
	// snack2 has no candidate in the menu and is skipped.
	assert.Len(t, days[0].Meals, 4)
}

func TestConfirm_SecondAttemptConflicts(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, ConfirmInput{SubscriberID: f.sub.ID})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, ConfirmInput{SubscriberID: f.sub.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Equal(t, 11, f.cursor(t))
}

func TestConfirm_ParallelAttemptsCreateOneOrder(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestConfirm_AfterLockdownForbidden(t *testing.T) {
	f := newFixture(t, thursday, 3, 10)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)
	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.billing.calls)
}

func TestConfirm_CursorMismatch(t *testing.T) {
	f := newFixture(t, wednesday, 3, 9)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Equal(t, 9, f.cursor(t))
}

func TestConfirm_IncompleteProfile(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)
	require.NoError(t, f.db.Model(&models.Subscriber{}).Where("id = ?", f.sub.ID).Update("age", nil).Error)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "got %v", err)
	assert.Zero(t, f.orderCount(t))
}

func TestConfirm_UnknownMeal(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SubscriberID: f.sub.ID,
		Meals:        []MealSelection{{Day: 1, MealIDs: []uuid.UUID{uuid.New()}}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConfirm_MissingSubscriberOrLockdownDay(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	require.NoError(t, f.db.Model(&models.Subscriber{}).Where("id = ?", f.sub.ID).Update("zip_code_id", nil).Error)
	_, err = f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConfirm_BillingFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)
	f.billing.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("stripe down"), "list stripe subscriptions")

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{SubscriberID: f.sub.ID})
	require.NoError(t, err)
	assert.True(t, pkgerrors.Is(res.BillingErr, pkgerrors.CodeDependency))
	assert.Nil(t, res.Billing)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Equal(t, 11, f.cursor(t))
}

func TestAutoConfirm_LockdownBoundary(t *testing.T) {
	f := newFixture(t, thursday, 3, 10)
	pool := []models.Meal{f.breakfast, f.lunch, f.dinner, f.snack}

	_, err := f.svc.AutoConfirm(context.Background(), AutoConfirmInput{SubscriberID: f.sub.ID, Week: 10, Weekday: 4, Pool: pool})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)

	res, err := f.svc.AutoConfirm(context.Background(), AutoConfirmInput{SubscriberID: f.sub.ID, Week: 10, Weekday: 3, Pool: pool})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Order.Week)
	days := res.Order.MealsForTheWeek.Data()
	require.Len(t, days, 5)
	for _, d := range days {
		assert.Len(t, d.Meals, 4)
	}
	assert.Equal(t, 11, f.cursor(t))
}

func TestAutoConfirm_EmptyPool(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)

	_, err := f.svc.AutoConfirm(context.Background(), AutoConfirmInput{SubscriberID: f.sub.ID, Week: 10, Weekday: 3})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestAutoConfirm_ZeroCalorieMeal(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)
	empty := models.Meal{ID: uuid.New(), Name: "Water", MealType: enums.MealTypeBreakfast}

	_, err := f.svc.AutoConfirm(context.Background(), AutoConfirmInput{SubscriberID: f.sub.ID, Week: 10, Weekday: 3, Pool: []models.Meal{empty}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "got %v", err)
	assert.Zero(t, f.orderCount(t))
}

func TestListForSubscriber_Pages(t *testing.T) {
	f := newFixture(t, wednesday, 3, 10)
	repo := NewRepository(f.db)
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, week := range []int{7, 8, 9} {
		order := &models.PlanOrder{PlanID: f.sub.Plan.ID, Week: week, Currency: enums.CurrencyEUR, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.Create(context.Background(), order))
	}

	first, err := f.svc.ListForSubscriber(context.Background(), ListParams{SubscriberID: f.sub.ID, Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, 9, first.Orders[0].Week)
	assert.Equal(t, 8, first.Orders[1].Week)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListForSubscriber(context.Background(), ListParams{SubscriberID: f.sub.ID, Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, 7, second.Orders[0].Week)
	assert.Empty(t, second.NextCursor)

	n, err := repo.CountForPlan(context.Background(), f.sub.Plan.ID, first.Orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
