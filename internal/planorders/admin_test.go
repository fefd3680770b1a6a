package planorders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

func newAdminService(t *testing.T, f *fixture, now time.Time) AdminService {
	t.Helper()
	cal, err := weekcal.New(weekcal.DefaultTimezone)
	require.NoError(t, err)
	svc, err := NewAdminService(AdminServiceParams{
		Orders:   NewRepository(f.db),
		Calendar: cal.WithClock(func() time.Time { return now }),
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return svc
}

// seedOrders stores weeks 9 and 10 for the fixture plan and week 10 for a
// second subscriber, oldest first.
func seedOrders(t *testing.T, f *fixture) []*models.PlanOrder {
	t.Helper()
	other := &models.Subscriber{Email: "other@mealbox.test", FirstName: "Kim", LastName: "Roe"}
	require.NoError(t, f.db.Create(other).Error)
	week := 10
	otherPlan := &models.MealPlan{SubscriberID: other.ID, NumberOfDays: 3, MealsPerDay: 4, Status: enums.PlanStatusActive, ConfirmOrderWeek: &week}
	require.NoError(t, f.db.Create(otherPlan).Error)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := []*models.PlanOrder{
		{PlanID: f.sub.Plan.ID, Week: 9, Currency: enums.CurrencyEUR, CreatedAt: base},
		{PlanID: f.sub.Plan.ID, Week: 10, Currency: enums.CurrencyEUR, CreatedAt: base.Add(time.Hour)},
		{PlanID: otherPlan.ID, Week: 10, Currency: enums.CurrencyEUR, CreatedAt: base.Add(2 * time.Hour)},
	}
	repo := NewRepository(f.db)
	for _, o := range orders {
		require.NoError(t, repo.Create(context.Background(), o))
	}
	return orders
}

func TestAdminListFiltersByWeekAndPages(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	svc := newAdminService(t, f, wednesday)
	orders := seedOrders(t, f)
	ctx := context.Background()

	all, err := svc.List(ctx, AdminListParams{})
	require.NoError(t, err)
	require.Len(t, all.Orders, 3)
	assert.Equal(t, orders[2].ID, all.Orders[0].ID)
	assert.Empty(t, all.NextCursor)

	week := 10
	first, err := svc.List(ctx, AdminListParams{Week: &week, Params: pagination.Params{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, first.Orders, 1)
	assert.Equal(t, orders[2].ID, first.Orders[0].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, AdminListParams{Week: &week, Params: pagination.Params{Limit: 1, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, orders[1].ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestAdminListRejectsBadInput(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	svc := newAdminService(t, f, wednesday)
	ctx := context.Background()

	week := 54
	_, err := svc.List(ctx, AdminListParams{Week: &week})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.List(ctx, AdminListParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestAdminListCurrentWeekUsesCalendar(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	orders := seedOrders(t, f)

	current, err := newAdminService(t, f, wednesday).ListCurrentWeek(context.Background(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, current.Orders, 2)
	for _, o := range current.Orders {
		assert.Equal(t, 10, o.Week)
	}

	lastWeek := wednesday.AddDate(0, 0, -7)
	previous, err := newAdminService(t, f, lastWeek).ListCurrentWeek(context.Background(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, previous.Orders, 1)
	assert.Equal(t, orders[0].ID, previous.Orders[0].ID)
}

func TestAdminGet(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	svc := newAdminService(t, f, wednesday)
	orders := seedOrders(t, f)

	got, err := svc.Get(context.Background(), orders[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Week)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestAdminUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	svc := newAdminService(t, f, wednesday)
	orders := seedOrders(t, f)
	ctx := context.Background()
	id := orders[0].ID

	got, err := svc.UpdateStatus(ctx, id, "preparing")
	require.NoError(t, err)
	assert.Equal(t, enums.PlanOrderStatusPreparing, got.Status)

	_, err = svc.UpdateStatus(ctx, id, "pending")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "got %v", err)

	got, err = svc.UpdateStatus(ctx, id, "delivered")
	require.NoError(t, err)
	assert.Equal(t, enums.PlanOrderStatusDelivered, got.Status)

	got, err = svc.UpdateStatus(ctx, id, "delivered")
	require.NoError(t, err)
	assert.Equal(t, enums.PlanOrderStatusDelivered, got.Status)

	_, err = svc.UpdateStatus(ctx, id, "canceled")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState), "got %v", err)

	var stored models.PlanOrder
	require.NoError(t, f.db.First(&stored, "id = ?", id).Error)
	assert.Equal(t, enums.PlanOrderStatusDelivered, stored.Status)
}

func TestAdminUpdateStatusValidation(t *testing.T) {
	f := newFixture(t, wednesday, 3, 11)
	svc := newAdminService(t, f, wednesday)
	orders := seedOrders(t, f)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, orders[0].ID, "shipped")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.UpdateStatus(ctx, uuid.New(), "canceled")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}
