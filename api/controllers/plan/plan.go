// Package plan serves the subscriber's own meal plan: activation,
// cancellation and weekly order confirmation.
package plan

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mealbox-backend/api/middleware"
	"github.com/angelmondragon/mealbox-backend/api/responses"
	"github.com/angelmondragon/mealbox-backend/api/validators"
	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/planorders"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

type confirmRequest struct {
	MealsForTheWeek []daySelection `json:"mealsForTheWeek" validate:"omitempty,max=7,dive"`
}

type daySelection struct {
	Day   int         `json:"day" validate:"min=1,max=7"`
	Meals []uuid.UUID `json:"meals" validate:"required,min=1,max=6"`
}

type planOrderResponse struct {
	ID              uuid.UUID         `json:"id"`
	Week            int               `json:"week"`
	Status          string            `json:"status"`
	Currency        string            `json:"currency"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingAmount  decimal.Decimal   `json:"shipping_amount"`
	MealsForTheWeek []models.DayMeals `json:"meals_for_the_week"`
	CreatedAt       time.Time         `json:"created_at"`
}

type confirmResponse struct {
	Order           planOrderResponse `json:"order"`
	NextConfirmWeek int               `json:"next_confirm_week"`
	BillingSynced   bool              `json:"billing_synced"`
	TrialExtended   bool              `json:"trial_extended"`
}

type activationResponse struct {
	SubscriptionID   string `json:"subscription_id"`
	AmountCents      int64  `json:"amount_cents"`
	TrialDays        int    `json:"trial_days"`
	ConfirmOrderWeek int    `json:"confirm_order_week"`
}

type listResponse struct {
	Orders     []planOrderResponse `json:"orders"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

func subscriberID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subscriber identity missing")
	}
	return id, nil
}

// Activate starts billing for the caller's plan.
func Activate(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Activate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, activationResponse{
			SubscriptionID:   res.SubscriptionID,
			AmountCents:      res.AmountCents,
			TrialDays:        res.TrialDays,
			ConfirmOrderWeek: res.ConfirmOrderWeek,
		})
	}
}

// Cancel stops the subscription at the end of the paid period.
func Cancel(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

// ConfirmOrder places this week's order. Without a body the meals are drawn
// from the week's menu.
func ConfirmOrder(svc planorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmRequest
		if _, err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := planorders.ConfirmInput{SubscriberID: id}
		for _, day := range payload.MealsForTheWeek {
			input.Meals = append(input.Meals, planorders.MealSelection{Day: day.Day, MealIDs: day.Meals})
		}

		res, err := svc.Confirm(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := confirmResponse{
			Order:           newPlanOrderResponse(res.Order),
			NextConfirmWeek: res.NextConfirmWeek,
			BillingSynced:   res.BillingErr == nil,
		}
		if res.Billing != nil {
			resp.TrialExtended = res.Billing.TrialExtended
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ListOrders pages through the caller's orders, newest first.
func ListOrders(svc planorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.ListForSubscriber(r.Context(), planorders.ListParams{
			SubscriberID: id,
			Params:       pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := listResponse{Orders: make([]planOrderResponse, 0, len(res.Orders)), NextCursor: res.NextCursor}
		for i := range res.Orders {
			out.Orders = append(out.Orders, newPlanOrderResponse(&res.Orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func newPlanOrderResponse(order *models.PlanOrder) planOrderResponse {
	if order == nil {
		return planOrderResponse{}
	}
	return planOrderResponse{
		ID:              order.ID,
		Week:            order.Week,
		Status:          string(order.Status),
		Currency:        string(order.Currency),
		TotalAmount:     order.TotalAmount,
		ShippingAmount:  order.ShippingAmount,
		MealsForTheWeek: order.MealsForTheWeek.Data(),
		CreatedAt:       order.CreatedAt,
	}
}
