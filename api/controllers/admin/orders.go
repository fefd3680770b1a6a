package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mealbox-backend/api/responses"
	"github.com/angelmondragon/mealbox-backend/api/validators"
	"github.com/angelmondragon/mealbox-backend/internal/planorders"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

type orderResponse struct {
	ID              uuid.UUID         `json:"id"`
	PlanID          uuid.UUID         `json:"plan_id"`
	Week            int               `json:"week"`
	Status          string            `json:"status"`
	Currency        string            `json:"currency"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingAmount  decimal.Decimal   `json:"shipping_amount"`
	MealsForTheWeek []models.DayMeals `json:"meals_for_the_week"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing delivered canceled"`
}

func newOrderResponse(o *models.PlanOrder) orderResponse {
	return orderResponse{
		ID:              o.ID,
		PlanID:          o.PlanID,
		Week:            o.Week,
		Status:          string(o.Status),
		Currency:        string(o.Currency),
		TotalAmount:     o.TotalAmount,
		ShippingAmount:  o.ShippingAmount,
		MealsForTheWeek: o.MealsForTheWeek.Data(),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func writeOrderList(w http.ResponseWriter, res *planorders.ListResult) {
	out := orderListResponse{Orders: make([]orderResponse, 0, len(res.Orders)), NextCursor: res.NextCursor}
	for i := range res.Orders {
		out.Orders = append(out.Orders, newOrderResponse(&res.Orders[i]))
	}
	responses.WriteSuccess(w, out)
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}, nil
}

func orderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// ListOrders pages through every order, optionally for one ISO week.
func ListOrders(svc planorders.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in := planorders.AdminListParams{Params: params}
		if r.URL.Query().Get("week") != "" {
			week, err := validators.ParseQueryInt(r, "week", 0, 1, 53)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			in.Week = &week
		}
		res, err := svc.List(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrderList(w, res)
	}
}

// ListCurrentWeekOrders is the packing list for this ISO week.
func ListCurrentWeekOrders(svc planorders.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ListCurrentWeek(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrderList(w, res)
	}
}

func GetOrder(svc planorders.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func UpdateOrderStatus(svc planorders.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan order service unavailable"))
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), id, payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
