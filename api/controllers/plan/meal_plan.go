package plan

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealbox-backend/api/responses"
	"github.com/angelmondragon/mealbox-backend/api/validators"
	"github.com/angelmondragon/mealbox-backend/internal/plans"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

type createPlanRequest struct {
	NumberOfDays int `json:"numberOfDays" validate:"required,min=1,max=7"`
	MealsPerDay  int `json:"mealsPerDay" validate:"required,min=4,max=6"`
}

type updatePlanRequest struct {
	NumberOfDays *int `json:"numberOfDays" validate:"omitempty,min=1,max=7"`
	MealsPerDay  *int `json:"mealsPerDay" validate:"omitempty,min=4,max=6"`
}

type planResponse struct {
	ID               uuid.UUID `json:"id"`
	NumberOfDays     int       `json:"number_of_days"`
	MealsPerDay      int       `json:"meals_per_day"`
	Status           string    `json:"status"`
	ConfirmOrderWeek *int      `json:"confirm_order_week"`
	CreatedAt        time.Time `json:"created_at"`
}

type updatePlanResponse struct {
	Plan          planResponse `json:"plan"`
	BillingSynced bool         `json:"billing_synced"`
}

func newPlanResponse(p *models.MealPlan) planResponse {
	return planResponse{
		ID:               p.ID,
		NumberOfDays:     p.NumberOfDays,
		MealsPerDay:      p.MealsPerDay,
		Status:           string(p.Status),
		ConfirmOrderWeek: p.ConfirmOrderWeek,
		CreatedAt:        p.CreatedAt,
	}
}

func GetPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPlanResponse(p))
	}
}

// CreatePlan stores an inactive plan; Activate starts billing for it.
func CreatePlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := svc.Create(r.Context(), id, plans.CreateInput{
			NumberOfDays: payload.NumberOfDays,
			MealsPerDay:  payload.MealsPerDay,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPlanResponse(p))
	}
}

// UpdatePlan changes days or meals per day; an active subscription is
// re-priced.
func UpdatePlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		id, err := subscriberID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updatePlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Update(r.Context(), id, plans.UpdateInput{
			NumberOfDays: payload.NumberOfDays,
			MealsPerDay:  payload.MealsPerDay,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updatePlanResponse{
			Plan:          newPlanResponse(res.Plan),
			BillingSynced: res.BillingErr == nil,
		})
	}
}
