package planorders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

// AdminService is the back-office view over every subscriber's orders.
type AdminService interface {
	List(ctx context.Context, params AdminListParams) (*ListResult, error)
	ListCurrentWeek(ctx context.Context, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.PlanOrder, error)
}

type AdminServiceParams struct {
	Orders   Repository
	Calendar *weekcal.Calendar
	Logger   *logger.Logger
}

type AdminListParams struct {
	Week *int
	pagination.Params
}

// delivered and canceled are final.
var statusTransitions = map[enums.PlanOrderStatus][]enums.PlanOrderStatus{
	enums.PlanOrderStatusPending:   {enums.PlanOrderStatusPreparing, enums.PlanOrderStatusDelivered, enums.PlanOrderStatusCanceled},
	enums.PlanOrderStatusPreparing: {enums.PlanOrderStatusDelivered, enums.PlanOrderStatusCanceled},
}

func canTransition(from, to enums.PlanOrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type adminService struct {
	orders   Repository
	calendar *weekcal.Calendar
	logg     *logger.Logger
}

func NewAdminService(params AdminServiceParams) (AdminService, error) {
	if params.Orders == nil {
		return nil, errors.New("order repository required")
	}
	if params.Calendar == nil {
		return nil, errors.New("calendar required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &adminService{orders: params.Orders, calendar: params.Calendar, logg: params.Logger}, nil
}

func (s *adminService) List(ctx context.Context, params AdminListParams) (*ListResult, error) {
	if params.Week != nil && (*params.Week < 1 || *params.Week > 53) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "week must be between 1 and 53")
	}
	cursor, err := params.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.orders.List(ctx, ListFilter{Week: params.Week}, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plan orders")
	}
	out := &ListResult{}
	out.Orders, out.NextCursor = pagination.Trim(rows, params.Limit, orderCursor)
	return out, nil
}

func (s *adminService) ListCurrentWeek(ctx context.Context, params pagination.Params) (*ListResult, error) {
	week := s.calendar.CurrentWeek()
	return s.List(ctx, AdminListParams{Week: &week, Params: params})
}

func (s *adminService) Get(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan order")
	}
	return order, nil
}

// UpdateStatus applies a fulfilment transition. Setting the current status
// again is a no-op.
func (s *adminService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.PlanOrder, error) {
	to, err := enums.ParsePlanOrderStatus(status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !canTransition(order.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
	}

	updated, err := s.orders.UpdateStatus(ctx, id, order.Status, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update plan order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan order status changed concurrently")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": id.String(),
		"from":     order.Status.String(),
		"to":       to.String(),
	}), "plan order status updated")
	order.Status = to
	return order, nil
}
