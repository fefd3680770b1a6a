package planorders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	"github.com/angelmondragon/mealbox-backend/pkg/pagination"
)

// Repository persists plan orders. After creation only the fulfilment status
// changes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PlanOrder) error
	ExistsForWeek(ctx context.Context, planID uuid.UUID, week int) (bool, error)
	CountForPlan(ctx context.Context, planID uuid.UUID, excludeOrderID uuid.UUID) (int64, error)
	ListForPlan(ctx context.Context, planID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PlanOrder, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.PlanOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PlanOrderStatus) (bool, error)
}

// ListFilter narrows the back-office order list; the zero value lists all.
type ListFilter struct {
	Week *int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a plan order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PlanOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) ExistsForWeek(ctx context.Context, planID uuid.UUID, week int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PlanOrder{}).
		Where("plan_id = ? AND week = ?", planID, week).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountForPlan counts the plan's orders, leaving out excludeOrderID when set.
func (r *repository) CountForPlan(ctx context.Context, planID uuid.UUID, excludeOrderID uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanOrder{}).Where("plan_id = ?", planID)
	if excludeOrderID != uuid.Nil {
		query = query.Where("id <> ?", excludeOrderID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListForPlan returns newest orders first, starting after cursor.
func (r *repository) ListForPlan(ctx context.Context, planID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PlanOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanOrder{}).Where("plan_id = ?", planID)
	return page(query, limit, cursor)
}

func (r *repository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.PlanOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanOrder{})
	if filter.Week != nil {
		query = query.Where("week = ?", *filter.Week)
	}
	return page(query, limit, cursor)
}

func page(query *gorm.DB, limit int, cursor *pagination.Cursor) ([]models.PlanOrder, error) {
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.PlanOrder
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error) {
	var order models.PlanOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves the order from one status to another and reports false
// when the stored status was no longer from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PlanOrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PlanOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
