package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, trackingNumber string, notes string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":          status,
			"tracking_number": trackingNumber,
			"notes":           notes,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// 並び替えできる列はここに載っているものだけ
var orderSortColumns = map[string]string{
	"created_at":   "created_at",
	"total":        "total",
	"status":       "status",
	"order_number": "order_number",
}

func applyOrderFilter(q *gorm.DB, f repo.OrderListFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if f.MinTotal != nil {
		q = q.Where("total >= ?", *f.MinTotal)
	}
	if f.MaxTotal != nil {
		q = q.Where("total <= ?", *f.MaxTotal)
	}
	if f.Q != "" {
		like := "%" + f.Q + "%"
		q = q.Where("order_number ILIKE ? OR shipping_full_name ILIKE ?", like, like)
	}
	return q
}

func orderSortClause(f repo.OrderListFilter) string {
	col, ok := orderSortColumns[f.Sort]
	if !ok {
		col = "created_at"
	}
	dir := "desc"
	if f.Direction == "asc" {
		dir = "asc"
	}
	return col + " " + dir
}

func (r *OrderGormRepository) list(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}

	q := applyOrderFilter(r.db.WithContext(ctx).Model(&model.Order{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order(orderSortClause(f)).Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, f repo.OrderListFilter) ([]model.Order, int64, error) {
	f.UserID = &userID
	return r.list(ctx, f)
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	return r.list(ctx, f)
}

func (r *OrderGormRepository) Stats(ctx context.Context) (repo.OrderStats, error) {
	stats := repo.OrderStats{
		ByStatus: map[model.OrderStatus]int64{},
	}

	if err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&stats.Total).Error; err != nil {
		return repo.OrderStats{}, err
	}

	//ステータス別件数
	var rows []struct {
		Status model.OrderStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return repo.OrderStats{}, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
	}

	//売上はdeliveredだけで数える
	var rev struct {
		Revenue decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("COALESCE(SUM(total), 0) as revenue").
		Where("status = ?", model.OrderStatusDelivered).
		Scan(&rev).Error; err != nil {
		return repo.OrderStats{}, err
	}
	stats.DeliveredRevenue = rev.Revenue

	return stats, nil
}
