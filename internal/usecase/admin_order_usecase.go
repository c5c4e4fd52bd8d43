package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/notify"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文ステータスの状態機械を守るのはここだけ。
// 遷移はmodel.Orderの遷移表に従い、確定後に持ち主へ通知する
type AdminOrderUsecase struct {
	tx       repo.TransactionManager
	notifier notify.Notifier
	events   notify.EventPublisher
}

func NewAdminOrderUsecase(tx repo.TransactionManager, notifier notify.Notifier, events notify.EventPublisher) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, notifier: notifier, events: events}
}

type AdminUpdateOrderStatusInput struct {
	Status         string
	TrackingNumber string
	Note           string
}

type AdminOrderStatusOutput struct {
	ID          int64     `json:"id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ステータス更新。cancelledへの遷移は在庫を戻す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (AdminOrderStatusOutput, error) {
	if actorAdminUserID <= 0 {
		return AdminOrderStatusOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return AdminOrderStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	if !model.IsValidOrderStatus(newStatus) {
		return AdminOrderStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out AdminOrderStatusOutput
	var ownerUserID int64
	var tracking string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewCodedError(http.StatusNotFound, CodeOrderNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if !o.CanTransitionTo(newStatus) {
			return NewCodedError(http.StatusBadRequest, CodeInvalidTransition,
				fmt.Sprintf("cannot change status from %s to %s", o.Status, newStatus))
		}

		// cancelledのときだけ在庫戻し
		if newStatus == model.OrderStatusCancelled {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		now := time.Now()
		beforeStatus := o.Status

		o.Status = newStatus
		if strings.TrimSpace(in.TrackingNumber) != "" {
			o.TrackingNumber = strings.TrimSpace(in.TrackingNumber)
		}
		//メモは追記のみ。上書きしない
		o.AppendNote(strings.TrimSpace(in.Note), now)

		if err := r.Orders().UpdateStatus(ctx, orderID, o.Status, o.TrackingNumber, o.Notes); err != nil {
			if err == repo.ErrNotFound {
				return NewCodedError(http.StatusNotFound, CodeOrderNotFound, "order not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// ★監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON := `{"status":"` + string(beforeStatus) + `"}`
		afterJSON := `{"status":"` + string(newStatus) + `"}`
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		ownerUserID = o.UserID
		tracking = o.TrackingNumber
		out = AdminOrderStatusOutput{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
			UpdatedAt:   now,
		}
		return nil
	})

	if err != nil {
		return AdminOrderStatusOutput{}, err
	}

	//永続化してから通知。配送失敗でも巻き戻さない
	payload := map[string]interface{}{
		"order_id":     out.ID,
		"order_number": out.OrderNumber,
		"status":       out.Status,
	}
	if tracking != "" {
		payload["tracking_number"] = tracking
	}
	u.notifier.NotifyUser(ownerUserID, notify.EventOrderStatusUpdated, payload)
	if u.events != nil {
		u.events.Publish(ctx, out.OrderNumber, map[string]interface{}{
			"event":        notify.EventOrderStatusUpdated,
			"order_id":     out.ID,
			"order_number": out.OrderNumber,
			"user_id":      ownerUserID,
			"status":       out.Status,
		})
	}

	return out, nil
}

type AdminBulkUpdateStatusInput struct {
	OrderIDs       []int64
	Status         string
	TrackingNumber string
	Note           string
}

type BulkSkippedOrder struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

type AdminBulkUpdateStatusOutput struct {
	Updated []AdminOrderStatusOutput `json:"updated"`
	Skipped []BulkSkippedOrder       `json:"skipped"`
}

// 一括更新はベストエフォート。1件の遷移違反で他の注文を止めない
func (u *AdminOrderUsecase) BulkUpdateStatus(ctx context.Context, actorAdminUserID int64, in AdminBulkUpdateStatusInput) (AdminBulkUpdateStatusOutput, error) {
	if actorAdminUserID <= 0 {
		return AdminBulkUpdateStatusOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.OrderIDs) == 0 {
		return AdminBulkUpdateStatusOutput{}, NewHTTPError(http.StatusBadRequest, "order_ids required")
	}
	if !model.IsValidOrderStatus(model.OrderStatus(strings.TrimSpace(in.Status))) {
		return AdminBulkUpdateStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	out := AdminBulkUpdateStatusOutput{
		Updated: []AdminOrderStatusOutput{},
		Skipped: []BulkSkippedOrder{},
	}

	for _, orderID := range in.OrderIDs {
		res, err := u.UpdateStatus(ctx, actorAdminUserID, orderID, AdminUpdateOrderStatusInput{
			Status:         in.Status,
			TrackingNumber: in.TrackingNumber,
			Note:           in.Note,
		})
		if err != nil {
			reason := "internal error"
			if he, ok := AsHTTPError(err); ok {
				reason = he.Message
			}
			out.Skipped = append(out.Skipped, BulkSkippedOrder{OrderID: orderID, Reason: reason})
			continue
		}
		out.Updated = append(out.Updated, res)
	}

	return out, nil
}

type AdminListOrdersInput struct {
	ListOrdersInput
	UserID   *int64
	From     *time.Time
	To       *time.Time
	MinTotal *decimal.Decimal
	MaxTotal *decimal.Decimal
	Q        string
}

// 注文一覧（管理者）
func (u *AdminOrderUsecase) List(ctx context.Context, in AdminListOrdersInput) (OrderListOutput, error) {
	if err := validateListOrdersInput(in.ListOrdersInput); err != nil {
		return OrderListOutput{}, err
	}
	if len(in.Q) > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, repo.OrderListFilter{
			Page:      in.Page,
			Limit:     in.Limit,
			Status:    in.Status,
			UserID:    in.UserID,
			From:      in.From,
			To:        in.To,
			MinTotal:  in.MinTotal,
			MaxTotal:  in.MaxTotal,
			Q:         strings.TrimSpace(in.Q),
			Sort:      in.Sort,
			Direction: in.Direction,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		summaries := make([]OrderSummary, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			summaries = append(summaries, toOrderSummary(o, items))
		}

		out = OrderListOutput{
			Items:      summaries,
			Pagination: newPagination(in.Page, in.Limit, total),
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// 注文詳細（管理者は所有チェック無し）
func (u *AdminOrderUsecase) Detail(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewCodedError(http.StatusNotFound, CodeOrderNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

const recentOrdersLimit = 5

type OrderStatsOutput struct {
	TotalOrders  int64            `json:"total_orders"`
	ByStatus     map[string]int64 `json:"by_status"`
	TotalRevenue decimal.Decimal  `json:"total_revenue"`
	RecentOrders []OrderSummary   `json:"recent_orders"`
}

// ダッシュボード用の集計。売上はdeliveredのみで数える
func (u *AdminOrderUsecase) Stats(ctx context.Context) (OrderStatsOutput, error) {
	var out OrderStatsOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		stats, err := r.Orders().Stats(ctx)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		byStatus := map[string]int64{}
		for _, s := range model.AllOrderStatuses {
			byStatus[string(s)] = stats.ByStatus[s]
		}

		recent, _, err := r.Orders().ListAdmin(ctx, repo.OrderListFilter{
			Page:  1,
			Limit: recentOrdersLimit,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		summaries := make([]OrderSummary, 0, len(recent))
		for _, o := range recent {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			summaries = append(summaries, toOrderSummary(o, items))
		}

		out = OrderStatsOutput{
			TotalOrders:  stats.Total,
			ByStatus:     byStatus,
			TotalRevenue: stats.DeliveredRevenue,
			RecentOrders: summaries,
		}
		return nil
	})

	if err != nil {
		return OrderStatsOutput{}, err
	}
	return out, nil
}
