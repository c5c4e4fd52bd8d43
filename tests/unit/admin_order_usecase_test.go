package unit

import (
	"context"
	"testing"

	"app/internal/domain/model"
	"app/internal/notify"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAdminOrderFixture() (*TxManagerMock, *OrderRepoMock, *OrderItemRepoMock, *InventoryRepoMock, *AuditRepoMock, *NotifierMock, *PublisherMock, *usecase.AdminOrderUsecase) {
	tx := new(TxManagerMock)
	orders := new(OrderRepoMock)
	items := new(OrderItemRepoMock)
	inventory := new(InventoryRepoMock)
	audit := new(AuditRepoMock)
	notifier := new(NotifierMock)
	publisher := new(PublisherMock)

	tx.Repos = &TxReposMock{
		orders:     orders,
		orderItems: items,
		inventory:  inventory,
		auditLogs:  audit,
	}

	uc := usecase.NewAdminOrderUsecase(tx, notifier, publisher)
	return tx, orders, items, inventory, audit, notifier, publisher, uc
}

// =====================
// UpdateStatus tests
// =====================

func TestAdminOrder_UpdateStatus_UnauthorizedActor(t *testing.T) {
	_, _, _, _, _, _, _, uc := newAdminOrderFixture()

	_, err := uc.UpdateStatus(context.Background(), 0, 1, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})
	assertErrContains(t, err, "unauthorized")
}

func TestAdminOrder_UpdateStatus_InvalidOrderID(t *testing.T) {
	_, _, _, _, _, _, _, uc := newAdminOrderFixture()

	_, err := uc.UpdateStatus(context.Background(), 1, 0, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})
	assertErrContains(t, err, "invalid id")
}

func TestAdminOrder_UpdateStatus_UnknownStatus(t *testing.T) {
	_, _, _, _, _, _, _, uc := newAdminOrderFixture()

	_, err := uc.UpdateStatus(context.Background(), 1, 1, usecase.AdminUpdateOrderStatusInput{Status: "paid"})
	assertErrContains(t, err, "invalid status")
}

func TestAdminOrder_UpdateStatus_NotFound(t *testing.T) {
	tx, orders, _, _, _, _, _, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(99)).Return(model.Order{}, repo.ErrNotFound)

	_, err := uc.UpdateStatus(context.Background(), 1, 99, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeOrderNotFound, he.Code)
}

// 遷移表にない移動は拒否（pendingからdeliveredへは飛べない）
func TestAdminOrder_UpdateStatus_SkipAhead_Rejected(t *testing.T) {
	tx, orders, _, _, audit, notifier, _, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID: 1, UserID: 5, Status: model.OrderStatusPending,
	}, nil)

	_, err := uc.UpdateStatus(context.Background(), 1, 1, usecase.AdminUpdateOrderStatusInput{Status: "delivered"})
	assertErrContains(t, err, "cannot change status from pending to delivered")

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInvalidTransition, he.Code)

	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "NotifyUser", mock.Anything, mock.Anything, mock.Anything)
}

// 終端からはどこへも動けない
func TestAdminOrder_UpdateStatus_TerminalStates_Rejected(t *testing.T) {
	for _, from := range []model.OrderStatus{model.OrderStatusDelivered, model.OrderStatusCancelled} {
		tx, orders, _, _, _, _, _, uc := newAdminOrderFixture()

		tx.On("WithinTx", mock.Anything).Return(nil)
		orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
			ID: 1, UserID: 5, Status: from,
		}, nil)

		_, err := uc.UpdateStatus(context.Background(), 1, 1, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})

		he, ok := usecase.AsHTTPError(err)
		assert.True(t, ok, "from=%s", from)
		assert.Equal(t, usecase.CodeInvalidTransition, he.Code, "from=%s", from)
	}
}

// 同じステータスへの変更も遷移表に無いので拒否
func TestAdminOrder_UpdateStatus_SameStatus_Rejected(t *testing.T) {
	tx, orders, _, _, _, _, _, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID: 1, UserID: 5, Status: model.OrderStatusConfirmed,
	}, nil)

	_, err := uc.UpdateStatus(context.Background(), 1, 1, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInvalidTransition, he.Code)
}

// shipped→delivered。tracking付きで持ち主へ通知する
func TestAdminOrder_UpdateStatus_Delivered_NotifiesOwner(t *testing.T) {
	tx, orders, _, inventory, audit, notifier, publisher, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID: 1, UserID: 5, OrderNumber: "ORD-1700000000-001",
		Status: model.OrderStatusShipped, TrackingNumber: "TRK-111",
	}, nil)
	orders.On("UpdateStatus", mock.Anything, int64(1), model.OrderStatusDelivered, "TRK-111", mock.Anything).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateOrderStatus &&
			l.ResourceType == model.AuditResourceOrder &&
			l.ResourceID == 1 &&
			l.ActorUserID == 9
	})).Return(nil)
	notifier.On("NotifyUser", int64(5), notify.EventOrderStatusUpdated, mock.MatchedBy(func(p interface{}) bool {
		payload, ok := p.(map[string]interface{})
		return ok && payload["status"] == "delivered" && payload["tracking_number"] == "TRK-111"
	})).Return()
	publisher.On("Publish", mock.Anything, "ORD-1700000000-001", mock.Anything).Return()

	out, err := uc.UpdateStatus(context.Background(), 9, 1, usecase.AdminUpdateOrderStatusInput{Status: "delivered"})
	assert.NoError(t, err)
	assert.Equal(t, "delivered", out.Status)

	//deliveredでは在庫は動かさない
	inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)

	orders.AssertExpectations(t)
	audit.AssertExpectations(t)
	notifier.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

// cancelへの遷移は明細分の在庫を戻す
func TestAdminOrder_UpdateStatus_Cancel_RestoresStock(t *testing.T) {
	tx, orders, items, inventory, audit, notifier, publisher, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID: 1, UserID: 5, OrderNumber: "ORD-1700000000-002", Status: model.OrderStatusPending,
	}, nil)
	items.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.OrderItem{
		{OrderID: 1, ProductID: 10, Quantity: 2},
		{OrderID: 1, ProductID: 11, Quantity: 1},
	}, nil)
	inventory.On("IncreaseStock", mock.Anything, int64(10), int64(2)).Return(nil)
	inventory.On("IncreaseStock", mock.Anything, int64(11), int64(1)).Return(nil)
	orders.On("UpdateStatus", mock.Anything, int64(1), model.OrderStatusCancelled, mock.Anything, mock.Anything).Return(nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	notifier.On("NotifyUser", int64(5), notify.EventOrderStatusUpdated, mock.Anything).Return()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	out, err := uc.UpdateStatus(context.Background(), 9, 1, usecase.AdminUpdateOrderStatusInput{
		Status: "cancelled",
		Note:   "customer request",
	})
	assert.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)

	inventory.AssertExpectations(t)
}

// =====================
// BulkUpdateStatus tests
// =====================

// 一括更新はベストエフォート。遷移違反の1件は skipped に入り、残りは更新される
func TestAdminOrder_BulkUpdateStatus_BestEffort(t *testing.T) {
	tx, orders, _, _, audit, notifier, publisher, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID: 1, UserID: 5, Status: model.OrderStatusPending,
	}, nil)
	orders.On("FindByID", mock.Anything, int64(2)).Return(model.Order{
		ID: 2, UserID: 6, Status: model.OrderStatusDelivered,
	}, nil)
	orders.On("FindByID", mock.Anything, int64(3)).Return(model.Order{}, repo.ErrNotFound)
	orders.On("UpdateStatus", mock.Anything, int64(1), model.OrderStatusConfirmed, mock.Anything, mock.Anything).Return(nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	notifier.On("NotifyUser", int64(5), mock.Anything, mock.Anything).Return()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	out, err := uc.BulkUpdateStatus(context.Background(), 9, usecase.AdminBulkUpdateStatusInput{
		OrderIDs: []int64{1, 2, 3},
		Status:   "confirmed",
	})
	assert.NoError(t, err)

	assert.Equal(t, 1, len(out.Updated))
	assert.Equal(t, int64(1), out.Updated[0].ID)

	assert.Equal(t, 2, len(out.Skipped))
	assert.Equal(t, int64(2), out.Skipped[0].OrderID)
	assert.Contains(t, out.Skipped[0].Reason, "cannot change status")
	assert.Equal(t, int64(3), out.Skipped[1].OrderID)
	assert.Contains(t, out.Skipped[1].Reason, "not found")
}

func TestAdminOrder_BulkUpdateStatus_EmptyIDs(t *testing.T) {
	_, _, _, _, _, _, _, uc := newAdminOrderFixture()

	_, err := uc.BulkUpdateStatus(context.Background(), 9, usecase.AdminBulkUpdateStatusInput{Status: "confirmed"})
	assertErrContains(t, err, "order_ids required")
}

// =====================
// List / Stats tests
// =====================

func TestAdminOrder_List_InvalidPage(t *testing.T) {
	_, _, _, _, _, _, _, uc := newAdminOrderFixture()

	_, err := uc.List(context.Background(), usecase.AdminListOrdersInput{
		ListOrdersInput: usecase.ListOrdersInput{Page: 0, Limit: 20},
	})
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrder_List_Success(t *testing.T) {
	tx, orders, items, _, _, _, _, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("ListAdmin", mock.Anything, mock.MatchedBy(func(f repo.OrderListFilter) bool {
		return f.Page == 1 && f.Limit == 20 && f.Status == "pending"
	})).Return([]model.Order{
		{ID: 10, Status: model.OrderStatusPending},
		{ID: 11, Status: model.OrderStatusPending},
	}, int64(2), nil)
	items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)
	items.On("ListByOrderID", mock.Anything, int64(11)).Return([]model.OrderItem{}, nil)

	out, err := uc.List(context.Background(), usecase.AdminListOrdersInput{
		ListOrdersInput: usecase.ListOrdersInput{Page: 1, Limit: 20, Status: "pending"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(out.Items))
	assert.Equal(t, int64(2), out.Pagination.Total)

	orders.AssertExpectations(t)
}

// 集計はdeliveredの売上だけ数え、全ステータスのキーを返す
func TestAdminOrder_Stats(t *testing.T) {
	tx, orders, items, _, _, _, _, uc := newAdminOrderFixture()

	tx.On("WithinTx", mock.Anything).Return(nil)
	orders.On("Stats", mock.Anything).Return(repo.OrderStats{
		Total: 12,
		ByStatus: map[model.OrderStatus]int64{
			model.OrderStatusPending:   4,
			model.OrderStatusDelivered: 8,
		},
		DeliveredRevenue: decimal.RequireFromString("1234.50"),
	}, nil)
	orders.On("ListAdmin", mock.Anything, mock.MatchedBy(func(f repo.OrderListFilter) bool {
		return f.Page == 1 && f.Limit == 5
	})).Return([]model.Order{{ID: 1}}, int64(12), nil)
	items.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.OrderItem{}, nil)

	out, err := uc.Stats(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, int64(12), out.TotalOrders)
	assert.True(t, out.TotalRevenue.Equal(decimal.RequireFromString("1234.50")))
	assert.Equal(t, int64(4), out.ByStatus["pending"])
	assert.Equal(t, int64(8), out.ByStatus["delivered"])

	//件数ゼロのステータスもキーとして含まれる
	_, hasCancelled := out.ByStatus["cancelled"]
	assert.True(t, hasCancelled)

	assert.Equal(t, 1, len(out.RecentOrders))
}
