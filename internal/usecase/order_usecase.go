package usecase

import (
	"context"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文参照系（ユーザー向け）。作成はCheckoutUsecase、変更はAdminOrderUsecase
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

type OrderOutput struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	OrderNumber     string                `json:"order_number"`
	Status          string                `json:"status"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Tax             decimal.Decimal       `json:"tax"`
	Total           decimal.Decimal       `json:"total"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	TrackingNumber  string                `json:"tracking_number,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Items           []OrderItemOutput     `json:"items"`
}

// 一覧用の要約。Itemsは先頭3件だけ
type OrderSummary struct {
	ID          int64             `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      string            `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

// ページング情報
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"total_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func newPagination(page int, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type OrderListOutput struct {
	Items      []OrderSummary `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

type ListOrdersInput struct {
	Page      int
	Limit     int
	Status    string
	Sort      string
	Direction string
}

func validateListOrdersInput(in ListOrdersInput) error {
	if in.Page < 1 {
		return NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Status != "" && !model.IsValidOrderStatus(model.OrderStatus(in.Status)) {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	switch in.Sort {
	case "", "created_at", "total", "status", "order_number":
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid sort")
	}
	switch in.Direction {
	case "", "asc", "desc":
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid direction")
	}
	return nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, in ListOrdersInput) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateListOrdersInput(in); err != nil {
		return OrderListOutput{}, err
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, repo.OrderListFilter{
			Page:      in.Page,
			Limit:     in.Limit,
			Status:    in.Status,
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
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
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewCodedError(http.StatusNotFound, CodeOrderNotFound, "order not found")
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

// ステータス候補（固定の参照データ）
type StatusOption struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

var statusDescriptions = map[model.OrderStatus]string{
	model.OrderStatusPending:    "Order received and awaiting confirmation",
	model.OrderStatusConfirmed:  "Order confirmed and queued for processing",
	model.OrderStatusProcessing: "Items are being picked and packed",
	model.OrderStatusShipped:    "Package handed to the carrier",
	model.OrderStatusDelivered:  "Package delivered to the customer",
	model.OrderStatusCancelled:  "Order cancelled; stock returned",
}

func StatusOptions() []StatusOption {
	opts := make([]StatusOption, 0, len(model.AllOrderStatuses))
	for _, s := range model.AllOrderStatuses {
		opts = append(opts, StatusOption{Value: string(s), Description: statusDescriptions[s]})
	}
	return opts
}

func toOrderItemOutputs(items []model.OrderItem) []OrderItemOutput {
	outs := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outs = append(outs, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Image:     it.ProductImageSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return outs
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           toOrderItemOutputs(items),
	}
}

func toOrderSummary(o model.Order, items []model.OrderItem) OrderSummary {
	outs := toOrderItemOutputs(items)
	preview := outs
	if len(preview) > 3 {
		preview = preview[:3]
	}
	return OrderSummary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Total:       o.Total,
		ItemCount:   len(outs),
		CreatedAt:   o.CreatedAt,
		Items:       preview,
	}
}
