package repository

import (
	"context"
	"time"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 注文一覧の絞り込み。UserIDは管理者検索でのみ使う
type OrderListFilter struct {
	Page      int
	Limit     int
	Status    string
	UserID    *int64
	From      *time.Time
	To        *time.Time
	MinTotal  *decimal.Decimal
	MaxTotal  *decimal.Decimal
	Q         string
	Sort      string
	Direction string
}

// 集計レポート
type OrderStats struct {
	Total            int64
	ByStatus         map[model.OrderStatus]int64
	DeliveredRevenue decimal.Decimal
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//注文番号の重複チェック（unique制約のバックストップ付き）
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	//status/tracking/notesをまとめて更新。作成後に動くのはこの3つだけ
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, trackingNumber string, notes string) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	ListByUserID(ctx context.Context, userID int64, f OrderListFilter) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)

	//総数・ステータス別件数・delivered売上
	Stats(ctx context.Context) (OrderStats, error)
}
