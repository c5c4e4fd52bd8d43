package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。作成時点のスナップショットで、後から商品が変わっても影響しない
type OrderItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`

	ProductNameSnapshot  string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductImageSnapshot string          `gorm:"type:varchar(500)" json:"product_image_snapshot"`
	UnitPriceSnapshot    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price_snapshot"`

	Quantity  int64     `gorm:"not null" json:"quantity"`
	Size      string    `gorm:"type:varchar(20)" json:"size"`
	Color     string    `gorm:"type:varchar(50)" json:"color"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
