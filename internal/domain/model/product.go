package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"type:varchar(500)" json:"image_url"`

	//通常価格
	Price decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`

	//セール価格（OnSaleがtrueのときだけ有効）
	SalePrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"sale_price"`
	OnSale    bool            `gorm:"not null;default:false" json:"on_sale"`

	Stock     int64          `gorm:"not null" json:"stock"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 注文確定時の単価（セール中はセール価格を使う）
func (p Product) CurrentPrice() decimal.Decimal {
	if p.OnSale && p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}
