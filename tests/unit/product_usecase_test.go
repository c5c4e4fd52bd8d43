package unit

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newProductFixture() (*ProductRepoMock, *InventoryRepoMock, *AuditRepoMock, *usecase.ProductUsecase) {
	products := new(ProductRepoMock)
	inventory := new(InventoryRepoMock)
	audit := new(AuditRepoMock)
	uc := usecase.NewProductUsecase(products, inventory, audit)
	return products, inventory, audit, uc
}

func TestListPublicProducts_PriceRangeValidation(t *testing.T) {
	_, _, _, uc := newProductFixture()

	min := decimal.RequireFromString("50.00")
	max := decimal.RequireFromString("10.00")

	_, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{
		Page: 1, Limit: 20, MinPrice: &min, MaxPrice: &max,
	})
	assertErrContains(t, err, "min_price must be <= max_price")
}

func TestGetProductDetail_Inactive_HiddenAs404(t *testing.T) {
	products, _, _, uc := newProductFixture()

	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, IsActive: false}, nil)

	_, err := uc.GetProductDetail(context.Background(), 10)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)
}

func TestAdminCreateProduct_SalePriceRequiredWhenOnSale(t *testing.T) {
	_, _, _, uc := newProductFixture()

	_, err := uc.AdminCreateProduct(context.Background(), 9, usecase.AdminCreateProductInput{
		Name:   "Jacket",
		Price:  decimal.RequireFromString("100.00"),
		OnSale: true,
	})
	assertErrContains(t, err, "sale_price required when on_sale")
}

// 在庫更新は履歴（差分）と監査ログを残す
func TestAdminUpdateInventory_RecordsAdjustmentAndAudit(t *testing.T) {
	products, inventory, audit, uc := newProductFixture()

	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Stock: 3}, nil)
	inventory.On("SetStock", mock.Anything, int64(10), int64(8)).Return(nil)
	inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ProductID == 10 && a.AdminUserID == 9 && a.Delta == 5 && a.Reason == "restock"
	})).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateStock &&
			l.ResourceType == model.AuditResourceProduct &&
			l.BeforeJSON == `{"stock":3}` &&
			l.AfterJSON == `{"stock":8}`
	})).Return(nil)

	err := uc.AdminUpdateInventory(context.Background(), 9, 10, 8, "restock")
	assert.NoError(t, err)

	inventory.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAdminUpdateInventory_ReasonRequired(t *testing.T) {
	_, _, _, uc := newProductFixture()

	err := uc.AdminUpdateInventory(context.Background(), 9, 10, 8, "  ")
	assertErrContains(t, err, "reason required")
}

func TestAdminDeleteProduct_NotFound(t *testing.T) {
	products, _, _, uc := newProductFixture()

	products.On("SoftDelete", mock.Anything, int64(99)).Return(repo.ErrNotFound)

	err := uc.AdminDeleteProduct(context.Background(), 9, 99)
	assertErrContains(t, err, "not found")
}
