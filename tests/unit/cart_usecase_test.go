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

func newCartFixture() (*CartRepoMock, *CartItemRepoMock, *ProductRepoMock, *usecase.CartUsecase) {
	carts := new(CartRepoMock)
	cartItems := new(CartItemRepoMock)
	products := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(carts, cartItems, products)
	return carts, cartItems, products, uc
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	_, _, products, uc := newCartFixture()

	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: 1})
	assertErrContains(t, err, "product not found")
}

func TestAddToCart_InactiveProduct(t *testing.T) {
	_, _, products, uc := newCartFixture()

	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, IsActive: false}, nil)

	_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: 1})
	assertErrContains(t, err, "product not available")
}

// 同一(商品・サイズ・色)は数量加算で渡す
func TestAddToCart_VariantUpsert(t *testing.T) {
	carts, cartItems, products, uc := newCartFixture()

	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{
		ID: 10, Name: "T-Shirt", IsActive: true,
		Price: decimal.RequireFromString("20.00"),
	}, nil)
	carts.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 7, UserID: 1}, nil)
	cartItems.On("UpsertByCartAndVariant", mock.Anything, int64(7), int64(10), "M", "black", int64(2)).Return(nil)
	cartItems.On("ListByCartID", mock.Anything, int64(7)).Return([]model.CartItem{
		{ID: 1, CartID: 7, ProductID: 10, Quantity: 3, Size: "M", Color: "black"},
	}, nil)

	out, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{
		ProductID: 10, Quantity: 2, Size: "M", Color: "black",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(out.Items))
	assert.True(t, out.Total.Equal(decimal.RequireFromString("60.00")))

	cartItems.AssertExpectations(t)
}

// 他人の明細は404扱い
func TestUpdateItem_ForeignItem_HiddenAs404(t *testing.T) {
	_, cartItems, _, uc := newCartFixture()

	cartItems.On("IsOwnedByUser", mock.Anything, int64(5), int64(1)).Return(false, nil)

	_, err := uc.UpdateItem(context.Background(), 1, 5, usecase.UpdateCartItemInput{Quantity: 2})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)

	cartItems.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveItem_Success(t *testing.T) {
	_, cartItems, products, uc := newCartFixture()

	cartItems.On("IsOwnedByUser", mock.Anything, int64(5), int64(1)).Return(true, nil)
	cartItems.On("FindByID", mock.Anything, int64(5)).Return(model.CartItem{ID: 5, CartID: 7, ProductID: 10}, nil)
	cartItems.On("DeleteByID", mock.Anything, int64(5)).Return(nil)
	cartItems.On("ListByCartID", mock.Anything, int64(7)).Return([]model.CartItem{}, nil)

	out, err := uc.RemoveItem(context.Background(), 1, 5)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(out.Items))
	assert.True(t, out.Total.IsZero())

	products.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// 表示価格はセール解決後の現在価格。消えた商品の明細は落とす
func TestGetCart_CurrentPrices_SkipsVanished(t *testing.T) {
	carts, cartItems, products, uc := newCartFixture()

	carts.On("GetOrCreateActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 7, UserID: 1}, nil)
	cartItems.On("ListByCartID", mock.Anything, int64(7)).Return([]model.CartItem{
		{ID: 1, CartID: 7, ProductID: 10, Quantity: 1},
		{ID: 2, CartID: 7, ProductID: 11, Quantity: 1},
	}, nil)
	products.On("FindByID", mock.Anything, int64(10)).Return(model.Product{
		ID: 10, Name: "Jacket", IsActive: true,
		Price:     decimal.RequireFromString("100.00"),
		SalePrice: decimal.RequireFromString("80.00"),
		OnSale:    true,
	}, nil)
	products.On("FindByID", mock.Anything, int64(11)).Return(model.Product{}, repo.ErrNotFound)

	out, err := uc.GetCart(context.Background(), 1)
	assert.NoError(t, err)

	assert.Equal(t, 1, len(out.Items))
	assert.True(t, out.Items[0].Price.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, out.Total.Equal(decimal.RequireFromString("80.00")))
}
