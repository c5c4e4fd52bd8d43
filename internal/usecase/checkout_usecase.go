package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/notify"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 税率は固定10%
var taxRate = decimal.RequireFromString("0.10")

// 注文番号の再生成リトライ上限。unique制約が最後の砦
const orderNumberAttempts = 5

// お届け目安（確定からの日数）
const estimatedDeliveryDays = 5

// 配送先が省略されたときの固定プレースホルダ
var placeholderShippingAddress = model.ShippingAddress{
	FullName:   "Guest Customer",
	Phone:      "000-0000-000",
	Street:     "1 Placeholder Street",
	City:       "Unknown",
	State:      "Unknown",
	PostalCode: "00000",
	Country:    "Unknown",
}

// カートから注文を確定する。検証→注文作成→在庫減算→カートクリアを
// 1トランザクションで行い、途中で失敗したら全部巻き戻す
type CheckoutUsecase struct {
	tx       repo.TransactionManager
	notifier notify.Notifier
	events   notify.EventPublisher
}

func NewCheckoutUsecase(tx repo.TransactionManager, notifier notify.Notifier, events notify.EventPublisher) *CheckoutUsecase {
	return &CheckoutUsecase{tx: tx, notifier: notifier, events: events}
}

type CheckoutInput struct {
	ShippingAddress *model.ShippingAddress
	Notes           string
	IdempotencyKey  string
}

type CheckoutOutput struct {
	Order             OrderOutput `json:"order"`
	EstimatedDelivery string      `json:"estimated_delivery"`
}

func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	if len(key) > 255 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	addr := placeholderShippingAddress
	if in.ShippingAddress != nil {
		addr = *in.ShippingAddress
	}

	var out OrderOutput
	reused := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
			}
			out = toOrderOutput(existing, items)
			reused = true
			return nil
		}

		//ACTIVEカート取得。無ければ空と同じ扱い
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if err == repo.ErrNotFound {
			return NewCodedError(http.StatusBadRequest, CodeCartEmpty, "cart is empty")
		}
		if err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}
		if len(cartItems) == 0 {
			return NewCodedError(http.StatusBadRequest, CodeCartEmpty, "cart is empty")
		}

		//全明細を検証してから書き込みに進む。途中でダメなら何も書かない
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		subtotal := decimal.Zero
		now := time.Now()

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewCodedError(http.StatusBadRequest, CodeProductUnavailable,
					fmt.Sprintf("product %d is no longer available", ci.ProductID))
			}
			if err != nil {
				return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
			}
			if !p.IsActive {
				return NewCodedError(http.StatusBadRequest, CodeProductUnavailable,
					fmt.Sprintf("product %q is no longer available", p.Name))
			}
			if p.Stock < ci.Quantity {
				return NewCodedError(http.StatusBadRequest, CodeInsufficientStock,
					fmt.Sprintf("insufficient stock for %q: available %d, requested %d", p.Name, p.Stock, ci.Quantity))
			}

			//単価はセール解決後の価格で凍結する
			price := p.CurrentPrice()
			orderItems = append(orderItems, model.OrderItem{
				ProductID:            p.ID,
				ProductNameSnapshot:  p.Name,
				ProductImageSnapshot: p.ImageURL,
				UnitPriceSnapshot:    price,
				Quantity:             ci.Quantity,
				Size:                 ci.Size,
				Color:                ci.Color,
				CreatedAt:            now,
			})

			subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(ci.Quantity)))
		}

		subtotal = subtotal.Round(2)
		tax := subtotal.Mul(taxRate).Round(2)
		total := subtotal.Add(tax).Round(2)

		number, err := u.newOrderNumber(ctx, r, now)
		if err != nil {
			return err
		}

		order := model.Order{
			UserID:          userID,
			OrderNumber:     number,
			Status:          model.OrderStatusPending,
			Subtotal:        subtotal,
			Tax:             tax,
			Total:           total,
			ShippingAddress: addr,
			IdempotencyKey:  key,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if in.Notes != "" {
			order.AppendNote(in.Notes, now)
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			//競合（同時で同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err3.Error())
				}
				out = toOrderOutput(ex2, items2)
				reused = true
				return nil
			}
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}

		//在庫は条件付きUPDATEで減らす。0件更新＝売り越し寸前なので全体を巻き戻す
		for _, it := range orderItems {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
			}
			if !ok {
				return NewCodedError(http.StatusBadRequest, CodeInsufficientStock,
					fmt.Sprintf("insufficient stock for %q", it.ProductNameSnapshot))
			}
		}

		//カートをCHECKED_OUTにして、明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}

		order.ID = orderID
		out = toOrderOutput(order, orderItems)
		return nil
	})

	if err != nil {
		return CheckoutOutput{}, err
	}

	//通知はcommit後。失敗しても注文は巻き戻さない
	if !reused {
		u.notifier.NotifyAdmin(notify.EventOrderCreated, map[string]interface{}{
			"order_id":      out.ID,
			"order_number":  out.OrderNumber,
			"customer_name": out.ShippingAddress.FullName,
			"total":         out.Total,
			"item_count":    len(out.Items),
		})
		if u.events != nil {
			u.events.Publish(ctx, out.OrderNumber, map[string]interface{}{
				"event":        notify.EventOrderCreated,
				"order_id":     out.ID,
				"order_number": out.OrderNumber,
				"user_id":      out.UserID,
				"status":       out.Status,
				"total":        out.Total,
			})
		}
	}

	return CheckoutOutput{
		Order:             out,
		EstimatedDelivery: time.Now().AddDate(0, 0, estimatedDeliveryDays).Format("2006-01-02"),
	}, nil
}

// ORD-<unix秒>-<3桁乱数>。重複したら作り直す
func (u *CheckoutUsecase) newOrderNumber(ctx context.Context, r repo.TxRepos, now time.Time) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		number := fmt.Sprintf("ORD-%d-%03d", now.Unix(), rand.Intn(1000))

		exists, err := r.Orders().ExistsByNumber(ctx, number)
		if err != nil {
			return "", NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: "+err.Error())
		}
		if !exists {
			return number, nil
		}
	}
	return "", NewCodedError(http.StatusInternalServerError, CodeCheckoutFailed, "checkout failed: could not allocate order number")
}
