package usecase

import (
	"errors"
	"fmt"
)

// 呼び出し側が分岐できるエラーコード
const (
	CodeCartEmpty          = "CART_EMPTY"
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeCheckoutFailed     = "CHECKOUT_FAILED"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// コード付き（注文系の分類エラー）
func NewCodedError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
