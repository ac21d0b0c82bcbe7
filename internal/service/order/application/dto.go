package application

import "github.com/shopspring/decimal"

// SuccessMessage 是结算成功时返回的固定文案
const SuccessMessage = "Order created successfully!"

// CheckoutRequest 是结算用例的输入
type CheckoutRequest struct {
	UserID        int64    `json:"userId"`
	ProductIDs    []int64  `json:"productIds"`
	DiscountCodes []string `json:"discountCodes"`
	// IdempotencyKey 来自 Idempotency-Key 请求头，为空时不做幂等控制
	IdempotencyKey string `json:"-"`
}

// CheckoutResponse 是结算用例的输出
type CheckoutResponse struct {
	Message    string
	FinalPrice decimal.Decimal
	OrderID    string
}
