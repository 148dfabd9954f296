package domain

import "github.com/shopspring/decimal"

// Sale is a completed sale. ProductName is captured when the sale happens so
// it stays readable after the product is renamed or deleted.
type Sale struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId" validate:"required"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Total       decimal.Decimal `json:"total" validate:"gte=0"`
	Date        string          `json:"date"`
}
