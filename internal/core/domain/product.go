package domain

import "github.com/shopspring/decimal"

func init() {
	// The stored document and every API keep money as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultLowStockThreshold is the quantity below which a product is shown as low on stock.
const DefaultLowStockThreshold = 5

// MoneyScale is the number of decimal places every stored amount is kept to.
const MoneyScale = 4

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Image       string          `json:"image"`
}

// StockValue is the monetary value of the quantity on hand.
func (p Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

func (p Product) IsLowStock(threshold int) bool {
	return p.Quantity < threshold
}
