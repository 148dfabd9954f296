package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Report summarizes the catalog and sales for the dashboard.
type Report struct {
	TotalProducts     int              `json:"totalProducts"`
	TotalStock        int              `json:"totalStock"`
	LowStockThreshold int              `json:"lowStockThreshold"`
	LowStock          []domain.Product `json:"lowStock"`
	TotalSales        decimal.Decimal  `json:"totalSales"`
	SalesCount        int              `json:"salesCount"`
	TransactionCount  int              `json:"transactionCount"`
}

func (s *InventoryService) Report(ctx context.Context) (*Report, error) {
	snap, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return BuildReport(snap, s.lowStockThreshold), nil
}

func BuildReport(snap *domain.Snapshot, lowStockThreshold int) *Report {
	r := &Report{
		TotalProducts:     len(snap.Products),
		LowStockThreshold: lowStockThreshold,
		LowStock:          []domain.Product{},
		TotalSales:        decimal.Zero,
		SalesCount:        len(snap.Sales),
		TransactionCount:  len(snap.Transactions),
	}
	for _, p := range snap.Products {
		r.TotalStock += p.Quantity
		if p.IsLowStock(lowStockThreshold) {
			r.LowStock = append(r.LowStock, p)
		}
	}
	for _, sale := range snap.Sales {
		r.TotalSales = r.TotalSales.Add(sale.Total)
	}
	return r
}
