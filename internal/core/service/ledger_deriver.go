package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// LedgerDeriver reconstructs ledger entries by diffing successive observations
// of the catalog and sales log. It is meant for importing data that was kept
// without a ledger; the entries it produces are reconstructions, not records.
//
// The deriver remembers what it has already observed, so feeding it the same
// observation twice yields nothing the second time. Observations must be fed
// in chronological order.
type LedgerDeriver struct {
	now   func() time.Time
	newID func() string

	products map[string]domain.Product
	order    []string
	sold     map[string]struct{}
}

func NewLedgerDeriver(now func() time.Time) *LedgerDeriver {
	if now == nil {
		now = time.Now
	}
	return &LedgerDeriver{
		now:      now,
		newID:    uuid.NewString,
		products: make(map[string]domain.Product),
		sold:     make(map[string]struct{}),
	}
}

// Observe compares the observation with the previous one and returns the
// entries that explain the difference, in the order added/restocked, sold,
// deleted. Quantities chain within an observation: a product's level before
// its new sales is its current quantity plus the units sold, so the deltas of
// the returned entries always sum to the observed change.
func (d *LedgerDeriver) Observe(products []domain.Product, sales []domain.Sale) []domain.TransactionRecord {
	date := domain.FormatDate(d.now())
	var records []domain.TransactionRecord

	var fresh []domain.Sale
	soldNow := make(map[string]int)
	for _, sale := range sales {
		if _, ok := d.sold[sale.ID]; ok {
			continue
		}
		d.sold[sale.ID] = struct{}{}
		fresh = append(fresh, sale)
		soldNow[sale.ProductID] += sale.Quantity
	}

	level := make(map[string]int)
	current := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		current[p.ID] = p
		order = append(order, p.ID)

		target := p.Quantity + soldNow[p.ID]
		prev, seen := d.products[p.ID]
		switch {
		case !seen:
			total := p.Price.Mul(decimal.NewFromInt(int64(target)))
			records = append(records, d.record(date, p.Name, p.Price, domain.ActionAdded, 0, target, total))
		case target > prev.Quantity:
			delta := decimal.NewFromInt(int64(target - prev.Quantity))
			records = append(records, d.record(date, p.Name, p.Price, domain.ActionRestocked, prev.Quantity, target, p.Price.Mul(delta)))
		}
		level[p.ID] = target
	}

	var gone []string
	for _, id := range d.order {
		if _, ok := current[id]; ok {
			continue
		}
		prev := d.products[id]
		start := prev.Quantity
		if sold := soldNow[id]; sold > start {
			delta := decimal.NewFromInt(int64(sold - start))
			records = append(records, d.record(date, prev.Name, prev.Price, domain.ActionRestocked, start, sold, prev.Price.Mul(delta)))
			start = sold
		}
		level[id] = start
		gone = append(gone, id)
	}

	for _, sale := range fresh {
		price := unitPrice(sale)
		if p, ok := current[sale.ProductID]; ok {
			price = p.Price
		} else if p, ok := d.products[sale.ProductID]; ok {
			price = p.Price
		}

		before, known := level[sale.ProductID]
		if !known {
			// never observed: it came and went between two observations
			before = soldNow[sale.ProductID]
			total := price.Mul(decimal.NewFromInt(int64(before)))
			records = append(records, d.record(date, sale.ProductName, price, domain.ActionAdded, 0, before, total))
		}
		after := before - sale.Quantity
		level[sale.ProductID] = after
		records = append(records, d.record(date, sale.ProductName, price, domain.ActionSold, before, after, sale.Total))
	}

	for _, id := range gone {
		prev := d.products[id]
		remaining := level[id]
		total := prev.Price.Mul(decimal.NewFromInt(int64(remaining)))
		records = append(records, d.record(date, prev.Name, prev.Price, domain.ActionDeleted, remaining, 0, total))
	}

	d.products = current
	d.order = order
	return records
}

// Seed takes an observation whose changes are already in the ledger as the
// baseline for the next Observe, without emitting anything.
func (d *LedgerDeriver) Seed(products []domain.Product, sales []domain.Sale) {
	d.products = make(map[string]domain.Product, len(products))
	d.order = make([]string, 0, len(products))
	for _, p := range products {
		d.products[p.ID] = p
		d.order = append(d.order, p.ID)
	}
	for _, sale := range sales {
		d.sold[sale.ID] = struct{}{}
	}
}

func (d *LedgerDeriver) record(date, name string, price decimal.Decimal, action domain.Action, before, after int, total decimal.Decimal) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        d.newID(),
		Date:      date,
		Name:      name,
		Price:     price,
		QtyBefore: before,
		QtyAfter:  after,
		Action:    action,
		Total:     total,
	}
}

func unitPrice(sale domain.Sale) decimal.Decimal {
	if sale.Quantity <= 0 {
		return decimal.Zero
	}
	return sale.Total.DivRound(decimal.NewFromInt(int64(sale.Quantity)), domain.MoneyScale)
}
