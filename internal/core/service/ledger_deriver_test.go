package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func product(id, name, price string, qty int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: money(price), Quantity: qty}
}

func sale(id, productID, name string, qty int, total string) domain.Sale {
	return domain.Sale{ID: id, ProductID: productID, ProductName: name, Quantity: qty, Total: money(total)}
}

func deltasByName(records []domain.TransactionRecord) map[string]int {
	sums := make(map[string]int)
	for _, r := range records {
		sums[r.Name] += r.Delta()
	}
	return sums
}

func TestLedgerDeriver_TeaHistory(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })

	// first observation
	records := d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, nil)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionAdded, records[0].Action)
	assert.Equal(t, 0, records[0].QtyBefore)
	assert.Equal(t, 5, records[0].QtyAfter)
	assertMoney(t, "50", records[0].Total)
	assert.Equal(t, "1/2/2025, 3:04:05 PM", records[0].Date)
	assert.NotEmpty(t, records[0].ID)

	// nothing changed
	assert.Empty(t, d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, nil))

	// restock
	records = d.Observe([]domain.Product{product("1", "Tea", "10", 8)}, nil)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionRestocked, records[0].Action)
	assert.Equal(t, 5, records[0].QtyBefore)
	assert.Equal(t, 8, records[0].QtyAfter)
	assertMoney(t, "30", records[0].Total)

	// sale lowers the quantity; the drop itself is not a restock
	sales := []domain.Sale{sale("s1", "1", "Tea", 3, "30")}
	records = d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, sales)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionSold, records[0].Action)
	assert.Equal(t, 8, records[0].QtyBefore)
	assert.Equal(t, 5, records[0].QtyAfter)
	assertMoney(t, "30", records[0].Total)

	// same sales log again
	assert.Empty(t, d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, sales))

	// deletion
	records = d.Observe(nil, sales)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionDeleted, records[0].Action)
	assert.Equal(t, "Tea", records[0].Name)
	assert.Equal(t, 5, records[0].QtyBefore)
	assert.Equal(t, 0, records[0].QtyAfter)
	assertMoney(t, "50", records[0].Total)
}

func TestLedgerDeriver_ProductAndSalesInFirstObservation(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })

	records := d.Observe(
		[]domain.Product{product("1", "Tea", "10", 5)},
		[]domain.Sale{sale("s1", "1", "Tea", 2, "20"), sale("s2", "1", "Tea", 1, "10")},
	)

	require.Len(t, records, 3)
	assert.Equal(t, domain.ActionAdded, records[0].Action)
	assert.Equal(t, 8, records[0].QtyAfter)
	assertMoney(t, "80", records[0].Total)
	assert.Equal(t, domain.ActionSold, records[1].Action)
	assert.Equal(t, 8, records[1].QtyBefore)
	assert.Equal(t, 6, records[1].QtyAfter)
	assert.Equal(t, domain.ActionSold, records[2].Action)
	assert.Equal(t, 6, records[2].QtyBefore)
	assert.Equal(t, 5, records[2].QtyAfter)

	assert.Equal(t, 5, deltasByName(records)["Tea"])
}

func TestLedgerDeriver_RestockAndSaleBetweenObservations(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })
	first := d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, nil)

	// restocked to 8, then sold 2
	second := d.Observe([]domain.Product{product("1", "Tea", "10", 6)}, []domain.Sale{sale("s1", "1", "Tea", 2, "20")})

	require.Len(t, second, 2)
	assert.Equal(t, domain.ActionRestocked, second[0].Action)
	assert.Equal(t, 5, second[0].QtyBefore)
	assert.Equal(t, 8, second[0].QtyAfter)
	assert.Equal(t, domain.ActionSold, second[1].Action)
	assert.Equal(t, 8, second[1].QtyBefore)
	assert.Equal(t, 6, second[1].QtyAfter)

	assert.Equal(t, 6, deltasByName(append(first, second...))["Tea"])
}

func TestLedgerDeriver_OrderWithinObservation(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })
	d.Observe([]domain.Product{product("1", "Tea", "10", 5), product("2", "Mug", "4", 3)}, nil)

	records := d.Observe(
		[]domain.Product{product("1", "Tea", "10", 4), product("3", "Jam", "3", 6)},
		[]domain.Sale{sale("s1", "1", "Tea", 1, "10"), sale("s2", "2", "Mug", 2, "8")},
	)

	require.Len(t, records, 4)
	assert.Equal(t, domain.ActionAdded, records[0].Action)
	assert.Equal(t, "Jam", records[0].Name)
	assert.Equal(t, domain.ActionSold, records[1].Action)
	assert.Equal(t, 5, records[1].QtyBefore)
	assert.Equal(t, 4, records[1].QtyAfter)

	// the Mug was gone by the time it was observed; its last price is kept
	assert.Equal(t, domain.ActionSold, records[2].Action)
	assert.Equal(t, 3, records[2].QtyBefore)
	assert.Equal(t, 1, records[2].QtyAfter)
	assertMoney(t, "4", records[2].Price)

	assert.Equal(t, domain.ActionDeleted, records[3].Action)
	assert.Equal(t, "Mug", records[3].Name)
	assert.Equal(t, 1, records[3].QtyBefore)
	assertMoney(t, "4", records[3].Total)

	sums := deltasByName(records)
	assert.Equal(t, -1, sums["Tea"])
	assert.Equal(t, -3, sums["Mug"])
	assert.Equal(t, 6, sums["Jam"])
}

func TestLedgerDeriver_SaleOfUnseenProduct(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })

	records := d.Observe(nil, []domain.Sale{sale("s1", "gone", "Scone", 4, "10")})
	require.Len(t, records, 2)
	assert.Equal(t, domain.ActionAdded, records[0].Action)
	assert.Equal(t, 4, records[0].QtyAfter)
	assertMoney(t, "2.5", records[0].Price)
	assert.Equal(t, domain.ActionSold, records[1].Action)
	assert.Equal(t, 4, records[1].QtyBefore)
	assert.Equal(t, 0, records[1].QtyAfter)
	assert.Zero(t, deltasByName(records)["Scone"])
}

func TestLedgerDeriver_Seed(t *testing.T) {
	d := NewLedgerDeriver(func() time.Time { return fixedNow })
	sales := []domain.Sale{sale("s1", "1", "Tea", 3, "30")}
	d.Seed([]domain.Product{product("1", "Tea", "10", 5)}, sales)

	assert.Empty(t, d.Observe([]domain.Product{product("1", "Tea", "10", 5)}, sales))

	records := d.Observe([]domain.Product{product("1", "Tea", "10", 9)}, sales)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionRestocked, records[0].Action)
	assert.Equal(t, 5, records[0].QtyBefore)
}
