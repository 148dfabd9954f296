package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func TestCheckStruct_DecimalSign(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		price string
		ok    bool
	}{
		{"0", true},
		{"-0", true},
		{"1e-400", true},
		{"-1e-400", false},
		{"-0.0001", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := svc.checkStruct(domain.Product{Name: "Tea", Price: money(tt.price)})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "must be >= 0", verr.Fields["price"])
		})
	}
}

func TestCheckImport_FieldNames(t *testing.T) {
	svc, _ := newTestService(t)

	snap := domain.NewSnapshot()
	snap.Products = append(snap.Products, domain.Product{ID: "p1", Name: "Tea", Price: money("1")})
	snap.Transactions = append(snap.Transactions,
		domain.TransactionRecord{ID: "t1", Action: domain.ActionAdded, Price: money("1")},
		domain.TransactionRecord{ID: "t2", Action: "Stolen", Price: money("1")},
	)

	var verr *domain.ValidationError
	require.ErrorAs(t, svc.checkImport(snap), &verr)
	assert.Equal(t, map[string]string{
		"transactions[1].action": "must be one of Added Restocked Sold Deleted",
	}, verr.Fields)
}
