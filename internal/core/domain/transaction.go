package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionAdded     Action = "Added"
	ActionRestocked Action = "Restocked"
	ActionSold      Action = "Sold"
	ActionDeleted   Action = "Deleted"
)

// DateLayout renders timestamps the way existing consumers of the document expect
// them (en-US locale string).
const DateLayout = "1/2/2006, 3:04:05 PM"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// TransactionRecord is one ledger entry. Entries are never edited or removed.
type TransactionRecord struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	QtyBefore int             `json:"qtyBefore" validate:"gte=0"`
	QtyAfter  int             `json:"qtyAfter" validate:"gte=0"`
	Action    Action          `json:"action" validate:"oneof=Added Restocked Sold Deleted"`
	Total     decimal.Decimal `json:"total" validate:"gte=0"`
}

// Delta is the signed quantity change recorded by the entry.
func (t TransactionRecord) Delta() int {
	return t.QtyAfter - t.QtyBefore
}
