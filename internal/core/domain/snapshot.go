package domain

import "slices"

// Snapshot is the full persisted state: catalog, sales log and ledger.
//
// Revision is the store revision the snapshot was loaded at. It is not part of
// the document; stores use it to reject a save based on stale state.
type Snapshot struct {
	Products     []Product           `json:"products"`
	Sales        []Sale              `json:"sales"`
	Transactions []TransactionRecord `json:"transactions"`

	Revision int64 `json:"-"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Products:     []Product{},
		Sales:        []Sale{},
		Transactions: []TransactionRecord{},
	}
}

// Normalize replaces nil collections with empty ones so the document always
// carries all three arrays.
func (s *Snapshot) Normalize() {
	if s.Products == nil {
		s.Products = []Product{}
	}
	if s.Sales == nil {
		s.Sales = []Sale{}
	}
	if s.Transactions == nil {
		s.Transactions = []TransactionRecord{}
	}
}

func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Products:     slices.Clone(s.Products),
		Sales:        slices.Clone(s.Sales),
		Transactions: slices.Clone(s.Transactions),
		Revision:     s.Revision,
	}
	c.Normalize()
	return c
}

// IsEmpty reports whether nothing was ever recorded.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Products) == 0 && len(s.Sales) == 0 && len(s.Transactions) == 0
}

// ProductIndex returns the position of the product with the given id, or -1.
func (s *Snapshot) ProductIndex(id string) int {
	return slices.IndexFunc(s.Products, func(p Product) bool { return p.ID == id })
}
