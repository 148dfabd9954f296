package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// documentID reads an id written either as a string or, by older versions of
// the document, as a number. Numbers keep their exact decimal digits.
type documentID string

func (id *documentID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = documentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = documentID(n.String())
	return nil
}

// The stored* types shadow the id fields of the domain types during decoding.
type storedProduct struct {
	domain.Product
	ID documentID `json:"id"`
}

type storedSale struct {
	domain.Sale
	ID        documentID `json:"id"`
	ProductID documentID `json:"productId"`
}

type storedTransaction struct {
	domain.TransactionRecord
	ID documentID `json:"id"`
}

type storedDocument struct {
	Products     []storedProduct     `json:"products"`
	Sales        []storedSale        `json:"sales"`
	Transactions []storedTransaction `json:"transactions"`
}

// EncodeSnapshot renders the document with two-space indentation and no HTML
// escaping, matching JSON.stringify(data, null, 2).
func EncodeSnapshot(snap *domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap.Clone()); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeSnapshot reads a document. Numeric ids are accepted and become their
// decimal string, so documents written before ids were strings still load.
func DecodeSnapshot(data []byte) (*domain.Snapshot, error) {
	var doc storedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := domain.NewSnapshot()
	for _, p := range doc.Products {
		product := p.Product
		product.ID = string(p.ID)
		snap.Products = append(snap.Products, product)
	}
	for _, s := range doc.Sales {
		sale := s.Sale
		sale.ID, sale.ProductID = string(s.ID), string(s.ProductID)
		snap.Sales = append(snap.Sales, sale)
	}
	for _, t := range doc.Transactions {
		record := t.TransactionRecord
		record.ID = string(t.ID)
		snap.Transactions = append(snap.Transactions, record)
	}
	return snap, nil
}
