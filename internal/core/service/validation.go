package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// decimal.Decimal is validated by its numeric value so gte/gt tags work on prices.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return decimalValue(d)
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decimalValue converts d for comparison. Amounts too small for a float64
// keep their sign, so -1e-400 still fails gte=0.
func decimalValue(d decimal.Decimal) float64 {
	f, exact := d.Float64()
	if !exact && f == 0 && d.Sign() != 0 {
		return float64(d.Sign()) * math.SmallestNonzeroFloat64
	}
	return f
}

// checkStruct runs the validate tags of v and reports failures as a domain.ValidationError.
func (s *InventoryService) checkStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = describe(fe)
	}
	return verr
}

// checkProduct adds the money scale rule to the tag checks. Stores keep
// amounts to domain.MoneyScale places and must not round a price silently.
func (s *InventoryService) checkProduct(p domain.Product) error {
	if err := s.checkStruct(p); err != nil {
		return err
	}
	return checkScale("price", p.Price)
}

// checkImport validates every record of a snapshot before it replaces an
// empty store. Field names carry the collection and index, as in sales[2].quantity.
func (s *InventoryService) checkImport(snap *domain.Snapshot) error {
	for i, p := range snap.Products {
		if err := s.checkProduct(p); err != nil {
			return withPrefix(fmt.Sprintf("products[%d]", i), err)
		}
	}
	for i, sale := range snap.Sales {
		err := s.checkStruct(sale)
		if err == nil {
			err = checkScale("total", sale.Total)
		}
		if err != nil {
			return withPrefix(fmt.Sprintf("sales[%d]", i), err)
		}
	}
	for i, t := range snap.Transactions {
		err := s.checkStruct(t)
		if err == nil {
			err = checkScale("price", t.Price)
		}
		if err == nil {
			err = checkScale("total", t.Total)
		}
		if err != nil {
			return withPrefix(fmt.Sprintf("transactions[%d]", i), err)
		}
	}

	if err := uniqueIDs("products", snap.Products, func(p domain.Product) string { return p.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("sales", snap.Sales, func(s domain.Sale) string { return s.ID }); err != nil {
		return err
	}
	return uniqueIDs("transactions", snap.Transactions, func(t domain.TransactionRecord) string { return t.ID })
}

func checkScale(field string, d decimal.Decimal) error {
	if d.Equal(d.Truncate(domain.MoneyScale)) {
		return nil
	}
	return domain.NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", domain.MoneyScale))
}

func uniqueIDs[T any](collection string, items []T, id func(T) string) error {
	seen := make(map[string]int, len(items))
	for i, item := range items {
		key := id(item)
		field := fmt.Sprintf("%s[%d].id", collection, i)
		if key == "" {
			return domain.NewValidationError(field, "is required")
		}
		if first, dup := seen[key]; dup {
			return domain.NewValidationError(field, fmt.Sprintf("duplicates %s[%d]", collection, first))
		}
		seen[key] = i
	}
	return nil
}

func withPrefix(prefix string, err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	fields := make(map[string]string, len(verr.Fields))
	for name, reason := range verr.Fields {
		fields[prefix+"."+name] = reason
	}
	return &domain.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
