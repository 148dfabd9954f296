package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	defaultDescription = "New product"
	defaultCategory    = "General"
)

// NewProduct is the input of AddProduct. Absent optional fields take their defaults.
type NewProduct struct {
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Image       *string          `json:"image,omitempty"`
}

// ProductPatch overwrites only the fields that are set.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Image       *string          `json:"image,omitempty"`
}

func (p ProductPatch) apply(product *domain.Product) {
	if p.Name != nil {
		product.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
}

// NewSale is the input of RecordSale. RequestID, when set, makes the call idempotent.
type NewSale struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	RequestID string `json:"requestId,omitempty"`
}

// InventoryService is the only writer of the catalog, the sales log and the
// ledger. Every mutation runs load, validate, mutate and save under one lock,
// so a mutation is either fully persisted or not applied at all.
type InventoryService struct {
	store       port.SnapshotRepository
	idempotency port.IdempotencyRepository
	logger      *zap.Logger
	validate    *validator.Validate

	now               func() time.Time
	newID             func() string
	lowStockThreshold int

	mu sync.RWMutex
}

type Option func(*InventoryService)

func WithIdempotency(repo port.IdempotencyRepository) Option {
	return func(s *InventoryService) { s.idempotency = repo }
}

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *InventoryService) { s.newID = newID }
}

func WithLowStockThreshold(threshold int) Option {
	return func(s *InventoryService) { s.lowStockThreshold = threshold }
}

func NewInventoryService(store port.SnapshotRepository, logger *zap.Logger, opts ...Option) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InventoryService{
		store:             store,
		logger:            logger,
		validate:          newValidator(),
		now:               time.Now,
		newID:             uuid.NewString,
		lowStockThreshold: domain.DefaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InventoryService) AddProduct(ctx context.Context, in NewProduct) (*domain.Product, error) {
	product := domain.Product{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Description: valueOr(in.Description, defaultDescription),
		Category:    valueOr(in.Category, defaultCategory),
		Image:       valueOr(in.Image, ""),
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.Quantity != nil {
		product.Quantity = *in.Quantity
	}
	if err := s.checkProduct(product); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, "add_product", func(snap *domain.Snapshot, date string) error {
		snap.Products = append(snap.Products, product)
		snap.Transactions = append(snap.Transactions,
			s.newRecord(date, product, domain.ActionAdded, 0, product.Quantity, product.StockValue()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product added",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("quantity", product.Quantity),
	)
	return &product, nil
}

// EditProduct applies a partial update. Raising the quantity is recorded as a
// restock valued at the updated price; lowering it records nothing.
func (s *InventoryService) EditProduct(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	var updated domain.Product
	var restocked bool

	err := s.mutate(ctx, "edit_product", func(snap *domain.Snapshot, date string) error {
		idx := snap.ProductIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}

		prior := snap.Products[idx]
		updated = prior
		patch.apply(&updated)
		if err := s.checkProduct(updated); err != nil {
			return err
		}
		snap.Products[idx] = updated

		if patch.Quantity != nil && updated.Quantity > prior.Quantity {
			delta := decimal.NewFromInt(int64(updated.Quantity - prior.Quantity))
			snap.Transactions = append(snap.Transactions,
				s.newRecord(date, updated, domain.ActionRestocked, prior.Quantity, updated.Quantity, updated.Price.Mul(delta)))
			restocked = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product edited",
		zap.String("product_id", id),
		zap.Int("quantity", updated.Quantity),
		zap.Bool("restocked", restocked),
	)
	return &updated, nil
}

func (s *InventoryService) DeleteProduct(ctx context.Context, id string) error {
	err := s.mutate(ctx, "delete_product", func(snap *domain.Snapshot, date string) error {
		idx := snap.ProductIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}

		product := snap.Products[idx]
		snap.Transactions = append(snap.Transactions,
			s.newRecord(date, product, domain.ActionDeleted, product.Quantity, 0, product.StockValue()))
		snap.Products = slices.Delete(snap.Products, idx, idx+1)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *InventoryService) RecordSale(ctx context.Context, in NewSale) (*domain.Sale, error) {
	if err := s.checkStruct(in); err != nil {
		return nil, err
	}

	idempotencyKey := ""
	if in.RequestID != "" && s.idempotency != nil {
		idempotencyKey = "sale:" + in.RequestID
		ok, err := s.idempotency.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: idempotency check failed: %w", domain.ErrPersistence, err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	var sale domain.Sale
	err := s.mutate(ctx, "record_sale", func(snap *domain.Snapshot, date string) error {
		idx := snap.ProductIndex(in.ProductID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, in.ProductID)
		}

		product := &snap.Products[idx]
		if in.Quantity > product.Quantity {
			return fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientStock, in.Quantity, product.Quantity)
		}

		sale = domain.Sale{
			ID:          s.newID(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    in.Quantity,
			Total:       product.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
			Date:        date,
		}
		before := product.Quantity
		product.Quantity -= in.Quantity

		snap.Sales = append(snap.Sales, sale)
		snap.Transactions = append(snap.Transactions,
			s.newRecord(date, *product, domain.ActionSold, before, product.Quantity, sale.Total))
		return nil
	})
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key",
					zap.String("request_id", in.RequestID),
					zap.Error(releaseErr),
				)
			}
		}
		return nil, err
	}

	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.Total.String()),
	)
	return &sale, nil
}

// Import seeds an empty store with a complete snapshot, such as a ledger
// rebuilt from legacy data. It refuses to overwrite existing state and rejects
// the whole snapshot if any record is invalid or any id repeats.
func (s *InventoryService) Import(ctx context.Context, imported *domain.Snapshot) error {
	if err := s.checkImport(imported); err != nil {
		return err
	}

	err := s.mutate(ctx, "import", func(snap *domain.Snapshot, _ string) error {
		if !snap.IsEmpty() {
			return domain.NewValidationError("snapshot", "cannot be imported into a non-empty store")
		}
		c := imported.Clone()
		snap.Products, snap.Sales, snap.Transactions = c.Products, c.Sales, c.Transactions
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("snapshot imported",
		zap.Int("products", len(imported.Products)),
		zap.Int("sales", len(imported.Sales)),
		zap.Int("transactions", len(imported.Transactions)),
	)
	return nil
}

func (s *InventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	snap, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	idx := snap.ProductIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	product := snap.Products[idx]
	return &product, nil
}

func (s *InventoryService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	snap, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Products, nil
}

func (s *InventoryService) ListSales(ctx context.Context) ([]domain.Sale, error) {
	snap, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Sales, nil
}

func (s *InventoryService) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	snap, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Transactions, nil
}

// mutate serializes fn against every other mutation. fn works on a freshly
// loaded snapshot; nothing is observable unless the save succeeds.
func (s *InventoryService) mutate(ctx context.Context, op string, fn func(snap *domain.Snapshot, date string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load snapshot", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: load snapshot: %w", domain.ErrPersistence, err)
	}

	if err := fn(snap, domain.FormatDate(s.now())); err != nil {
		s.logger.Debug("mutation rejected", zap.String("op", op), zap.Error(err))
		return err
	}

	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Error("failed to save snapshot", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: save snapshot: %w", domain.ErrPersistence, err)
	}
	return nil
}

// view loads a consistent snapshot for reading. Readers share the lock, so
// they never overlap a mutation in flight.
func (s *InventoryService) view(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load snapshot", zap.Error(err))
		return nil, fmt.Errorf("%w: load snapshot: %w", domain.ErrPersistence, err)
	}
	return snap, nil
}

func (s *InventoryService) newRecord(date string, p domain.Product, action domain.Action, before, after int, total decimal.Decimal) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:        s.newID(),
		Date:      date,
		Name:      p.Name,
		Price:     p.Price,
		QtyBefore: before,
		QtyAfter:  after,
		Action:    action,
		Total:     total,
	}
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
