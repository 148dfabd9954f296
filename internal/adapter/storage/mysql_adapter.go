package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const snapshotMetaID = 1

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshot_meta (
		id      TINYINT PRIMARY KEY,
		version BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          VARCHAR(64) PRIMARY KEY,
		position    INT NOT NULL,
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		category    VARCHAR(255) NOT NULL,
		price       DECIMAL(14,4) NOT NULL,
		quantity    INT NOT NULL,
		image       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		seq          BIGINT AUTO_INCREMENT PRIMARY KEY,
		id           VARCHAR(64) NOT NULL UNIQUE,
		product_id   VARCHAR(64) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity     INT NOT NULL,
		total        DECIMAL(16,4) NOT NULL,
		date         VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq        BIGINT AUTO_INCREMENT PRIMARY KEY,
		id         VARCHAR(64) NOT NULL UNIQUE,
		date       VARCHAR(64) NOT NULL,
		name       VARCHAR(255) NOT NULL,
		price      DECIMAL(14,4) NOT NULL,
		qty_before INT NOT NULL,
		qty_after  INT NOT NULL,
		action     VARCHAR(16) NOT NULL,
		total      DECIMAL(16,4) NOT NULL
	)`,
}

// MySQLAdapter keeps the catalog, sales log and ledger in three tables.
// Sales and transactions are insert-only; the catalog is rewritten on save.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Load(ctx context.Context) (*domain.Snapshot, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	snap := domain.NewSnapshot()

	err = tx.QueryRowContext(ctx, `SELECT version FROM snapshot_meta WHERE id = ?`, snapshotMetaID).Scan(&snap.Revision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query version: %w", err)
	}

	if snap.Products, err = queryProducts(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Sales, err = querySales(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Transactions, err = queryTransactions(ctx, tx); err != nil {
		return nil, err
	}

	return snap, tx.Commit()
}

func (m *MySQLAdapter) Save(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, snap.Revision); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for i, p := range snap.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, position, name, description, category, price, quantity, image)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, i, p.Name, p.Description, p.Category, p.Price, p.Quantity, p.Image,
		)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	}

	for _, s := range snap.Sales {
		_, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO sales (id, product_id, product_name, quantity, total, date)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, s.ProductID, s.ProductName, s.Quantity, s.Total, s.Date,
		)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
	}

	for _, t := range snap.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO transactions (id, date, name, price, qty_before, qty_after, action, total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Date, t.Name, t.Price, t.QtyBefore, t.QtyAfter, string(t.Action), t.Total,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	snap.Revision++
	return nil
}

// bumpVersion advances the stored version only if it still equals the
// version the snapshot was loaded at.
func bumpVersion(ctx context.Context, tx *sql.Tx, expected int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE snapshot_meta SET version = version + 1
		WHERE id = ? AND version = ?`, snapshotMetaID, expected,
	)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 1 {
		return nil
	}
	if expected != 0 {
		return ErrOptimisticLock
	}

	// first save ever
	result, err = tx.ExecContext(ctx, `INSERT IGNORE INTO snapshot_meta (id, version) VALUES (?, 1)`, snapshotMetaID)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func queryProducts(ctx context.Context, tx *sql.Tx) ([]domain.Product, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, description, category, price, quantity, image
		FROM products ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Quantity, &p.Image); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func querySales(ctx context.Context, tx *sql.Tx) ([]domain.Sale, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, total, date
		FROM sales ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	sales := []domain.Sale{}
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.Quantity, &s.Total, &s.Date); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func queryTransactions(ctx context.Context, tx *sql.Tx) ([]domain.TransactionRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, date, name, price, qty_before, qty_after, action, total
		FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	records := []domain.TransactionRecord{}
	for rows.Next() {
		var t domain.TransactionRecord
		var action string
		if err := rows.Scan(&t.ID, &t.Date, &t.Name, &t.Price, &t.QtyBefore, &t.QtyAfter, &action, &t.Total); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Action = domain.Action(action)
		records = append(records, t)
	}
	return records, rows.Err()
}
