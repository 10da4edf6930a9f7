package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Driver() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the catalog and ledger tables when absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			price NUMERIC NOT NULL CHECK (price > 0),
			stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_details (
			order_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price NUMERIC NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (order_id, line_no)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_details_item_name ON order_details(item_name)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) AddItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}

	query := `
		INSERT INTO items (name, price, stock_quantity)
		VALUES ($1, $2::numeric, $3)
		RETURNING id::text, created_at
	`
	err := s.pool.QueryRow(ctx, query, item.Name, item.Price.String(), item.StockQuantity).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Item{}, domain.NewValidationError("name", fmt.Sprintf("item %q already exists", item.Name))
		}
		return domain.Item{}, domain.NewStorageError("add item", err)
	}
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}

func (s *PostgresStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	query := `SELECT id::text, name, price::text, stock_quantity, created_at FROM items ORDER BY id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.NewStorageError("list items", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.NewStorageError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list items", err)
	}
	return items, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, name string) (domain.Item, error) {
	query := `SELECT id::text, name, price::text, stock_quantity, created_at FROM items WHERE name = $1`
	item, err := scanItem(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, itemNotFound(name)
		}
		return domain.Item{}, domain.NewStorageError("get item", err)
	}
	return item, nil
}

func (s *PostgresStore) GetStockQuantity(ctx context.Context, name string) (int, error) {
	var qty int
	err := s.pool.QueryRow(ctx, `SELECT stock_quantity FROM items WHERE name = $1`, name).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, itemNotFound(name)
		}
		return 0, domain.NewStorageError("get stock quantity", err)
	}
	return qty, nil
}

func (s *PostgresStore) DecrementStock(ctx context.Context, name string, quantity int) error {
	if err := validateDecrement(name, quantity); err != nil {
		return err
	}
	_, err := decrementAll(ctx, s.pool, map[string]int{name: quantity})
	return err
}

func (s *PostgresStore) RecordOrder(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	if err := validateLines(orderID, lines); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.NewStorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := insertLines(ctx, tx, orderID, lines); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.NewStorageError("commit", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT item_name, quantity, price::text, created_at
		FROM order_details
		WHERE order_id = $1
		ORDER BY line_no
	`
	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, domain.NewStorageError("get order", err)
	}
	defer rows.Close()

	order := &domain.Order{OrderID: orderID}
	for rows.Next() {
		var (
			line  domain.OrderLine
			price string
		)
		if err := rows.Scan(&line.ItemName, &line.Quantity, &price, &order.CreatedAt); err != nil {
			return nil, domain.NewStorageError("get order", err)
		}
		if line.Price, err = decimal.NewFromString(price); err != nil {
			return nil, domain.NewStorageError("get order", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("get order", err)
	}
	if len(order.Lines) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrOrderNotFound, orderID)
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.TotalAmount = domain.TotalOf(order.Lines)
	return order, nil
}

func (s *PostgresStore) CommitOrder(ctx context.Context, orderID string, lines []domain.OrderLine, quantities map[string]int) ([]domain.StockLevel, error) {
	if err := validateLines(orderID, lines); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_details WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, domain.NewStorageError("commit order", err)
	}
	if exists {
		return nil, domain.ErrOrderExists
	}

	if err := insertLines(ctx, tx, orderID, lines); err != nil {
		return nil, err
	}

	levels, err := decrementAll(ctx, tx, quantities)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStorageError("commit", err)
	}
	return levels, nil
}

// insertLines writes one row per line. Rows that already exist for
// orderID are left untouched, so a replay never duplicates lines.
func insertLines(ctx context.Context, q querier, orderID string, lines []domain.OrderLine) error {
	query := `
		INSERT INTO order_details (order_id, line_no, item_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (order_id, line_no) DO NOTHING
	`
	for i, line := range lines {
		if _, err := q.Exec(ctx, query, orderID, i+1, line.ItemName, line.Quantity, line.Price.String()); err != nil {
			return domain.NewStorageError("record order", err)
		}
	}
	return nil
}

// decrementAll applies every decrement conditionally and collects all
// shortages before failing. Rows are visited in name order.
func decrementAll(ctx context.Context, q querier, quantities map[string]int) ([]domain.StockLevel, error) {
	query := `
		UPDATE items SET stock_quantity = stock_quantity - $1
		WHERE name = $2 AND stock_quantity >= $1
		RETURNING stock_quantity
	`

	var (
		levels    []domain.StockLevel
		shortages []domain.Shortage
	)
	for _, name := range domain.SortedNames(quantities) {
		qty := quantities[name]

		var remaining int
		err := q.QueryRow(ctx, query, qty, name).Scan(&remaining)
		if err == nil {
			levels = append(levels, domain.StockLevel{ItemName: name, StockQuantity: remaining})
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewStorageError("decrement stock", err)
		}

		var available int
		err = q.QueryRow(ctx, `SELECT stock_quantity FROM items WHERE name = $1`, name).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemNotFound(name)
		}
		if err != nil {
			return nil, domain.NewStorageError("decrement stock", err)
		}
		shortages = append(shortages, domain.Shortage{ItemName: name, Requested: qty, Available: available})
	}

	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Shortages: shortages}
	}
	return levels, nil
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var (
		item  domain.Item
		price string
	)
	if err := row.Scan(&item.ID, &item.Name, &price, &item.StockQuantity, &item.CreatedAt); err != nil {
		return domain.Item{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Item{}, err
	}
	item.Price = p
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}
