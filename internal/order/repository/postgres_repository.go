package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const orderColumns = `id, checkout_key, user_id, items, consumed, total_price, created_at, cart_cleared`

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	if cred.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cred.MaxOpenConns)
	}
	if cred.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cred.MaxIdleConns)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	consumed := order.Consumed
	if consumed == nil {
		consumed = []domain.ConsumedLine{}
	}
	consumedJSON, err := json.Marshal(consumed)
	if err != nil {
		return fmt.Errorf("failed to marshal consumed lines: %w", err)
	}
	payload, err := json.Marshal(domain.NewOrderCreatedEvent(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.CheckoutKey,
		order.UserID,
		itemsJSON,
		consumedJSON,
		order.TotalPrice,
		order.CreatedAt,
		order.CartCleared)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	eventQuery := `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
	               VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, eventQuery,
		uuid.New(),
		order.ID.String(),
		domain.EventTypeOrderCreated,
		payload,
		order.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON, consumedJSON []byte
	if err := row.Scan(
		&order.ID,
		&order.CheckoutKey,
		&order.UserID,
		&itemsJSON,
		&consumedJSON,
		&order.TotalPrice,
		&order.CreatedAt,
		&order.CartCleared,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(consumedJSON, &order.Consumed); err != nil {
		return nil, fmt.Errorf("unmarshal consumed lines: %w", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()
	return &order, nil
}

func (r *Repository) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, "id = $1", id)
}

func (r *Repository) GetOrderByCheckoutKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getOrder(ctx, "checkout_key = $1", key)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// ListOrdersByUserID returns the user's orders newest first. Insertion order
// decides, so clock skew between instances cannot reorder the history.
func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	          FROM orders WHERE user_id = $1 ORDER BY seq DESC`
	return r.listOrders(ctx, query, userID)
}

func (r *Repository) ListUnclearedOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	          FROM orders WHERE cart_cleared = FALSE AND created_at < $1
	          ORDER BY seq LIMIT $2`
	return r.listOrders(ctx, query, olderThan, limit)
}

func (r *Repository) MarkCartCleared(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET cart_cleared = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark cart cleared: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cart cleared: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL
	          ORDER BY seq LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
