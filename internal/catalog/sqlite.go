package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteCatalog serves products from a local SQLite file. It is the catalog
// used for local development and tests.
type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// RunMigrations creates and seeds the products table.
func (c *SQLiteCatalog) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (c *SQLiteCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, title, price, description, image, category
		FROM products
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query products: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Description, &p.Image, &p.Category); err != nil {
			return nil, fmt.Errorf("%w: failed to scan product: %v", ErrInvalidProduct, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %w", ErrUnavailable, err)
	}

	return products, nil
}

func (c *SQLiteCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, title, price, description, image, category
		FROM products
		WHERE id = ?
	`

	var p domain.Product
	err := c.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Title, &p.Price, &p.Description, &p.Image, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query product %d: %w", ErrUnavailable, id, err)
	}

	if err := validate(&p, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
