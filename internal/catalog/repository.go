// Package catalog is the SQLite-backed product catalog and promotion store
// the pricing engine reads from.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/money"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// one connection keeps ":memory:" databases shared between queries
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "could not create migration source")
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "could not create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "could not create migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "could not run migrations")
	}

	return nil
}

// GetProduct implements domain.Catalog.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	const query = `
		SELECT p.id, p.sku, p.name, p.price, p.special_price, p.special_from, p.special_to,
		       COALESCE(p.tax_class, ''), COALESCE(t.rate, '0')
		FROM products p
		LEFT JOIN tax_classes t ON t.code = p.tax_class
		WHERE p.id = ?
	`

	var (
		p            domain.Product
		specialFrom  sql.NullString
		specialTo    sql.NullString
		ratePercent  decimal.Decimal
		specialPrice decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Price,
		&specialPrice,
		&specialFrom,
		&specialTo,
		&p.TaxClass,
		&ratePercent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrUnknownProduct, "product %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query product %d", id)
	}

	p.SpecialPrice = specialPrice
	p.TaxRate = money.Percent(ratePercent)
	if p.SpecialFrom, err = parseTime(specialFrom); err != nil {
		return nil, errors.Wrapf(err, "product %d special_from", id)
	}
	if p.SpecialTo, err = parseTime(specialTo); err != nil {
		return nil, errors.Wrapf(err, "product %d special_to", id)
	}

	return &p, nil
}

// FindByCode implements discount.Store. Inactive coupons are reported as
// not found.
func (r *Repository) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	const query = `
		SELECT code, type, value, description
		FROM coupons
		WHERE code = ? AND active = 1
	`

	var rule discount.Rule
	err := r.db.QueryRowContext(ctx, query, code).Scan(&rule.Code, &rule.Type, &rule.Value, &rule.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, discount.ErrCouponNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query coupon %q", code)
	}

	return &rule, nil
}

// UpsertProduct writes a product, resolving nothing. Used by seeding tools and tests.
func (r *Repository) UpsertProduct(ctx context.Context, p domain.Product) error {
	const query = `
		INSERT INTO products (id, sku, name, price, special_price, special_from, special_to, tax_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku, name = excluded.name, price = excluded.price,
			special_price = excluded.special_price, special_from = excluded.special_from,
			special_to = excluded.special_to, tax_class = excluded.tax_class
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.SKU, p.Name, p.Price.String(), nullDecimal(p.SpecialPrice),
		formatTime(p.SpecialFrom), formatTime(p.SpecialTo), p.TaxClass,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert product %d", p.ID)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}
