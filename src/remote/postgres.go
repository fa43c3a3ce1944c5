// Package remote holds watchlist tables backed by a shared server database.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/username/finwatch/db"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

// PostgresTable is a watchlist.RemoteTable on PostgreSQL.
type PostgresTable struct {
	DB *pgxpool.Pool
}

func NewPostgresTable(db *pgxpool.Pool) *PostgresTable { return &PostgresTable{DB: db} }

// Connect opens a pool and migrates the watchlist schema.
func Connect(ctx context.Context, url string) (*PostgresTable, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	t := NewPostgresTable(pool)
	if err := t.Migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return t, nil
}

// Migrate applies the embedded Postgres migrations.
func (t *PostgresTable) Migrate() error {
	conn := stdlib.OpenDBFromPool(t.DB)
	driver, err := pgxmigrate.WithInstance(conn, &pgxmigrate.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("create postgres migration driver: %w", err)
	}
	source, err := iofs.New(db.PostgresMigrations, "postgres")
	if err != nil {
		driver.Close()
		return fmt.Errorf("open embedded postgres migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("postgres migration instance creation failed: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.L.Info("No new postgres migrations to apply.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply postgres migrations: %w", err)
	}
	logger.L.Info("Postgres migrations applied successfully.")
	return nil
}

func (t *PostgresTable) Close() { t.DB.Close() }

func (t *PostgresTable) Insert(ctx context.Context, e watchlist.Entry) error {
	added := e.AddedAt
	if added.IsZero() {
		added = time.Now().UTC()
	}
	_, err := t.DB.Exec(ctx, `
		INSERT INTO watchlist (user_id, symbol, name, stock_type, price, change_percent, market_cap, exchange, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, symbol, stock_type) DO NOTHING`,
		e.OwnerID, e.Symbol, e.DisplayName, string(e.Type), e.LastPrice, e.ChangePercent, e.MarketCap, e.Exchange, added)
	if err != nil {
		return fmt.Errorf("insert watchlist row %s: %w", e.Key, err)
	}
	return nil
}

func (t *PostgresTable) Delete(ctx context.Context, owner string, typ watchlist.InstrumentType, symbol string) error {
	_, err := t.DB.Exec(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2 AND stock_type = $3`, owner, symbol, string(typ))
	if err != nil {
		return fmt.Errorf("delete watchlist row %s: %w", watchlist.Key(typ, symbol), err)
	}
	return nil
}

func (t *PostgresTable) SelectByOwner(ctx context.Context, owner string) ([]watchlist.Entry, error) {
	rows, err := t.DB.Query(ctx, `
		SELECT symbol, name, stock_type, price, change_percent, market_cap, exchange, created_at
		FROM watchlist WHERE user_id = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("select watchlist for %s: %w", owner, err)
	}
	defer rows.Close()

	out := make([]watchlist.Entry, 0)
	for rows.Next() {
		var (
			symbol, name, stockType, exchange string
			price, change, mcap               *float64
			created                           time.Time
		)
		if err := rows.Scan(&symbol, &name, &stockType, &price, &change, &mcap, &exchange, &created); err != nil {
			return nil, err
		}
		typ, err := watchlist.ParseInstrumentType(stockType)
		if err != nil {
			continue
		}
		e := watchlist.NewEntry(typ, symbol, name)
		e.OwnerID = owner
		e.Exchange = exchange
		e.AddedAt = created.UTC()
		e.LastPrice, e.ChangePercent, e.MarketCap = price, change, mcap
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *PostgresTable) CountByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	err := t.DB.QueryRow(ctx, `SELECT COUNT(*) FROM watchlist WHERE user_id = $1`, owner).Scan(&n)
	return n, err
}

func (t *PostgresTable) DeleteByOwner(ctx context.Context, owner string) error {
	_, err := t.DB.Exec(ctx, `DELETE FROM watchlist WHERE user_id = $1`, owner)
	return err
}
