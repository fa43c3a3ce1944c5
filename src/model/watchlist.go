package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/username/finwatch/src/watchlist"
)

// WatchlistTable is the SQLite-backed watchlist.RemoteTable.
type WatchlistTable struct {
	db *sql.DB
}

func NewWatchlistTable(db *sql.DB) *WatchlistTable {
	return &WatchlistTable{db: db}
}

// Insert writes e for its owner. An existing (owner, symbol, type) row is
// left as is.
func (t *WatchlistTable) Insert(ctx context.Context, e watchlist.Entry) error {
	added := e.AddedAt
	if added.IsZero() {
		added = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx, `
	INSERT INTO watchlist (id, user_id, symbol, name, stock_type, price, change_percent, market_cap, exchange, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, symbol, stock_type) DO NOTHING`,
		uuid.NewString(), e.OwnerID, e.Symbol, e.DisplayName, string(e.Type),
		nullFloat(e.LastPrice), nullFloat(e.ChangePercent), nullFloat(e.MarketCap),
		e.Exchange, added,
	)
	if err != nil {
		return fmt.Errorf("insert watchlist row %s: %w", e.Key, err)
	}
	return nil
}

func (t *WatchlistTable) Delete(ctx context.Context, owner string, typ watchlist.InstrumentType, symbol string) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = ? AND symbol = ? AND stock_type = ?`,
		owner, symbol, string(typ))
	if err != nil {
		return fmt.Errorf("delete watchlist row %s: %w", watchlist.Key(typ, symbol), err)
	}
	return nil
}

// SelectByOwner returns the owner's rows oldest first. Rows with an
// unknown type are skipped.
func (t *WatchlistTable) SelectByOwner(ctx context.Context, owner string) ([]watchlist.Entry, error) {
	rows, err := t.db.QueryContext(ctx, `
	SELECT symbol, name, stock_type, price, change_percent, market_cap, exchange, created_at
	FROM watchlist WHERE user_id = ? ORDER BY created_at, rowid`, owner)
	if err != nil {
		return nil, fmt.Errorf("select watchlist for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []watchlist.Entry
	for rows.Next() {
		var (
			symbol, name, stockType, exchange string
			price, change, mcap               sql.NullFloat64
			created                           time.Time
		)
		if err := rows.Scan(&symbol, &name, &stockType, &price, &change, &mcap, &exchange, &created); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		e, ok := entryFromRow(owner, symbol, name, stockType, exchange, created)
		if !ok {
			continue
		}
		e.LastPrice = floatPtr(price)
		e.ChangePercent = floatPtr(change)
		e.MarketCap = floatPtr(mcap)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByOwner backs the dashboard stats.
func (t *WatchlistTable) CountByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM watchlist WHERE user_id = ?`, owner).Scan(&n)
	return n, err
}

func entryFromRow(owner, symbol, name, stockType, exchange string, created time.Time) (watchlist.Entry, bool) {
	typ, err := watchlist.ParseInstrumentType(stockType)
	if err != nil {
		return watchlist.Entry{}, false
	}
	e := watchlist.NewEntry(typ, symbol, name)
	e.Exchange = exchange
	e.OwnerID = owner
	e.AddedAt = created.UTC()
	return e, true
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return watchlist.Float(v.Float64)
}

// DeleteByOwner drops every row of owner.
func (t *WatchlistTable) DeleteByOwner(ctx context.Context, owner string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = ?`, owner)
	return err
}
