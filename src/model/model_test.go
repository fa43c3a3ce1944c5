package model

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finwatch/src/database"
	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/watchlist"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUserAndSessions(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	u := &User{Username: "asha", Email: "asha@example.com"}
	require.NoError(t, u.HashPassword("secret123"))
	require.NoError(t, u.CreateUser(ctx, db))
	assert.NotZero(t, u.ID)
	assert.Equal(t, "local", u.AuthProvider)

	byEmail, err := GetUserByEmail(ctx, db, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.NoError(t, byEmail.CheckPassword("secret123"))
	assert.Error(t, byEmail.CheckPassword("wrong"))

	_, err = GetUserByUsername(ctx, db, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, byEmail.RecordLogin(ctx, db))
	byID, err := GetUserByID(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, byID.LoginCount)
	assert.True(t, byID.LastLoginAt.Valid)
	assert.Empty(t, byID.DisplayName)

	require.NoError(t, byID.UpdateProfile(ctx, db, "Asha R.", "https://cdn.example.com/asha.png"))
	byID, err = GetUserByID(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", byID.DisplayName)
	assert.Equal(t, "https://cdn.example.com/asha.png", byID.PhotoURL)

	s := &Session{UserID: u.ID, Token: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, CreateSession(ctx, db, s))
	got, err := GetSessionByToken(ctx, db, "access")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	require.NoError(t, DeleteSessionByRefreshToken(ctx, db, "refresh"))
	_, err = GetSessionByRefreshToken(ctx, db, "refresh")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	expired := &Session{UserID: u.ID, Token: "old", RefreshToken: "old-r", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, CreateSession(ctx, db, expired))
	_, err = GetSessionByToken(ctx, db, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWatchlistTable(t *testing.T) {
	ctx := context.Background()
	table := NewWatchlistTable(openDB(t))

	aapl := watchlist.NewEntry(watchlist.US, "aapl", "Apple Inc.")
	aapl.OwnerID = "7"
	aapl.LastPrice = watchlist.Float(190.5)
	btc := watchlist.NewEntry(watchlist.Crypto, "btc", "Bitcoin")
	btc.OwnerID = "7"
	btc.AddedAt = aapl.AddedAt.Add(time.Second)

	require.NoError(t, table.Insert(ctx, aapl))
	require.NoError(t, table.Insert(ctx, btc))
	require.NoError(t, table.Insert(ctx, aapl), "duplicate insert is a no-op")

	rows, err := table.SelectByOwner(ctx, "7")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "us-AAPL", rows[0].Key)
	assert.Equal(t, "7", rows[0].OwnerID)
	require.NotNil(t, rows[0].LastPrice)
	assert.InDelta(t, 190.5, *rows[0].LastPrice, 1e-9)
	assert.Nil(t, rows[1].LastPrice)
	for _, e := range rows {
		assert.NoError(t, e.Validate())
	}

	n, err := table.CountByOwner(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, table.Delete(ctx, "7", watchlist.US, "AAPL"))
	require.NoError(t, table.Delete(ctx, "7", watchlist.US, "AAPL"), "deleting a missing row succeeds")
	rows, err = table.SelectByOwner(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"crypto-BTC"}, watchlist.Snapshot(rows).Keys())

	rows, err = table.SelectByOwner(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(openDB(t))
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	salary := &ledger.Transaction{OwnerID: "1", Amount: decimal.RequireFromString("5000.25"), Kind: ledger.Credit, Category: "Salary", OccurredAt: day}
	rent := &ledger.Transaction{OwnerID: "1", Amount: decimal.RequireFromString("1200"), Kind: ledger.Debit, Category: "Rent", OccurredAt: day.AddDate(0, 0, 1)}
	require.NoError(t, repo.CreateTransaction(ctx, salary))
	require.NoError(t, repo.CreateTransaction(ctx, rent))
	assert.NotEmpty(t, salary.ID)

	txs, err := repo.ListTransactions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, rent.ID, txs[0].ID, "newest first")
	assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("5000.25")))

	rent.Amount = decimal.RequireFromString("1300")
	require.NoError(t, repo.UpdateTransaction(ctx, rent))
	other := *rent
	other.OwnerID = "2"
	assert.ErrorIs(t, repo.UpdateTransaction(ctx, &other), ErrNotFound)

	assert.ErrorIs(t, repo.DeleteTransaction(ctx, "2", salary.ID), ErrNotFound)
	require.NoError(t, repo.DeleteTransaction(ctx, "1", salary.ID))

	txs, err = repo.ListTransactions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("1300")))

	food := &ledger.Expense{OwnerID: "1", Amount: decimal.RequireFromString("42.10"), Category: "Food", OccurredAt: day}
	require.NoError(t, repo.CreateExpense(ctx, food))
	exps, err := repo.ListExpenses(ctx, "1")
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "Food", exps[0].Category)

	food.Category = "Transport"
	require.NoError(t, repo.UpdateExpense(ctx, food))
	exps, err = repo.ListExpenses(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Transport", exps[0].Category)
	foreign := *food
	foreign.OwnerID = "2"
	assert.ErrorIs(t, repo.UpdateExpense(ctx, &foreign), ErrNotFound)

	require.NoError(t, repo.DeleteExpense(ctx, "1", food.ID))
	assert.ErrorIs(t, repo.DeleteExpense(ctx, "1", food.ID), ErrNotFound)
}

func TestSubscriberUpsert(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	_, err := GetSubscriber(ctx, db, "9")
	assert.ErrorIs(t, err, ErrNotFound)

	end := time.Now().Add(30 * 24 * time.Hour).UTC()
	s := &Subscriber{UserID: "9", Email: "a@b.co", Subscribed: true, Tier: "pro", SubscriptionEnd: &end, StripeCustomerID: "mock_1"}
	require.NoError(t, UpsertSubscriber(ctx, db, s))

	s.Tier = "enterprise"
	require.NoError(t, UpsertSubscriber(ctx, db, s))

	got, err := GetSubscriber(ctx, db, "9")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", got.Tier)
	assert.True(t, got.Active(time.Now()))
	assert.False(t, got.Active(end.Add(time.Hour)))
}
