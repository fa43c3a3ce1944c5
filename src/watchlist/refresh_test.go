package watchlist

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresherFailuresKeepPrices(t *testing.T) {
	s := NewStore(nil)
	s.Add(NewEntry(Crypto, "BTC", ""))
	s.UpsertPrice("crypto-BTC", PriceUpdate{Price: Float(60000), ChangePercent: Float(2)})

	src := QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
		return nil, errBoom
	})
	r := NewRefresher(Crypto, s, src, time.Hour, time.Second)
	for i := 0; i < 3; i++ {
		ran, err := r.Tick(context.Background())
		assert.True(t, ran)
		assert.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, 3, r.ConsecutiveFailures())
	got, _ := s.Get("crypto-BTC")
	assert.Equal(t, 60000.0, *got.LastPrice)
	assert.Equal(t, 2.0, *got.ChangePercent)
}

func TestRefresherAppliesQuotesAndResetsFailures(t *testing.T) {
	s := NewStore(nil)
	s.Add(NewEntry(US, "AAPL", ""))
	fail := true
	src := QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
		if fail {
			return nil, errBoom
		}
		assert.Equal(t, []string{"AAPL"}, symbols)
		return map[string]PriceUpdate{
			"AAPL": {Price: Float(190), ChangePercent: Float(-0.5)},
			"GONE": {Price: Float(1)},
		}, nil
	})
	r := NewRefresher(US, s, src, time.Hour, time.Second)

	r.Tick(context.Background())
	assert.Equal(t, 1, r.ConsecutiveFailures())
	fail = false
	_, err := r.Tick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, r.ConsecutiveFailures())
	assert.False(t, r.LastSuccess().IsZero())
	got, _ := s.Get("us-AAPL")
	assert.Equal(t, 190.0, *got.LastPrice)
	assert.False(t, s.Contains("us-GONE"))
}

func TestRefresherSingleFlight(t *testing.T) {
	s := NewStore(nil)
	s.Add(NewEntry(Crypto, "ETH", ""))
	release := make(chan struct{})
	var calls atomic.Int32
	src := QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
		calls.Add(1)
		<-release
		return map[string]PriceUpdate{}, nil
	})
	r := NewRefresher(Crypto, s, src, 5*time.Millisecond, time.Second)
	r.Start(context.Background())

	require.Eventually(t, func() bool { return r.Skipped() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, r.Pending())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	r.Stop()
	assert.False(t, r.Pending())
}

func TestRefresherStopWaitsAndCancelsFetch(t *testing.T) {
	s := NewStore(nil)
	s.Add(NewEntry(US, "AAPL", ""))
	started := make(chan struct{})
	src := QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := NewRefresher(US, s, src, time.Hour, time.Hour)
	r.Start(context.Background())
	r.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, r.Pending())
	assert.Zero(t, r.ConsecutiveFailures())
	r.Stop()
}

func TestRefresherEmptyStoreSkipsFetch(t *testing.T) {
	src := QuoteSourceFunc(func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	})
	r := NewRefresher(Indian, NewStore(nil), src, 0, 0)
	assert.Equal(t, 5*time.Minute, r.Interval())
	_, err := r.Tick(context.Background())
	assert.NoError(t, err)
}
