package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/username/finwatch/src/logger"
)

// DefaultIntervals are the refresh periods per market.
var DefaultIntervals = map[InstrumentType]time.Duration{
	Crypto: time.Minute,
	US:     5 * time.Minute,
	Indian: 5 * time.Minute,
}

const DefaultFetchTimeout = 20 * time.Second

// QuoteSource returns price updates keyed by normalized symbol. Symbols
// it has no quote for are simply absent from the map.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]PriceUpdate, error)
}

// QuoteSourceFunc adapts a function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context, symbols []string) (map[string]PriceUpdate, error)

func (f QuoteSourceFunc) Quotes(ctx context.Context, symbols []string) (map[string]PriceUpdate, error) {
	return f(ctx, symbols)
}

// Refresher periodically pulls quotes for one instrument type into a store.
// At most one fetch runs at a time; ticks that arrive meanwhile are dropped.
type Refresher struct {
	typ          InstrumentType
	store        *Store
	source       QuoteSource
	interval     time.Duration
	fetchTimeout time.Duration

	inFlight    atomic.Bool
	skipped     atomic.Int64
	failures    atomic.Int64
	lastSuccess atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
	log     *slog.Logger
}

func NewRefresher(t InstrumentType, store *Store, source QuoteSource, interval, fetchTimeout time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultIntervals[t]
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Refresher{
		typ:          t,
		store:        store,
		source:       source,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		log:          logger.L.With("component", "price_refresher", "type", string(t)),
	}
}

func (r *Refresher) Type() InstrumentType    { return r.typ }
func (r *Refresher) Interval() time.Duration { return r.interval }

// Running reports whether the loop has been started and not stopped.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Pending reports whether a fetch is in flight.
func (r *Refresher) Pending() bool { return r.inFlight.Load() }

// Skipped counts ticks dropped because a fetch was still running.
func (r *Refresher) Skipped() int64 { return r.skipped.Load() }

// ConsecutiveFailures resets to zero on the next successful fetch.
func (r *Refresher) ConsecutiveFailures() int { return int(r.failures.Load()) }

// LastSuccess is the time of the last successful fetch, zero if none.
func (r *Refresher) LastSuccess() time.Time {
	ns := r.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Start fetches immediately and then once per interval until Stop or ctx
// cancellation. Calling Start on a running refresher does nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.running.Add(1)
	go r.loop(loopCtx)
	r.log.Debug("Price refresher started", "interval", r.interval)
}

// Stop cancels the loop and any in-flight fetch, and waits for both to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.running.Wait()
	r.log.Debug("Price refresher stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.running.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.trigger(ctx)
		}
	}
}

// trigger starts a fetch in the background unless one is already running.
func (r *Refresher) trigger(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.log.Debug("Skipping refresh tick, previous fetch still running")
		return
	}
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		defer r.inFlight.Store(false)
		_ = r.fetch(ctx)
	}()
}

// Tick runs one fetch synchronously. It returns false without fetching
// when another fetch is in flight.
func (r *Refresher) Tick(ctx context.Context) (bool, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		return false, nil
	}
	defer r.inFlight.Store(false)
	return true, r.fetch(ctx)
}

func (r *Refresher) fetch(ctx context.Context) error {
	symbols := r.store.Symbols(r.typ)
	if len(symbols) == 0 {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	quotes, err := r.source.Quotes(fctx, symbols)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		n := r.failures.Add(1)
		r.log.Warn("Price refresh failed, keeping last known prices", "symbols", len(symbols), "consecutive_failures", n, "error", err)
		return err
	}

	r.failures.Store(0)
	r.lastSuccess.Store(time.Now().UnixNano())
	applied := 0
	for sym, u := range quotes {
		if r.store.UpsertPrice(Key(r.typ, sym), u) {
			applied++
		}
	}
	r.log.Debug("Prices refreshed", "requested", len(symbols), "applied", applied)
	return nil
}
