package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/username/finwatch/src/logger"
)

// DefaultRemoteTimeout bounds a single remote call.
const DefaultRemoteTimeout = 10 * time.Second

// Identity reports the signed-in user, if any.
type Identity interface {
	CurrentUserID() (string, bool)
}

// RemoteTable is the durable, per-user watchlist table.
// Insert of an existing (owner, type, symbol) row must succeed.
type RemoteTable interface {
	Insert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, owner string, t InstrumentType, symbol string) error
	SelectByOwner(ctx context.Context, owner string) ([]Entry, error)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a user-facing outcome message.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Key     string    `json:"key,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier delivers notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type AuthEventKind int

const (
	SignedIn AuthEventKind = iota + 1
	SignedOut
)

type AuthEvent struct {
	Kind   AuthEventKind
	UserID string
}

// Syncer applies watchlist mutations locally first and then remotely,
// undoing the local change when the remote call fails.
type Syncer struct {
	store    *Store
	remote   RemoteTable
	identity Identity
	notifier Notifier
	timeout  time.Duration

	locks   *KeyedMutex
	pending atomic.Int64
	log     *slog.Logger
}

// NewSyncer wires a store to its remote table. notifier may be nil.
func NewSyncer(store *Store, remote RemoteTable, identity Identity, notifier Notifier, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Syncer{
		store:    store,
		remote:   remote,
		identity: identity,
		notifier: notifier,
		timeout:  timeout,
		locks:    NewKeyedMutex(),
		log:      logger.L.With("component", "watchlist_sync"),
	}
}

func (s *Syncer) Store() *Store { return s.store }

// Pending is the number of mutations or loads currently in flight.
func (s *Syncer) Pending() int { return int(s.pending.Load()) }

// Add validates e, applies it locally and persists it remotely.
// Adding a key the user already owns succeeds without a remote call.
func (s *Syncer) Add(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		s.notify(ctx, LevelError, "Invalid instrument", err.Error(), e.Key)
		return err
	}
	owner, ok := s.identity.CurrentUserID()
	if !ok {
		s.notify(ctx, LevelError, "Sign in required", "Please sign in to add instruments to your watchlist", e.Key)
		return ErrUnauthenticated
	}

	unlock := s.locks.Lock(e.Key)
	defer unlock()
	s.pending.Add(1)
	defer s.pending.Add(-1)

	e.OwnerID = owner
	rollback := func() { s.store.Remove(e.Key) }
	if _, inserted := s.store.Add(e); !inserted {
		existing, _ := s.store.Get(e.Key)
		if existing.OwnerID != "" {
			s.notify(ctx, LevelInfo, "Already in watchlist", fmt.Sprintf("%s is already in your watchlist", e.Symbol), e.Key)
			return nil
		}
		// An anonymous entry restored from a snapshot is claimed and written remotely.
		claimed, _ := s.store.SetOwner(e.Key, owner)
		e = claimed
		rollback = func() { s.store.SetOwner(e.Key, "") }
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.remote.Insert(rctx, e); err != nil {
		rollback()
		s.log.Warn("Remote insert failed, rolled back", "key", e.Key, "owner", owner, "error", err)
		s.notify(ctx, LevelError, "Failed to add to watchlist", "Could not save "+e.Symbol+". Please try again.", e.Key)
		return fmt.Errorf("%w: add %s: %w", ErrNetwork, e.Key, err)
	}

	s.notify(ctx, LevelSuccess, "Added to watchlist", fmt.Sprintf("%s has been added to your watchlist", e.Symbol), e.Key)
	return nil
}

// Remove deletes an instrument locally and remotely. Removing an absent
// instrument succeeds without a remote call.
func (s *Syncer) Remove(ctx context.Context, t InstrumentType, symbol string) error {
	sym := NormalizeSymbol(symbol)
	if !t.Valid() || sym == "" {
		err := fmt.Errorf("%w: invalid instrument %s/%q", ErrValidation, t, symbol)
		s.notify(ctx, LevelError, "Invalid instrument", err.Error(), "")
		return err
	}
	key := Key(t, sym)
	owner, ok := s.identity.CurrentUserID()
	if !ok {
		s.notify(ctx, LevelError, "Sign in required", "Please sign in to change your watchlist", key)
		return ErrUnauthenticated
	}

	unlock := s.locks.Lock(key)
	defer unlock()
	s.pending.Add(1)
	defer s.pending.Add(-1)

	prev, pos, found := s.store.locate(key)
	if !found {
		s.notify(ctx, LevelInfo, "Removed from watchlist", sym+" is not in your watchlist", key)
		return nil
	}
	s.store.Remove(key)

	// Entries restored from an anonymous snapshot were never written remotely.
	if prev.OwnerID == "" {
		s.notify(ctx, LevelSuccess, "Removed from watchlist", sym+" has been removed from your watchlist", key)
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.remote.Delete(rctx, owner, t, sym); err != nil {
		s.store.insertAt(prev, pos)
		s.log.Warn("Remote delete failed, rolled back", "key", key, "owner", owner, "error", err)
		s.notify(ctx, LevelError, "Failed to remove from watchlist", "Could not remove "+sym+". Please try again.", key)
		return fmt.Errorf("%w: remove %s: %w", ErrNetwork, key, err)
	}

	s.notify(ctx, LevelSuccess, "Removed from watchlist", sym+" has been removed from your watchlist", key)
	return nil
}

// LoadForUser replaces the owner's local entries with the remote rows.
// The remote copy wins; nothing is merged. On failure the store is untouched.
func (s *Syncer) LoadForUser(ctx context.Context, owner string) error {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.remote.SelectByOwner(rctx, owner)
	if err != nil {
		s.log.Warn("Failed to load watchlist", "owner", owner, "error", err)
		s.notify(ctx, LevelError, "Failed to load watchlist", "Your saved watchlist could not be loaded", "")
		return fmt.Errorf("%w: load watchlist: %w", ErrNetwork, err)
	}

	valid := rows[:0]
	for _, e := range rows {
		if err := e.Validate(); err != nil {
			s.log.Warn("Skipping invalid remote row", "owner", owner, "key", e.Key, "error", err)
			continue
		}
		valid = append(valid, e)
	}
	snap := s.store.ReplaceOwned(owner, valid)
	s.log.Debug("Watchlist loaded", "owner", owner, "entries", len(snap))
	return nil
}

// HandleAuthEvent loads on sign-in and clears owned entries on sign-out.
func (s *Syncer) HandleAuthEvent(ctx context.Context, ev AuthEvent) error {
	switch ev.Kind {
	case SignedIn:
		return s.LoadForUser(ctx, ev.UserID)
	case SignedOut:
		s.store.ClearOwned(ev.UserID)
		return nil
	}
	return fmt.Errorf("%w: unknown auth event %d", ErrValidation, ev.Kind)
}

func (s *Syncer) notify(ctx context.Context, level Level, title, msg, key string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, Notification{Level: level, Title: title, Message: msg, Key: key, At: time.Now().UTC()})
}

// KeyedMutex serializes work per key. Locks are dropped once unused.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
