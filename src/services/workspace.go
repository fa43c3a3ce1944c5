package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

const (
	DefaultWorkspaceIdleTTL = 30 * time.Minute
	workspaceCleanup        = 5 * time.Minute
)

// sessionIdentity is the signed-in user of one workspace.
type sessionIdentity struct {
	userID atomic.Pointer[string]
}

func (s *sessionIdentity) CurrentUserID() (string, bool) {
	p := s.userID.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (s *sessionIdentity) set(id string) { s.userID.Store(&id) }
func (s *sessionIdentity) clear()        { s.userID.Store(nil) }

// Workspace is the live watchlist state of one signed-in user.
type Workspace struct {
	UserID string
	Store  *watchlist.Store
	Syncer *watchlist.Syncer
	Inbox  *Inbox

	identity   *sessionIdentity
	refreshers []*watchlist.Refresher
	stopOnce   sync.Once
	stopped    atomic.Bool
}

// Refreshers returns the price loops, one per instrument type.
func (w *Workspace) Refreshers() []*watchlist.Refresher { return w.refreshers }

// Refresher returns the loop for t, or nil.
func (w *Workspace) Refresher(t watchlist.InstrumentType) *watchlist.Refresher {
	for _, r := range w.refreshers {
		if r.Type() == t {
			return r
		}
	}
	return nil
}

func (w *Workspace) stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		for _, r := range w.refreshers {
			r.Stop()
		}
	})
}

// WorkspaceOptions tune a Manager. Zero values pick defaults.
type WorkspaceOptions struct {
	CacheDir        string
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Intervals       map[watchlist.InstrumentType]time.Duration
	FetchTimeout    time.Duration
	RemoteTimeout   time.Duration
	InboxSize       int
}

// Manager owns one Workspace per signed-in user. Workspaces idle for
// longer than IdleTTL are evicted and their refreshers stopped.
type Manager struct {
	remote  watchlist.RemoteTable
	sources QuoteSources
	opts    WorkspaceOptions

	baseCtx    context.Context
	cancelBase context.CancelFunc

	users      *watchlist.KeyedMutex
	workspaces *cache.Cache
	log        *slog.Logger
}

func NewManager(remote watchlist.RemoteTable, sources QuoteSources, opts WorkspaceOptions) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultWorkspaceIdleTTL
	}
	if opts.Intervals == nil {
		opts.Intervals = watchlist.DefaultIntervals
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = min(opts.IdleTTL/2, workspaceCleanup)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		remote:     remote,
		sources:    sources,
		opts:       opts,
		baseCtx:    ctx,
		cancelBase: cancel,
		users:      watchlist.NewKeyedMutex(),
		workspaces: cache.New(opts.IdleTTL, opts.CleanupInterval),
		log:        logger.L.With("component", "workspace_manager"),
	}
	m.workspaces.OnEvicted(func(userID string, v any) {
		if ws, ok := v.(*Workspace); ok {
			ws.stop()
			m.log.Debug("Workspace evicted", "userID", userID)
		}
	})
	return m
}

// Open returns the user's workspace, creating it and loading the remote
// watchlist on first use. Each call resets the idle timer. Opens for
// different users do not wait on each other.
func (m *Manager) Open(ctx context.Context, userID string) (*Workspace, error) {
	unlock := m.users.Lock(userID)
	defer unlock()

	if v, ok := m.workspaces.Get(userID); ok {
		ws := v.(*Workspace)
		m.workspaces.SetDefault(userID, ws)
		if !ws.stopped.Load() {
			return ws, nil
		}
	}
	// An expired workspace stays stored until the janitor sweeps it, and
	// overwriting it would skip OnEvicted. Delete stops its refreshers.
	m.workspaces.Delete(userID)

	ws, err := m.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.workspaces.SetDefault(userID, ws)
	for _, r := range ws.refreshers {
		r.Start(m.baseCtx)
	}
	logger.FromContext(ctx).Info("Workspace opened", "userID", userID, "entries", ws.Store.Len())
	return ws, nil
}

func (m *Manager) build(ctx context.Context, userID string) (*Workspace, error) {
	var local watchlist.LocalCache = watchlist.NewMemoryCache()
	if m.opts.CacheDir != "" {
		local = watchlist.NewFileCache(filepath.Join(m.opts.CacheDir, userID))
	}
	store := watchlist.NewStore(local)
	if err := store.Restore(); err != nil {
		logger.FromContext(ctx).Warn("Ignoring unreadable watchlist snapshot", "userID", userID, "error", err)
	}

	ws := &Workspace{
		UserID:   userID,
		Store:    store,
		Inbox:    NewInbox(m.opts.InboxSize),
		identity: &sessionIdentity{},
	}
	ws.identity.set(userID)
	ws.Syncer = watchlist.NewSyncer(store, m.remote, ws.identity, ws.Inbox, m.opts.RemoteTimeout)
	if err := ws.Syncer.HandleAuthEvent(ctx, watchlist.AuthEvent{Kind: watchlist.SignedIn, UserID: userID}); err != nil {
		return nil, fmt.Errorf("open workspace for %s: %w", userID, err)
	}

	for _, t := range watchlist.Types {
		ws.refreshers = append(ws.refreshers, watchlist.NewRefresher(t, store, m.sources.QuoteSource(t), m.opts.Intervals[t], m.opts.FetchTimeout))
	}
	return ws, nil
}

// Lookup returns an open workspace without creating one.
func (m *Manager) Lookup(userID string) (*Workspace, bool) {
	v, ok := m.workspaces.Get(userID)
	if !ok {
		return nil, false
	}
	return v.(*Workspace), true
}

// Close signs the user out of their workspace: owned entries are cleared,
// the identity is dropped and the refreshers stop. Closing a user without
// a workspace is a no-op.
func (m *Manager) Close(ctx context.Context, userID string) {
	unlock := m.users.Lock(userID)
	defer unlock()
	v, ok := m.workspaces.Get(userID)
	m.workspaces.Delete(userID)
	if !ok {
		return
	}
	ws := v.(*Workspace)
	_ = ws.Syncer.HandleAuthEvent(ctx, watchlist.AuthEvent{Kind: watchlist.SignedOut, UserID: userID})
	ws.identity.clear()
	logger.FromContext(ctx).Info("Workspace closed", "userID", userID)
}

// Len is the number of open workspaces.
func (m *Manager) Len() int { return m.workspaces.ItemCount() }

// Shutdown stops every workspace. The manager must not be used afterwards.
func (m *Manager) Shutdown() {
	m.cancelBase()
	m.workspaces.DeleteExpired()
	for userID := range m.workspaces.Items() {
		m.workspaces.Delete(userID)
	}
}
