package watchlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/username/finwatch/src/logger"
)

// SnapshotKey is the LocalCache key the store persists under.
const SnapshotKey = "watchlist"

const snapshotVersion = 1

// Snapshot is an independent copy of the store contents in insertion order.
type Snapshot []Entry

// Keys returns the entry keys in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s))
	for i, e := range s {
		keys[i] = e.Key
	}
	return keys
}

type persistedSnapshot struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store is the ordered, in-memory watchlist. It is the single owner of the
// entries; every mutation goes through its methods.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	cache   LocalCache
	log     *slog.Logger
}

// NewStore returns an empty store. cache may be nil, in which case nothing
// is persisted.
func NewStore(cache LocalCache) *Store {
	return &Store{
		index: make(map[string]int),
		cache: cache,
		log:   logger.L.With("component", "watchlist_store"),
	}
}

// Add inserts e if its key is absent. It reports whether an insert happened.
func (s *Store) Add(e Entry) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[e.Key]; ok {
		return s.snapshotLocked(), false
	}
	s.index[e.Key] = len(s.entries)
	s.entries = append(s.entries, e.clone())
	s.persistLocked()
	return s.snapshotLocked(), true
}

// Remove deletes the entry with key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return s.snapshotLocked(), false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.reindexLocked()
	s.persistLocked()
	return s.snapshotLocked(), true
}

// UpsertPrice applies a quote to an existing entry. It never creates one:
// a quote for a key removed while its fetch was in flight is dropped.
func (s *Store) UpsertPrice(key string, u PriceUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return false
	}
	e := &s.entries[i]
	if u.Price != nil {
		e.LastPrice = copyFloat(u.Price)
	}
	if u.ChangePercent != nil {
		e.ChangePercent = copyFloat(u.ChangePercent)
	}
	if u.MarketCap != nil {
		e.MarketCap = copyFloat(u.MarketCap)
	}
	if u.Name != "" && (e.DisplayName == "" || e.DisplayName == e.Symbol) {
		e.DisplayName = u.Name
	}
	return true
}

// SetOwner reassigns the owner of key and returns the updated entry.
func (s *Store) SetOwner(key, owner string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return Entry{}, false
	}
	s.entries[i].OwnerID = owner
	s.persistLocked()
	return s.entries[i].clone(), true
}

func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of every entry in insertion order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// ByType yields the entries of one type. The sequence reads the store each
// time it is ranged over.
func (s *Store) ByType(t InstrumentType) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range s.Snapshot() {
			if e.Type != t {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Symbols returns the symbols of one type in insertion order.
func (s *Store) Symbols(t InstrumentType) []string {
	var out []string
	for e := range s.ByType(t) {
		out = append(out, e.Symbol)
	}
	return out
}

// AggregateMode selects what Aggregate sums.
type AggregateMode int

const (
	// SumPrices adds last prices. It mixes currencies across markets and
	// is only meant for display.
	SumPrices AggregateMode = iota
	// SumMarketCap adds market capitalizations.
	SumMarketCap
)

func ParseAggregateMode(s string) (AggregateMode, error) {
	switch s {
	case "", "price", "prices":
		return SumPrices, nil
	case "market_cap", "marketcap":
		return SumMarketCap, nil
	}
	return 0, fmt.Errorf("%w: unknown aggregate mode %q", ErrValidation, s)
}

// Aggregate is a per-type summary for dashboards.
type Aggregate struct {
	Type   InstrumentType `json:"type"`
	Count  int            `json:"count"`
	Priced int            `json:"priced"`
	Total  float64        `json:"total"`
}

func (s *Store) Aggregate(t InstrumentType, mode AggregateMode) Aggregate {
	agg := Aggregate{Type: t}
	for e := range s.ByType(t) {
		agg.Count++
		v := e.LastPrice
		if mode == SumMarketCap {
			v = e.MarketCap
		}
		if v != nil {
			agg.Priced++
			agg.Total += *v
		}
	}
	return agg
}

// ReplaceOwned swaps every entry owned by owner for entries. Anonymous
// entries survive unless entries contains the same key, in which case the
// owned copy wins.
func (s *Store) ReplaceOwned(owner string, entries []Entry) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		incoming[e.Key] = struct{}{}
	}

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.OwnerID == owner {
			continue
		}
		if _, dup := incoming[e.Key]; dup && e.OwnerID == "" {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.reindexLocked()

	for _, e := range entries {
		if _, ok := s.index[e.Key]; ok {
			continue
		}
		e = e.clone()
		e.OwnerID = owner
		s.index[e.Key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.persistLocked()
	return s.snapshotLocked()
}

// ClearOwned drops every entry owned by owner.
func (s *Store) ClearOwned(owner string) Snapshot {
	return s.ReplaceOwned(owner, nil)
}

// locate returns the entry with key and its position.
func (s *Store) locate(key string) (Entry, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return Entry{}, -1, false
	}
	return s.entries[i].clone(), i, true
}

// insertAt puts e back at position pos (clamped). Used to undo a Remove.
func (s *Store) insertAt(e Entry, pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[e.Key]; ok {
		return
	}
	if pos < 0 || pos > len(s.entries) {
		pos = len(s.entries)
	}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[pos+1:], s.entries[pos:])
	s.entries[pos] = e.clone()
	s.reindexLocked()
	s.persistLocked()
}

// Restore loads the persisted snapshot. A missing snapshot leaves the store
// empty and is not an error. Entries failing validation are skipped.
func (s *Store) Restore() error {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Load(SnapshotKey)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load watchlist snapshot: %w", err)
	}
	var p persistedSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode watchlist snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	s.index = make(map[string]int, len(p.Entries))
	for _, e := range p.Entries {
		if err := e.Validate(); err != nil {
			s.log.Warn("Skipping invalid snapshot entry", "key", e.Key, "error", err)
			continue
		}
		if _, dup := s.index[e.Key]; dup {
			continue
		}
		s.index[e.Key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	out := make(Snapshot, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		s.index[e.Key] = i
	}
}

// persistLocked writes the snapshot. A failed write is logged and the
// in-memory mutation stands.
func (s *Store) persistLocked() {
	if s.cache == nil {
		return
	}
	data, err := json.MarshalIndent(persistedSnapshot{Version: snapshotVersion, Entries: s.entries}, "", "  ")
	if err != nil {
		s.log.Error("Failed to encode watchlist snapshot", "error", err)
		return
	}
	if err := s.cache.Save(SnapshotKey, data); err != nil {
		s.log.Error("Failed to persist watchlist snapshot", "error", err)
	}
}
