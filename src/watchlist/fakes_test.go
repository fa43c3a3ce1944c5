package watchlist

import (
	"context"
	"errors"
	"sync"
)

type fakeIdentity struct{ id string }

func (f fakeIdentity) CurrentUserID() (string, bool) { return f.id, f.id != "" }

type fakeRemote struct {
	mu        sync.Mutex
	rows      map[string]Entry
	inserts   int
	deletes   int
	failNext  error
	block     chan struct{}
	selectErr error
}

func newFakeRemote() *fakeRemote { return &fakeRemote{rows: make(map[string]Entry)} }

func (f *fakeRemote) Insert(ctx context.Context, e Entry) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.rows[e.OwnerID+"|"+e.Key] = e
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, owner string, t InstrumentType, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	delete(f.rows, owner+"|"+Key(t, symbol))
	return nil
}

func (f *fakeRemote) SelectByOwner(ctx context.Context, owner string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []Entry
	for _, e := range f.rows {
		if e.OwnerID == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRemote) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts, f.deletes
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

var errBoom = errors.New("connection reset")
