package services

import (
	"context"
	"sync"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/watchlist"
)

const DefaultInboxSize = 50

// Inbox is a bounded, per-user notification queue. When full the oldest
// notification is dropped.
type Inbox struct {
	mu    sync.Mutex
	items []watchlist.Notification
	size  int
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{size: size}
}

func (in *Inbox) Notify(ctx context.Context, n watchlist.Notification) {
	logger.FromContext(ctx).Debug("Watchlist notification", "level", n.Level, "title", n.Title, "key", n.Key)
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.items) == in.size {
		copy(in.items, in.items[1:])
		in.items = in.items[:len(in.items)-1]
	}
	in.items = append(in.items, n)
}

// Drain returns the queued notifications oldest first and empties the inbox.
func (in *Inbox) Drain() []watchlist.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.items
	in.items = nil
	if out == nil {
		out = []watchlist.Notification{}
	}
	return out
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}
