package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

// enrichTimeout bounds the optional quote lookup made when adding an instrument.
const enrichTimeout = 3 * time.Second

type WatchlistHandler struct {
	workspaces *services.Manager
	market     services.MarketService
}

func NewWatchlistHandler(workspaces *services.Manager, market services.MarketService) *WatchlistHandler {
	return &WatchlistHandler{workspaces: workspaces, market: market}
}

// workspace opens the caller's workspace, writing the error response on failure.
func (h *WatchlistHandler) workspace(w http.ResponseWriter, r *http.Request) (*services.Workspace, bool) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return nil, false
	}
	ws, err := h.workspaces.Open(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to open watchlist")
		return nil, false
	}
	return ws, true
}

// optionalType parses ?type=, where empty means every type.
func optionalType(r *http.Request) (watchlist.InstrumentType, error) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return "", nil
	}
	return watchlist.ParseInstrumentType(raw)
}

func filterEntries(snap watchlist.Snapshot, t watchlist.InstrumentType) []watchlist.Entry {
	out := make([]watchlist.Entry, 0, len(snap))
	for _, e := range snap {
		if t == "" || e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (h *WatchlistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	t, err := optionalType(r)
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, filterEntries(ws.Store.Snapshot(), t))
}

type addInstrumentRequest struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

func (h *WatchlistHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t, err := watchlist.ParseInstrumentType(req.Type)
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	entry := watchlist.NewEntry(t, req.Symbol, req.Name)
	entry.Exchange = req.Exchange
	if err := entry.Validate(); err != nil {
		sendServiceError(w, r, err, "Invalid instrument")
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if !ws.Store.Contains(entry.Key) {
		h.enrich(r.Context(), &entry)
	}
	if err := ws.Syncer.Add(r.Context(), entry); err != nil {
		sendServiceError(w, r, err, "Failed to add to watchlist")
		return
	}
	stored, _ := ws.Store.Get(entry.Key)
	sendJSON(w, http.StatusCreated, stored)
}

// enrich fills prices from a live quote. A failed lookup leaves the entry unpriced.
func (h *WatchlistHandler) enrich(ctx context.Context, e *watchlist.Entry) {
	if h.market == nil || e.Symbol == "" {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()
	q, err := h.market.Quote(qctx, e.Type, e.Symbol)
	if err != nil {
		logger.FromContext(ctx).Debug("Quote lookup for new entry failed", "key", e.Key, "error", err)
		return
	}
	u := q.PriceUpdate()
	e.LastPrice = u.Price
	e.ChangePercent = u.ChangePercent
	e.MarketCap = u.MarketCap
	if e.DisplayName == e.Symbol && q.Name != "" {
		e.DisplayName = q.Name
	}
}

func (h *WatchlistHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	t, err := watchlist.ParseInstrumentType(chi.URLParam(r, "type"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	symbol := chi.URLParam(r, "symbol")
	if err := ws.Syncer.Remove(r.Context(), t, symbol); err != nil {
		sendServiceError(w, r, err, "Failed to remove from watchlist")
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"key": watchlist.Key(t, symbol), "status": "removed"})
}

func (h *WatchlistHandler) HandleMovers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := optionalType(r)
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	n := watchlist.DefaultMovers
	if raw := q.Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendJSONError(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	entries := filterEntries(ws.Store.Snapshot(), t)

	if raw := q.Get("direction"); raw != "" {
		dir, err := watchlist.ParseDirection(raw)
		if err != nil {
			sendServiceError(w, r, err, "Invalid direction")
			return
		}
		sendJSON(w, http.StatusOK, watchlist.TopMovers(entries, dir, n))
		return
	}
	sendJSON(w, http.StatusOK, watchlist.Split(entries, n))
}

func (h *WatchlistHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	mode, err := watchlist.ParseAggregateMode(r.URL.Query().Get("mode"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid mode")
		return
	}
	t, err := optionalType(r)
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if t != "" {
		sendJSON(w, http.StatusOK, ws.Store.Aggregate(t, mode))
		return
	}
	out := make([]watchlist.Aggregate, 0, len(watchlist.Types))
	for _, typ := range watchlist.Types {
		out = append(out, ws.Store.Aggregate(typ, mode))
	}
	sendJSON(w, http.StatusOK, out)
}

// HandleReload replaces the caller's entries with the remote copy.
func (h *WatchlistHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Syncer.LoadForUser(r.Context(), ws.UserID); err != nil {
		sendServiceError(w, r, err, "Failed to reload watchlist")
		return
	}
	sendJSON(w, http.StatusOK, ws.Store.Snapshot())
}

// HandleStatus reports refresher health per instrument type.
func (h *WatchlistHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	type refresherStatus struct {
		Type                watchlist.InstrumentType `json:"type"`
		IntervalSeconds     float64                  `json:"interval_seconds"`
		Pending             bool                     `json:"pending"`
		Skipped             int64                    `json:"skipped"`
		ConsecutiveFailures int                      `json:"consecutive_failures"`
		LastSuccess         *time.Time               `json:"last_success,omitempty"`
	}
	out := make([]refresherStatus, 0, len(ws.Refreshers()))
	for _, rf := range ws.Refreshers() {
		st := refresherStatus{
			Type:                rf.Type(),
			IntervalSeconds:     rf.Interval().Seconds(),
			Pending:             rf.Pending(),
			Skipped:             rf.Skipped(),
			ConsecutiveFailures: rf.ConsecutiveFailures(),
		}
		if last := rf.LastSuccess(); !last.IsZero() {
			st.LastSuccess = &last
		}
		out = append(out, st)
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"entries":       ws.Store.Len(),
		"pending_syncs": ws.Syncer.Pending(),
		"refreshers":    out,
	})
}

// HandleNotifications drains the caller's notification inbox.
func (h *WatchlistHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, ws.Inbox.Drain())
}
