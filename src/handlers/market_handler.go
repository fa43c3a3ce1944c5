package handlers

import (
	"net/http"
	"strings"

	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/security/validation"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

const maxSearchQueryLength = 64

type MarketHandler struct {
	market services.MarketService
}

func NewMarketHandler(market services.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

func (h *MarketHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	t, err := watchlist.ParseInstrumentType(r.URL.Query().Get("type"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if err := validation.ValidateStringMaxLength(query, maxSearchQueryLength, "q"); err != nil {
		sendServiceError(w, r, err, "Invalid query")
		return
	}
	if query == "" {
		sendJSON(w, http.StatusOK, []market.Instrument{})
		return
	}
	results, err := h.market.Search(r.Context(), t, query)
	if err != nil {
		sendServiceError(w, r, err, "Search failed")
		return
	}
	sendJSON(w, http.StatusOK, results)
}

func (h *MarketHandler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	t, err := watchlist.ParseInstrumentType(r.URL.Query().Get("type"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	sendJSON(w, http.StatusOK, h.market.Popular(t))
}

func (h *MarketHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	t, err := watchlist.ParseInstrumentType(r.URL.Query().Get("type"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid type")
		return
	}
	symbol := watchlist.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if err := validation.ValidateSymbol(symbol); err != nil {
		sendServiceError(w, r, err, "Invalid symbol")
		return
	}
	q, err := h.market.Quote(r.Context(), t, symbol)
	if err != nil {
		sendServiceError(w, r, err, "Quote lookup failed")
		return
	}
	sendJSON(w, http.StatusOK, q)
}
