package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/security/validation"
	"github.com/username/finwatch/src/services"
)

type TransactionHandler struct {
	ledger *services.LedgerService
}

func NewTransactionHandler(ledgerService *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledgerService}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.Transactions(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve transactions")
		return
	}
	sendJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var in services.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tx, err := h.ledger.AddTransaction(r.Context(), owner, in)
	if err != nil {
		sendServiceError(w, r, err, "Failed to create transaction")
		return
	}
	logger.FromContext(r.Context()).Info("Transaction created", "transactionID", tx.ID, "type", tx.Kind)
	sendJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var in services.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tx, err := h.ledger.UpdateTransaction(r.Context(), owner, chi.URLParam(r, "id"), in)
	if err != nil {
		sendServiceError(w, r, err, "Failed to update transaction")
		return
	}
	sendJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteTransaction(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		sendServiceError(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	sum, err := h.ledger.Summary(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to compute summary")
		return
	}
	sendJSON(w, http.StatusOK, sum)
}

func (h *TransactionHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	tf, err := ledger.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		sendServiceError(w, r, err, "Invalid timeframe")
		return
	}
	points, err := h.ledger.Timeline(r.Context(), owner, tf)
	if err != nil {
		sendServiceError(w, r, err, "Failed to compute timeline")
		return
	}
	sendJSON(w, http.StatusOK, points)
}

func (h *TransactionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	st, err := h.ledger.Stats(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to compute stats")
		return
	}
	sendJSON(w, http.StatusOK, st)
}

func (h *TransactionHandler) HandleSpending(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	sp, err := h.ledger.Spending(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to compute spending")
		return
	}
	sendJSON(w, http.StatusOK, sp)
}

func (h *TransactionHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, ledger.DefaultCategories())
}

// HandleExportTransactions streams the caller's transactions as CSV.
// Text cells are guarded against spreadsheet formula injection.
func (h *TransactionHandler) HandleExportTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.Transactions(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to export transactions")
		return
	}

	filename := fmt.Sprintf("transactions_%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write([]string{"Date", "Type", "Category", "Description", "Amount"})
	for _, tx := range txs {
		cw.Write([]string{
			tx.OccurredAt.Format(validation.DateLayout),
			string(tx.Kind),
			validation.SanitizeForFormulaInjection(tx.Category),
			validation.SanitizeForFormulaInjection(tx.Description),
			tx.Amount.StringFixed(2),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.FromContext(r.Context()).Error("Failed to write CSV export", "error", err)
	}
}
