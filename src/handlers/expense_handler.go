package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/username/finwatch/src/services"
)

type ExpenseHandler struct {
	ledger *services.LedgerService
}

func NewExpenseHandler(ledgerService *services.LedgerService) *ExpenseHandler {
	return &ExpenseHandler{ledger: ledgerService}
}

func (h *ExpenseHandler) HandleListExpenses(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	expenses, err := h.ledger.Expenses(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve expenses")
		return
	}
	sendJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) HandleCreateExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var in services.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e, err := h.ledger.AddExpense(r.Context(), owner, in)
	if err != nil {
		sendServiceError(w, r, err, "Failed to create expense")
		return
	}
	sendJSON(w, http.StatusCreated, e)
}

func (h *ExpenseHandler) HandleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	var in services.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e, err := h.ledger.UpdateExpense(r.Context(), owner, chi.URLParam(r, "id"), in)
	if err != nil {
		sendServiceError(w, r, err, "Failed to update expense")
		return
	}
	sendJSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) HandleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteExpense(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		sendServiceError(w, r, err, "Failed to delete expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
