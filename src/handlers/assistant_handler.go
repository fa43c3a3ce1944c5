package handlers

import (
	"net/http"

	"github.com/username/finwatch/src/services"
)

type AssistantHandler struct {
	assistant *services.AssistantService
}

func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// HandleInsight returns the spending commentary for the caller.
func (h *AssistantHandler) HandleInsight(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	insight, err := h.assistant.Insight(r.Context(), owner)
	if err != nil {
		sendServiceError(w, r, err, "Failed to generate insight")
		return
	}
	sendJSON(w, http.StatusOK, insight)
}
