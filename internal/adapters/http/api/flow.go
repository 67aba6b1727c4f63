// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// FlowHandler handles flow command and query requests.
type FlowHandler struct {
	deps Dependencies
}

// NewFlowHandler creates a new flow handler.
func NewFlowHandler(deps Dependencies) *FlowHandler {
	return &FlowHandler{deps: deps}
}

// HandleGetState handles GET /api/flow/{eventID} requests.
func (h *FlowHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing event id"))
		return
	}
	st, err := h.deps.FlowState(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// openActionRequest mirrors the body of POST /api/flow/open.
type openActionRequest struct {
	EventID  string `json:"event_id"`
	TeamID   string `json:"team_id"`
	Round    int    `json:"round"`
	ActionNo string `json:"action_no"`
}

// HandleOpenAction handles POST /api/flow/open requests.
func (h *FlowHandler) HandleOpenAction(w http.ResponseWriter, r *http.Request) {
	var req openActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, err := h.deps.OpenAction(r.Context(), req.EventID, req.TeamID, req.Round, req.ActionNo)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type eventIDRequest struct {
	EventID string `json:"event_id"`
}

// HandleAdvanceGroup handles POST /api/flow/next requests.
func (h *FlowHandler) HandleAdvanceGroup(w http.ResponseWriter, r *http.Request) {
	var req eventIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	res, err := h.deps.AdvanceGroup(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAbstain handles POST /api/flow/abstain requests.
func (h *FlowHandler) HandleAbstain(w http.ResponseWriter, r *http.Request) {
	var req eventIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, err := h.deps.SetAbstain(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCancelAbstain handles POST /api/flow/abstain/cancel requests.
func (h *FlowHandler) HandleCancelAbstain(w http.ResponseWriter, r *http.Request) {
	var req eventIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, err := h.deps.CancelAbstain(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
