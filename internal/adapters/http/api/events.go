// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/craneyu/YILan-JJGAME/internal/app"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// EventsHandler handles event and roster administration plus the
// per-event read models.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleCreateEvent handles POST /api/events requests.
func (h *EventsHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	e, err := h.deps.CreateEvent(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleListEvents handles GET /api/events requests. ?open=true hides
// closed events.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") == "true"
	events, err := h.deps.ListEvents(r.Context(), openOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleGetEvent handles GET /api/events/{id} requests.
func (h *EventsHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleUpdateEvent handles PATCH /api/events/{id} requests.
func (h *EventsHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateEventInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	e, err := h.deps.UpdateEvent(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleSummary handles GET /api/events/{id}/summary requests.
func (h *EventsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleRankings handles GET /api/events/{id}/rankings requests.
// ?category=male|female|mixed filters and sorts best first.
func (h *EventsHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	entries, err := h.deps.Rankings(r.Context(), r.PathValue("id"), category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleListTeams handles GET /api/events/{id}/teams requests.
func (h *EventsHandler) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing event id"))
		return
	}
	teams, err := h.deps.ListTeams(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleCreateTeam handles POST /api/teams requests.
func (h *EventsHandler) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTeamInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	t, err := h.deps.CreateTeam(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
