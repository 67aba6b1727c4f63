// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/craneyu/YILan-JJGAME/internal/adapters/broadcast"
	service "github.com/craneyu/YILan-JJGAME/internal/app"
	"github.com/craneyu/YILan-JJGAME/internal/domain/flow"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Event administration.
	CreateEvent(ctx context.Context, in service.CreateEventInput) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, openOnly bool) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, in service.UpdateEventInput) (model.Event, error)
	CreateTeam(ctx context.Context, in service.CreateTeamInput) (model.Team, error)
	ListTeams(ctx context.Context, eventID string) ([]model.Team, error)

	// Flow commands and queries.
	FlowState(ctx context.Context, eventID string) (model.FlowState, error)
	OpenAction(ctx context.Context, eventID, teamID string, round int, actionNo string) (model.FlowState, error)
	AdvanceGroup(ctx context.Context, eventID string) (flow.AdvanceResult, error)
	SetAbstain(ctx context.Context, eventID string) (model.FlowState, error)
	CancelAbstain(ctx context.Context, eventID string) (model.FlowState, error)

	// Submissions.
	SubmitScore(ctx context.Context, in flow.SubmitScoreInput) (model.Score, *model.ActionResult, error)
	SubmitVariety(ctx context.Context, in flow.SubmitVarietyInput) (model.VRScore, error)
	MyScores(ctx context.Context, eventID, judgeID string) ([]model.Score, error)

	// Read models.
	Summarize(ctx context.Context, eventID string) (service.Summary, error)
	Rankings(ctx context.Context, eventID string, category model.Category) ([]model.RankingEntry, error)

	// Live stream.
	Subscribe(ctx context.Context, eventID string) (<-chan broadcast.Notice, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	auth          *Auth
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	eventsHandler *EventsHandler
	flowHandler   *FlowHandler
	scoresHandler *ScoresHandler
	streamHandler *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, auth *Auth) *Server {
	return &Server{
		auth:          auth,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		eventsHandler: NewEventsHandler(deps),
		flowHandler:   NewFlowHandler(deps),
		scoresHandler: NewScoresHandler(deps),
		streamHandler: NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/events",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleCreateEvent, RoleAdmin), "events"))
	mux.HandleFunc("GET /api/events",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleListEvents), "events"))
	mux.HandleFunc("GET /api/events/{id}",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleGetEvent), "event"))
	mux.HandleFunc("PATCH /api/events/{id}",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleUpdateEvent, RoleAdmin), "event"))
	mux.HandleFunc("GET /api/events/{id}/summary",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleSummary), "summary"))
	mux.HandleFunc("GET /api/events/{id}/rankings",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleRankings), "rankings"))
	mux.HandleFunc("GET /api/events/{id}/teams",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleListTeams), "teams"))
	mux.HandleFunc("GET /api/events/{id}/stream",
		MetricsMiddleware(s.auth.Require(s.streamHandler.HandleStream), "stream"))
	mux.HandleFunc("POST /api/teams",
		MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleCreateTeam, RoleAdmin), "teams"))

	mux.HandleFunc("GET /api/flow/{eventID}",
		MetricsMiddleware(s.auth.Require(s.flowHandler.HandleGetState), "flow"))
	mux.HandleFunc("POST /api/flow/open",
		MetricsMiddleware(s.auth.Require(s.flowHandler.HandleOpenAction, RoleAdmin, RoleSequence), "flow_open"))
	mux.HandleFunc("POST /api/flow/next",
		MetricsMiddleware(s.auth.Require(s.flowHandler.HandleAdvanceGroup, RoleAdmin, RoleSequence), "flow_next"))
	mux.HandleFunc("POST /api/flow/abstain",
		MetricsMiddleware(s.auth.Require(s.flowHandler.HandleAbstain, RoleAdmin, RoleSequence), "flow_abstain"))
	mux.HandleFunc("POST /api/flow/abstain/cancel",
		MetricsMiddleware(s.auth.Require(s.flowHandler.HandleCancelAbstain, RoleAdmin, RoleSequence), "flow_abstain"))

	mux.HandleFunc("POST /api/scores",
		MetricsMiddleware(s.auth.Require(s.scoresHandler.HandleSubmitScore, RoleJudge), "scores"))
	mux.HandleFunc("GET /api/scores/mine",
		MetricsMiddleware(s.auth.Require(s.scoresHandler.HandleMyScores, RoleJudge), "scores"))
	mux.HandleFunc("POST /api/vr-scores",
		MetricsMiddleware(s.auth.Require(s.scoresHandler.HandleSubmitVariety, RoleVR), "vr_scores"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, flow.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, flow.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, flow.ErrPermission):
		writeError(w, http.StatusForbidden, "forbidden", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
