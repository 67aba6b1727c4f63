// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/craneyu/YILan-JJGAME/internal/domain/flow"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// ScoresHandler handles judge and variety-judge submissions.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the body of POST /api/scores. The judge identity
// and seat come from the verified token, never from the body.
type scoreRequest struct {
	EventID  string           `json:"event_id"`
	TeamID   string           `json:"team_id"`
	Round    int              `json:"round"`
	ActionNo string           `json:"action_no"`
	Seat     *int             `json:"judge_no,omitempty"`
	Items    model.ScoreItems `json:"items"`
}

// scoreResponse acknowledges a submission. Result is set only when this
// submission completed the quorum and closed the action.
type scoreResponse struct {
	Score  model.Score         `json:"score"`
	Result *model.ActionResult `json:"result,omitempty"`
}

// HandleSubmitScore handles POST /api/scores requests.
func (h *ScoresHandler) HandleSubmitScore(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Seat != nil && *req.Seat != claims.Seat {
		writeDomainError(w, fmt.Errorf("%w: token is for seat %d", flow.ErrSeatMismatch, claims.Seat))
		return
	}
	score, result, err := h.deps.SubmitScore(r.Context(), flow.SubmitScoreInput{
		EventID:  req.EventID,
		TeamID:   req.TeamID,
		Round:    req.Round,
		ActionNo: req.ActionNo,
		JudgeID:  claims.UserID,
		Seat:     claims.Seat,
		Items:    req.Items,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scoreResponse{Score: score, Result: result})
}

// HandleMyScores handles GET /api/scores/mine requests. It returns the
// calling judge's submissions for the current team and round.
func (h *ScoresHandler) HandleMyScores(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing event_id"))
		return
	}
	scores, err := h.deps.MyScores(r.Context(), eventID, claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// varietyRequest mirrors the body of POST /api/vr-scores.
type varietyRequest struct {
	EventID       string `json:"event_id"`
	TeamID        string `json:"team_id"`
	Round         int    `json:"round"`
	ThrowVariety  int    `json:"throw_variety"`
	GroundVariety int    `json:"ground_variety"`
}

// HandleSubmitVariety handles POST /api/vr-scores requests.
func (h *ScoresHandler) HandleSubmitVariety(w http.ResponseWriter, r *http.Request) {
	var req varietyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	vr, err := h.deps.SubmitVariety(r.Context(), flow.SubmitVarietyInput{
		EventID:       req.EventID,
		TeamID:        req.TeamID,
		Round:         req.Round,
		ThrowVariety:  req.ThrowVariety,
		GroundVariety: req.GroundVariety,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vr)
}
