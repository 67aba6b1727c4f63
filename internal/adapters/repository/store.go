// Package repository defines the persistence interfaces and errors for
// events, teams, judge scores, variety scores and flow state.
//
// The invariants the flow layer relies on live here: the score ledger
// rejects a second submission for the same (event, team, round, action,
// judge) atomically, variety scores upsert on (event, team, round), and
// flow-state writes are version-checked so a stale transition is
// detected rather than applied twice.
package repository

import (
	"context"

	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// EventStore provides access to competition events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	// ListEvents returns events newest first. When openOnly is set,
	// closed events are excluded so they stop being offered to new
	// observers.
	ListEvents(ctx context.Context, openOnly bool) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) error
}

// TeamStore provides read-mostly access to the roster. The flow layer
// never edits teams; it only reads category and order.
type TeamStore interface {
	CreateTeam(ctx context.Context, t *model.Team) error
	GetTeam(ctx context.Context, id string) (model.Team, error)
	// ListTeams returns an event's teams ordered by display order.
	ListTeams(ctx context.Context, eventID string) ([]model.Team, error)
	// NextTeamByOrder returns the team with the smallest order strictly
	// greater than after, or ErrNotFound when none exists.
	NextTeamByOrder(ctx context.Context, eventID string, after int) (model.Team, error)
	// FirstTeamByOrder returns the team with the smallest order.
	FirstTeamByOrder(ctx context.Context, eventID string) (model.Team, error)
}

// ScoreStore is the submission ledger. CreateScore enforces the
// one-score-per-judge-per-action invariant atomically: two concurrent
// submissions with the same key yield one stored record and one
// ErrDuplicate, regardless of arrival order.
type ScoreStore interface {
	CreateScore(ctx context.Context, s *model.Score) error
	CountScores(ctx context.Context, eventID, teamID string, round int, actionNo string) (int, error)
	ListScores(ctx context.Context, eventID, teamID string, round int, actionNo string) ([]model.Score, error)
	ListScoresByEvent(ctx context.Context, eventID string) ([]model.Score, error)
	// ListScoresByJudge returns one judge's scores for a team and
	// round, used by clients reconstructing their submission history.
	ListScoresByJudge(ctx context.Context, eventID, teamID string, round int, judgeID string) ([]model.Score, error)
}

// VRScoreStore holds variety scores keyed by (event, team, round).
// PutVRScore replaces any prior record for the key.
type VRScoreStore interface {
	PutVRScore(ctx context.Context, v model.VRScore) error
	GetVRScore(ctx context.Context, eventID, teamID string, round int) (model.VRScore, error)
	ListVRScores(ctx context.Context, eventID string) ([]model.VRScore, error)
}

// FlowStateStore persists the per-event flow state. SaveFlowState
// performs a version check-and-set: writing a state whose Version does
// not match the stored one fails with ErrStaleState.
type FlowStateStore interface {
	CreateFlowState(ctx context.Context, eventID string) (model.FlowState, error)
	GetFlowState(ctx context.Context, eventID string) (model.FlowState, error)
	SaveFlowState(ctx context.Context, st model.FlowState) (model.FlowState, error)
}

// Store bundles every persistence concern the service wires together.
type Store interface {
	EventStore
	TeamStore
	ScoreStore
	VRScoreStore
	FlowStateStore
}
