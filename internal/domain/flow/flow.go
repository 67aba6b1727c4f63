// Package flow owns the competition flow state machine: it gates when
// judges may score, closes actions once all five seats have submitted,
// gates group advancement on the variety score, and walks teams and
// rounds to the terminal event-complete state.
//
// Every mutation of the per-event flow state goes through a named
// transition on Machine. Transitions for one event are serialized by a
// per-event mutex, so the read-validate-write of each transition is one
// logical step; the version check in the flow store backstops callers
// that bypass the machine.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/craneyu/YILan-JJGAME/internal/adapters/repository"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/internal/domain/scoring"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
	"github.com/craneyu/YILan-JJGAME/pkg/metrics"
)

// StateStore is the slice of persistence the machine needs for flow
// state.
type StateStore interface {
	GetFlowState(ctx context.Context, eventID string) (model.FlowState, error)
	SaveFlowState(ctx context.Context, st model.FlowState) (model.FlowState, error)
}

// Roster is the read-only team lookup the machine sequences with.
type Roster interface {
	GetTeam(ctx context.Context, id string) (model.Team, error)
	NextTeamByOrder(ctx context.Context, eventID string, after int) (model.Team, error)
	FirstTeamByOrder(ctx context.Context, eventID string) (model.Team, error)
}

// Ledger records judge submissions and answers quorum queries.
type Ledger interface {
	CreateScore(ctx context.Context, s *model.Score) error
	CountScores(ctx context.Context, eventID, teamID string, round int, actionNo string) (int, error)
	ListScores(ctx context.Context, eventID, teamID string, round int, actionNo string) ([]model.Score, error)
}

// VarietyStore upserts and reads variety scores.
type VarietyStore interface {
	PutVRScore(ctx context.Context, v model.VRScore) error
	GetVRScore(ctx context.Context, eventID, teamID string, round int) (model.VRScore, error)
}

// Publisher pushes notices to event observers.
type Publisher interface {
	Publish(ctx context.Context, eventID, name string, payload any)
}

// Machine drives all flow transitions for every event.
type Machine struct {
	states  StateStore
	roster  Roster
	ledger  Ledger
	variety VarietyStore
	pub     Publisher
	logger  logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets a custom logger for the machine.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine wires the state machine to its collaborators.
func NewMachine(states StateStore, roster Roster, ledger Ledger, variety VarietyStore, pub Publisher, opts ...Option) *Machine {
	m := &Machine{
		states:  states,
		roster:  roster,
		ledger:  ledger,
		variety: variety,
		pub:     pub,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("flow")
	}
	return m
}

// lockEvent serializes transitions per event id and returns the unlock.
func (m *Machine) lockEvent(eventID string) func() {
	m.mu.Lock()
	l, ok := m.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[eventID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// State returns the current flow state for an event.
func (m *Machine) State(ctx context.Context, eventID string) (model.FlowState, error) {
	st, err := m.states.GetFlowState(ctx, eventID)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}
	return st, nil
}

// OpenAction opens one action for judge submission. Allowed from idle
// and action_closed only; an already-open action, an abstained team, or
// a completed event reject the command.
func (m *Machine) OpenAction(ctx context.Context, eventID, teamID string, round int, actionNo string) (model.FlowState, error) {
	if eventID == "" || teamID == "" || actionNo == "" {
		return model.FlowState{}, fmt.Errorf("%w: event, team and action are required", ErrValidation)
	}
	if !model.ValidRound(round) {
		return model.FlowState{}, fmt.Errorf("%w: round %d out of range", ErrValidation, round)
	}

	team, err := m.roster.GetTeam(ctx, teamID)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}
	if team.EventID != eventID {
		return model.FlowState{}, fmt.Errorf("%w: team %s does not belong to event %s", ErrValidation, teamID, eventID)
	}
	if !model.ValidActionNo(actionNo, round, team.Category) {
		return model.FlowState{}, fmt.Errorf("%w: action %s is not in round %d for category %s", ErrValidation, actionNo, round, team.Category)
	}

	defer m.lockEvent(eventID)()

	st, err := m.states.GetFlowState(ctx, eventID)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}
	switch {
	case st.Status == model.StatusEventComplete:
		return model.FlowState{}, ErrEventComplete
	case st.Open:
		return model.FlowState{}, ErrActionAlreadyOpen
	case st.Abstained && st.TeamID == teamID:
		return model.FlowState{}, ErrTeamAbstained
	case st.Status != model.StatusIdle && st.Status != model.StatusActionClosed:
		return model.FlowState{}, fmt.Errorf("%w: cannot open an action while %s", ErrConflict, st.Status)
	}

	st.TeamID = teamID
	st.Round = round
	st.ActionNo = actionNo
	st.Open = true
	st.Abstained = false
	st.Status = model.StatusActionOpen

	st, err = m.states.SaveFlowState(ctx, st)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}

	metrics.RecordActionOpened()
	m.logger.Info(ctx, "action opened",
		logger.String("event_id", eventID),
		logger.String("team_id", teamID),
		logger.Int("round", round),
		logger.String("action_no", actionNo),
	)
	m.pub.Publish(ctx, eventID, NoticeActionOpened,
		ActionOpenedPayload{EventID: eventID, TeamID: teamID, Round: round, ActionNo: actionNo})
	return st, nil
}

// SubmitScoreInput carries one judge submission.
type SubmitScoreInput struct {
	EventID  string
	TeamID   string
	Round    int
	ActionNo string
	JudgeID  string
	Seat     int
	Items    model.ScoreItems
}

func (in SubmitScoreInput) validate() error {
	switch {
	case in.EventID == "" || in.TeamID == "" || in.ActionNo == "" || in.JudgeID == "":
		return fmt.Errorf("%w: event, team, action and judge are required", ErrValidation)
	case !model.ValidRound(in.Round):
		return fmt.Errorf("%w: round %d out of range", ErrValidation, in.Round)
	case !model.ValidSeat(in.Seat):
		return fmt.Errorf("%w: seat %d out of range", ErrValidation, in.Seat)
	}
	for key, v := range in.Items.Values() {
		if v < model.MinItemScore || v > model.MaxItemScore {
			return fmt.Errorf("%w: item %s value %d out of range", ErrValidation, key, v)
		}
	}
	return nil
}

// SubmitScore records one judge's rating for the currently open action.
// The fifth recorded submission closes the action and returns the
// calculated result; earlier submissions return a nil result.
func (m *Machine) SubmitScore(ctx context.Context, in SubmitScoreInput) (model.Score, *model.ActionResult, error) {
	if err := in.validate(); err != nil {
		return model.Score{}, nil, err
	}

	defer m.lockEvent(in.EventID)()

	st, err := m.states.GetFlowState(ctx, in.EventID)
	if err != nil {
		return model.Score{}, nil, translateStoreErr(err)
	}
	if !st.Open || st.ActionNo != in.ActionNo || st.TeamID != in.TeamID || st.Round != in.Round {
		return model.Score{}, nil, ErrActionNotOpen
	}

	score := model.Score{
		EventID:  in.EventID,
		TeamID:   in.TeamID,
		Round:    in.Round,
		ActionNo: in.ActionNo,
		JudgeID:  in.JudgeID,
		Seat:     in.Seat,
		Items:    in.Items,
	}
	if err := m.ledger.CreateScore(ctx, &score); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.RecordScoreDuplicate()
			return model.Score{}, nil, fmt.Errorf("%w (%s)", ErrDuplicateScore, in.ActionNo)
		}
		return model.Score{}, nil, fmt.Errorf("recording score: %w", err)
	}

	metrics.RecordScoreSubmitted()
	m.pub.Publish(ctx, in.EventID, NoticeScoreSubmitted, ScoreSubmittedPayload{
		JudgeID:  in.JudgeID,
		Seat:     in.Seat,
		TeamID:   in.TeamID,
		Round:    in.Round,
		ActionNo: in.ActionNo,
		Items:    in.Items,
	})

	result, err := m.closeOnQuorum(ctx, st)
	if err != nil {
		return model.Score{}, nil, err
	}
	return score, result, nil
}

// closeOnQuorum closes the open action once all seats have submitted.
// Closing an already-closed action is a no-op, so a duplicate trigger
// is harmless. Must run under the event lock.
func (m *Machine) closeOnQuorum(ctx context.Context, st model.FlowState) (*model.ActionResult, error) {
	if !st.Open {
		return nil, nil
	}
	count, err := m.ledger.CountScores(ctx, st.EventID, st.TeamID, st.Round, st.ActionNo)
	if err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}
	if count < model.Quorum {
		return nil, nil
	}

	scores, err := m.ledger.ListScores(ctx, st.EventID, st.TeamID, st.Round, st.ActionNo)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	result, ok := scoring.Calculate(st.ActionNo, scoring.FromScores(scores))
	if !ok {
		return nil, fmt.Errorf("%w: quorum reached but result not computable", ErrConflict)
	}

	st.Open = false
	st.Status = model.StatusActionClosed
	if _, err := m.states.SaveFlowState(ctx, st); err != nil {
		return nil, translateStoreErr(err)
	}

	metrics.RecordActionClosed()
	m.logger.Info(ctx, "action closed on quorum",
		logger.String("event_id", st.EventID),
		logger.String("action_no", st.ActionNo),
		logger.Int("total", result.Total),
	)
	m.pub.Publish(ctx, st.EventID, NoticeScoreCalculated, ScoreCalculatedPayload{
		TeamID:   st.TeamID,
		Round:    st.Round,
		ActionNo: st.ActionNo,
		Items:    result.Items,
		Total:    result.Total,
	})
	return &result, nil
}

// SubmitVarietyInput carries the variety judge's per-round rating.
type SubmitVarietyInput struct {
	EventID       string
	TeamID        string
	Round         int
	ThrowVariety  int
	GroundVariety int
}

func (in SubmitVarietyInput) validate() error {
	switch {
	case in.EventID == "" || in.TeamID == "":
		return fmt.Errorf("%w: event and team are required", ErrValidation)
	case !model.ValidRound(in.Round):
		return fmt.Errorf("%w: round %d out of range", ErrValidation, in.Round)
	}
	for _, v := range []int{in.ThrowVariety, in.GroundVariety} {
		if v < model.MinVariety || v > model.MaxVariety {
			return fmt.Errorf("%w: variety value %d out of range", ErrValidation, v)
		}
	}
	return nil
}

// SubmitVariety upserts the variety score for a team's round. It is
// only accepted once every action of that round has full quorum. When
// the submission targets the current team and round, the flow moves to
// series_complete.
func (m *Machine) SubmitVariety(ctx context.Context, in SubmitVarietyInput) (model.VRScore, error) {
	if err := in.validate(); err != nil {
		return model.VRScore{}, err
	}

	team, err := m.roster.GetTeam(ctx, in.TeamID)
	if err != nil {
		return model.VRScore{}, translateStoreErr(err)
	}
	if team.EventID != in.EventID {
		return model.VRScore{}, fmt.Errorf("%w: team %s does not belong to event %s", ErrValidation, in.TeamID, in.EventID)
	}

	defer m.lockEvent(in.EventID)()

	for _, actionNo := range model.ActionsForRound(in.Round, team.Category) {
		count, err := m.ledger.CountScores(ctx, in.EventID, in.TeamID, in.Round, actionNo)
		if err != nil {
			return model.VRScore{}, fmt.Errorf("counting scores: %w", err)
		}
		if count < model.Quorum {
			return model.VRScore{}, fmt.Errorf("%w: %s has %d/%d submissions", ErrSeriesIncomplete, actionNo, count, model.Quorum)
		}
	}

	vr := model.VRScore{
		EventID:       in.EventID,
		TeamID:        in.TeamID,
		Round:         in.Round,
		ThrowVariety:  in.ThrowVariety,
		GroundVariety: in.GroundVariety,
	}
	if err := m.variety.PutVRScore(ctx, vr); err != nil {
		return model.VRScore{}, fmt.Errorf("storing variety score: %w", err)
	}

	st, err := m.states.GetFlowState(ctx, in.EventID)
	if err != nil {
		return model.VRScore{}, translateStoreErr(err)
	}
	if st.TeamID == in.TeamID && st.Round == in.Round && st.Status != model.StatusEventComplete {
		st.Status = model.StatusSeriesComplete
		if _, err := m.states.SaveFlowState(ctx, st); err != nil {
			return model.VRScore{}, translateStoreErr(err)
		}
	}

	metrics.RecordVarietySubmitted()
	m.pub.Publish(ctx, in.EventID, NoticeVRSubmitted, VRSubmittedPayload{
		TeamID:        in.TeamID,
		Round:         in.Round,
		ThrowVariety:  in.ThrowVariety,
		GroundVariety: in.GroundVariety,
	})
	return vr, nil
}

// AdvanceResult reports where the flow moved after AdvanceGroup.
type AdvanceResult struct {
	NextTeamID string `json:"next_team_id,omitempty"`
	Round      int    `json:"round"`
	Complete   bool   `json:"complete"`
}

// AdvanceGroup moves the flow to the next team in display order, or to
// the next round's first team, or to event_complete after the last team
// of round three. Without an abstained team the current team's variety
// score must already be recorded.
func (m *Machine) AdvanceGroup(ctx context.Context, eventID string) (AdvanceResult, error) {
	if eventID == "" {
		return AdvanceResult{}, fmt.Errorf("%w: event is required", ErrValidation)
	}

	defer m.lockEvent(eventID)()

	st, err := m.states.GetFlowState(ctx, eventID)
	if err != nil {
		return AdvanceResult{}, translateStoreErr(err)
	}
	if st.Status == model.StatusEventComplete {
		return AdvanceResult{}, ErrEventComplete
	}
	if st.TeamID == "" {
		return AdvanceResult{}, ErrNoCurrentTeam
	}

	// Abstained teams skip the variety gate entirely.
	if !st.Abstained {
		if _, err := m.variety.GetVRScore(ctx, eventID, st.TeamID, st.Round); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return AdvanceResult{}, ErrVarietyPending
			}
			return AdvanceResult{}, fmt.Errorf("reading variety score: %w", err)
		}
	}

	cur, err := m.roster.GetTeam(ctx, st.TeamID)
	if err != nil {
		return AdvanceResult{}, translateStoreErr(err)
	}

	next, err := m.roster.NextTeamByOrder(ctx, eventID, cur.Order)
	switch {
	case err == nil:
		// Same round, next team up.
		st.TeamID = next.ID
		st.ActionNo = ""
		st.Open = false
		st.Abstained = false
		st.Status = model.StatusIdle
		if st, err = m.states.SaveFlowState(ctx, st); err != nil {
			return AdvanceResult{}, translateStoreErr(err)
		}
		metrics.RecordGroupAdvanced()
		m.pub.Publish(ctx, eventID, NoticeGroupChanged,
			GroupChangedPayload{NextTeamID: next.ID, Round: st.Round})
		return AdvanceResult{NextTeamID: next.ID, Round: st.Round}, nil

	case !errors.Is(err, repository.ErrNotFound):
		return AdvanceResult{}, fmt.Errorf("finding next team: %w", err)
	}

	if st.Round >= model.MaxRound {
		// Last team of the last round: the event is over.
		st.Open = false
		st.Status = model.StatusEventComplete
		if _, err := m.states.SaveFlowState(ctx, st); err != nil {
			return AdvanceResult{}, translateStoreErr(err)
		}
		metrics.RecordEventCompleted()
		m.logger.Info(ctx, "event complete", logger.String("event_id", eventID))
		m.pub.Publish(ctx, eventID, NoticeRoundChanged, RoundChangedPayload{Round: 0})
		return AdvanceResult{Round: 0, Complete: true}, nil
	}

	first, err := m.roster.FirstTeamByOrder(ctx, eventID)
	if err != nil {
		return AdvanceResult{}, translateStoreErr(err)
	}
	st.Round++
	st.TeamID = first.ID
	st.ActionNo = ""
	st.Open = false
	st.Abstained = false
	st.Status = model.StatusIdle
	if st, err = m.states.SaveFlowState(ctx, st); err != nil {
		return AdvanceResult{}, translateStoreErr(err)
	}
	metrics.RecordGroupAdvanced()
	m.logger.Info(ctx, "round advanced",
		logger.String("event_id", eventID),
		logger.Int("round", st.Round),
	)
	m.pub.Publish(ctx, eventID, NoticeRoundChanged, RoundChangedPayload{Round: st.Round})
	m.pub.Publish(ctx, eventID, NoticeGroupChanged,
		GroupChangedPayload{NextTeamID: first.ID, Round: st.Round})
	return AdvanceResult{NextTeamID: first.ID, Round: st.Round}, nil
}

// SetAbstain marks the current team as abstaining. Any in-flight action
// is voided; already-recorded scores are kept.
func (m *Machine) SetAbstain(ctx context.Context, eventID string) (model.FlowState, error) {
	if eventID == "" {
		return model.FlowState{}, fmt.Errorf("%w: event is required", ErrValidation)
	}

	defer m.lockEvent(eventID)()

	st, err := m.states.GetFlowState(ctx, eventID)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}
	if st.Status == model.StatusEventComplete {
		return model.FlowState{}, ErrEventComplete
	}
	if st.TeamID == "" {
		return model.FlowState{}, ErrNoCurrentTeam
	}

	st.Abstained = true
	st.Open = false
	if st.Status == model.StatusActionOpen {
		st.ActionNo = ""
		st.Status = model.StatusIdle
	}
	if st, err = m.states.SaveFlowState(ctx, st); err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}

	m.pub.Publish(ctx, eventID, NoticeTeamAbstained, AbstainPayload{TeamID: st.TeamID})
	return st, nil
}

// CancelAbstain clears the abstain flag on the current team.
func (m *Machine) CancelAbstain(ctx context.Context, eventID string) (model.FlowState, error) {
	if eventID == "" {
		return model.FlowState{}, fmt.Errorf("%w: event is required", ErrValidation)
	}

	defer m.lockEvent(eventID)()

	st, err := m.states.GetFlowState(ctx, eventID)
	if err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}
	if st.Status == model.StatusEventComplete {
		return model.FlowState{}, ErrEventComplete
	}
	if st.TeamID == "" {
		return model.FlowState{}, ErrNoCurrentTeam
	}

	st.Abstained = false
	if st, err = m.states.SaveFlowState(ctx, st); err != nil {
		return model.FlowState{}, translateStoreErr(err)
	}

	m.pub.Publish(ctx, eventID, NoticeTeamAbstainCancelled, AbstainPayload{TeamID: st.TeamID})
	return st, nil
}

// translateStoreErr maps repository sentinels onto the transition error
// taxonomy.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrStaleState):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
