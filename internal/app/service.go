// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/craneyu/YILan-JJGAME/internal/adapters/broadcast"
	"github.com/craneyu/YILan-JJGAME/internal/adapters/repository"
	"github.com/craneyu/YILan-JJGAME/internal/domain/flow"
	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/internal/domain/ranking"
	"github.com/craneyu/YILan-JJGAME/internal/domain/scoring"
	"github.com/craneyu/YILan-JJGAME/pkg/logger"
)

// Service wires the store, the flow machine, the ranking engine and the
// broadcast hub behind one facade for the HTTP layer.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	machine  *flow.Machine
	rankings *ranking.Engine
	hub      *broadcast.Hub

	// Configuration
	streamBuffer int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStreamBuffer sets the per-subscriber notice channel capacity.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// WithStore replaces the default in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		streamBuffer: 64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting scoring service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.hub = broadcast.NewHub(
		broadcast.WithBuffer(s.streamBuffer),
		broadcast.WithLogger(s.logger.Named("broadcast")),
	)
	s.machine = flow.NewMachine(s.store, s.store, s.store, s.store, s.hub,
		flow.WithLogger(s.logger.Named("flow")),
	)
	s.rankings = ranking.NewEngine(s.store)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("streamBuffer", s.streamBuffer),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping scoring service...")

	if s.hub != nil {
		_ = s.hub.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "scoring service stopped")
}

// CreateEventInput carries admin-supplied event fields.
type CreateEventInput struct {
	Name  string     `json:"name"`
	Date  *time.Time `json:"date,omitempty"`
	Venue string     `json:"venue,omitempty"`
}

// CreateEvent registers a new competition event together with its flow
// state, so the event is ready for judging the moment it exists.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	if in.Name == "" {
		return model.Event{}, fmt.Errorf("%w: name is required", flow.ErrValidation)
	}
	e := model.Event{
		Name:   in.Name,
		Date:   in.Date,
		Venue:  in.Venue,
		Status: model.EventPending,
	}
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return model.Event{}, fmt.Errorf("creating event: %w", err)
	}
	if _, err := s.store.CreateFlowState(ctx, e.ID); err != nil {
		return model.Event{}, fmt.Errorf("creating flow state: %w", err)
	}
	s.logger.Info(ctx, "event created",
		logger.String("event_id", e.ID),
		logger.String("name", e.Name),
	)
	return e, nil
}

// GetEvent returns one event by id.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, s.notFound(err, "event %s", id)
	}
	return e, nil
}

// ListEvents returns events newest first, optionally hiding closed ones.
func (s *Service) ListEvents(ctx context.Context, openOnly bool) ([]model.Event, error) {
	return s.store.ListEvents(ctx, openOnly)
}

// UpdateEventInput patches event fields. Nil fields stay untouched.
type UpdateEventInput struct {
	Name   *string            `json:"name,omitempty"`
	Date   *time.Time         `json:"date,omitempty"`
	Venue  *string            `json:"venue,omitempty"`
	Status *model.EventStatus `json:"status,omitempty"`
}

// UpdateEvent applies a partial update to an event.
func (s *Service) UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, s.notFound(err, "event %s", id)
	}
	if in.Name != nil {
		e.Name = *in.Name
	}
	if in.Date != nil {
		e.Date = in.Date
	}
	if in.Venue != nil {
		e.Venue = *in.Venue
	}
	if in.Status != nil {
		switch *in.Status {
		case model.EventPending, model.EventActive, model.EventClosed:
			e.Status = *in.Status
		default:
			return model.Event{}, fmt.Errorf("%w: unknown status %q", flow.ErrValidation, *in.Status)
		}
	}
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return model.Event{}, fmt.Errorf("updating event: %w", err)
	}
	return e, nil
}

// CreateTeamInput carries admin-supplied roster fields.
type CreateTeamInput struct {
	EventID  string         `json:"event_id"`
	Name     string         `json:"name"`
	Members  []string       `json:"members"`
	Category model.Category `json:"category"`
	Order    int            `json:"order"`
}

// CreateTeam adds a team to an event's roster.
func (s *Service) CreateTeam(ctx context.Context, in CreateTeamInput) (model.Team, error) {
	switch {
	case in.EventID == "" || in.Name == "":
		return model.Team{}, fmt.Errorf("%w: event and name are required", flow.ErrValidation)
	case !in.Category.Valid():
		return model.Team{}, fmt.Errorf("%w: unknown category %q", flow.ErrValidation, in.Category)
	case in.Order < 0:
		return model.Team{}, fmt.Errorf("%w: order must not be negative", flow.ErrValidation)
	}
	if _, err := s.store.GetEvent(ctx, in.EventID); err != nil {
		return model.Team{}, s.notFound(err, "event %s", in.EventID)
	}
	t := model.Team{
		EventID:  in.EventID,
		Name:     in.Name,
		Members:  in.Members,
		Category: in.Category,
		Order:    in.Order,
	}
	if err := s.store.CreateTeam(ctx, &t); err != nil {
		return model.Team{}, fmt.Errorf("creating team: %w", err)
	}
	return t, nil
}

// ListTeams returns an event's roster in display order.
func (s *Service) ListTeams(ctx context.Context, eventID string) ([]model.Team, error) {
	return s.store.ListTeams(ctx, eventID)
}

// FlowState returns the current flow state of an event.
func (s *Service) FlowState(ctx context.Context, eventID string) (model.FlowState, error) {
	return s.machine.State(ctx, eventID)
}

// OpenAction opens the next action for judging.
func (s *Service) OpenAction(ctx context.Context, eventID, teamID string, round int, actionNo string) (model.FlowState, error) {
	return s.machine.OpenAction(ctx, eventID, teamID, round, actionNo)
}

// SubmitScore records a judge submission for the open action.
func (s *Service) SubmitScore(ctx context.Context, in flow.SubmitScoreInput) (model.Score, *model.ActionResult, error) {
	return s.machine.SubmitScore(ctx, in)
}

// SubmitVariety records the variety judge's per-round rating.
func (s *Service) SubmitVariety(ctx context.Context, in flow.SubmitVarietyInput) (model.VRScore, error) {
	return s.machine.SubmitVariety(ctx, in)
}

// AdvanceGroup moves the flow to the next team, round or to completion.
func (s *Service) AdvanceGroup(ctx context.Context, eventID string) (flow.AdvanceResult, error) {
	return s.machine.AdvanceGroup(ctx, eventID)
}

// SetAbstain marks the current team as abstained.
func (s *Service) SetAbstain(ctx context.Context, eventID string) (model.FlowState, error) {
	return s.machine.SetAbstain(ctx, eventID)
}

// CancelAbstain clears the abstained flag again.
func (s *Service) CancelAbstain(ctx context.Context, eventID string) (model.FlowState, error) {
	return s.machine.CancelAbstain(ctx, eventID)
}

// MyScores returns one judge's submissions for the current team and
// round, which lets a reconnecting judge client rebuild its view.
func (s *Service) MyScores(ctx context.Context, eventID, judgeID string) ([]model.Score, error) {
	st, err := s.machine.State(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if st.TeamID == "" {
		return []model.Score{}, nil
	}
	return s.store.ListScoresByJudge(ctx, eventID, st.TeamID, st.Round, judgeID)
}

// Summary is the resync payload: everything a reconnecting client needs
// to rebuild its view of one event.
type Summary struct {
	Event              model.Event          `json:"event"`
	Teams              []model.Team         `json:"teams"`
	Flow               model.FlowState      `json:"flow"`
	VRScore            *model.VRScore       `json:"vr_score,omitempty"`
	SubmittedSeats     []int                `json:"submitted_judge_nos"`
	CompletedActionNos []string             `json:"completed_action_nos"`
	CalculatedScores   []model.ActionResult `json:"calculated_scores"`
}

// Summarize collects the full resync view for one event. The submitted
// seat list covers the open action only; the completed list and the
// calculated results cover the current team's current round.
func (s *Service) Summarize(ctx context.Context, eventID string) (Summary, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Summary{}, s.notFound(err, "event %s", eventID)
	}
	teams, err := s.store.ListTeams(ctx, eventID)
	if err != nil {
		return Summary{}, fmt.Errorf("listing teams: %w", err)
	}
	st, err := s.machine.State(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Event:              e,
		Teams:              teams,
		Flow:               st,
		SubmittedSeats:     []int{},
		CompletedActionNos: []string{},
		CalculatedScores:   []model.ActionResult{},
	}
	if st.TeamID == "" {
		return sum, nil
	}

	if vr, err := s.store.GetVRScore(ctx, eventID, st.TeamID, st.Round); err == nil {
		sum.VRScore = &vr
	}

	team, err := s.store.GetTeam(ctx, st.TeamID)
	if err != nil {
		return Summary{}, s.notFound(err, "team %s", st.TeamID)
	}
	for _, actionNo := range model.ActionsForRound(st.Round, team.Category) {
		scores, err := s.store.ListScores(ctx, eventID, st.TeamID, st.Round, actionNo)
		if err != nil {
			return Summary{}, fmt.Errorf("listing scores: %w", err)
		}
		if st.Open && actionNo == st.ActionNo {
			for _, sc := range scores {
				sum.SubmittedSeats = append(sum.SubmittedSeats, sc.Seat)
			}
		}
		result, ok := scoring.Calculate(actionNo, scoring.FromScores(scores))
		if !ok {
			continue
		}
		sum.CompletedActionNos = append(sum.CompletedActionNos, actionNo)
		sum.CalculatedScores = append(sum.CalculatedScores, result)
	}
	return sum, nil
}

// Rankings returns every team's cumulative total. With a category set,
// the list is filtered to it and sorted best first; otherwise teams
// come back in display order.
func (s *Service) Rankings(ctx context.Context, eventID string, category model.Category) ([]model.RankingEntry, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, s.notFound(err, "event %s", eventID)
	}
	entries, err := s.rankings.Compute(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return entries, nil
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", flow.ErrValidation, category)
	}
	return ranking.Leaderboard(entries, category), nil
}

// Subscribe attaches a live notice stream for one event.
func (s *Service) Subscribe(ctx context.Context, eventID string) (<-chan broadcast.Notice, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, s.notFound(err, "event %s", eventID)
	}
	// The hub owns the subscriber gauge; it updates on join and leave.
	return s.hub.Subscribe(ctx, eventID), nil
}

// Subscribers reports how many streams are attached to an event.
func (s *Service) Subscribers(eventID string) int {
	return s.hub.Subscribers(eventID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"streamBuffer": s.streamBuffer,
	}
	if s.started {
		events, err := s.store.ListEvents(context.Background(), false)
		if err == nil {
			stats["totalEvents"] = len(events)
			subs := 0
			for _, e := range events {
				subs += s.hub.Subscribers(e.ID)
			}
			stats["subscribers"] = subs
		}
	}
	return stats
}

// notFound keeps repository sentinels out of the transport layer by
// translating them to the flow error taxonomy.
func (s *Service) notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", flow.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
