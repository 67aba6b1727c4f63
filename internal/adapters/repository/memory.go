package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// scoreKey identifies one judge's submission slot for one action.
type scoreKey struct {
	eventID  string
	teamID   string
	round    int
	actionNo string
	judgeID  string
}

// actionKey identifies one team's action within a round.
type actionKey struct {
	eventID  string
	teamID   string
	round    int
	actionNo string
}

// vrKey identifies one team's variety score slot within a round.
type vrKey struct {
	eventID string
	teamID  string
	round   int
}

// MemoryStore implements every store interface in this package with
// mutex-guarded maps. Uniqueness and check-and-set guarantees are
// enforced under the lock, which makes it safe for the many concurrent
// request handlers the service runs.
type MemoryStore struct {
	mu sync.RWMutex

	events map[string]model.Event
	teams  map[string]model.Team

	scores   map[scoreKey]model.Score
	byAction map[actionKey][]scoreKey

	vrScores map[vrKey]model.VRScore

	flow map[string]model.FlowState

	now func() time.Time
}

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the timestamp source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		events:   make(map[string]model.Event),
		teams:    make(map[string]model.Team),
		scores:   make(map[scoreKey]model.Score),
		byAction: make(map[actionKey][]scoreKey),
		vrScores: make(map[vrKey]model.VRScore),
		flow:     make(map[string]model.FlowState),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent stores a new event, assigning an id and creation time when
// absent.
func (s *MemoryStore) CreateEvent(ctx context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = model.EventPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if _, exists := s.events[e.ID]; exists {
		return fmt.Errorf("%w: event %s", ErrDuplicate, e.ID)
	}
	s.events[e.ID] = *e
	return nil
}

// GetEvent returns the event with the given id.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return e, nil
}

// ListEvents returns events newest first, optionally excluding closed ones.
func (s *MemoryStore) ListEvents(ctx context.Context, openOnly bool) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		if openOnly && e.Status == model.EventClosed {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// UpdateEvent replaces an existing event.
func (s *MemoryStore) UpdateEvent(ctx context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, e.ID)
	}
	s.events[e.ID] = e
	return nil
}

// CreateTeam stores a new roster entry.
func (s *MemoryStore) CreateTeam(ctx context.Context, t *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := s.teams[t.ID]; exists {
		return fmt.Errorf("%w: team %s", ErrDuplicate, t.ID)
	}
	s.teams[t.ID] = *t
	return nil
}

// GetTeam returns the team with the given id.
func (s *MemoryStore) GetTeam(ctx context.Context, id string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	return t, nil
}

// ListTeams returns an event's teams ordered by display order.
func (s *MemoryStore) ListTeams(ctx context.Context, eventID string) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]model.Team, 0)
	for _, t := range s.teams {
		if t.EventID == eventID {
			teams = append(teams, t)
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		return teams[i].Order < teams[j].Order
	})
	return teams, nil
}

// NextTeamByOrder returns the team with the smallest order strictly greater
// than after.
func (s *MemoryStore) NextTeamByOrder(ctx context.Context, eventID string, after int) (model.Team, error) {
	teams, _ := s.ListTeams(ctx, eventID)
	for _, t := range teams {
		if t.Order > after {
			return t, nil
		}
	}
	return model.Team{}, fmt.Errorf("%w: no team after order %d", ErrNotFound, after)
}

// FirstTeamByOrder returns the team with the smallest order.
func (s *MemoryStore) FirstTeamByOrder(ctx context.Context, eventID string) (model.Team, error) {
	teams, _ := s.ListTeams(ctx, eventID)
	if len(teams) == 0 {
		return model.Team{}, fmt.Errorf("%w: event %s has no teams", ErrNotFound, eventID)
	}
	return teams[0], nil
}

// CreateScore records one judge submission. The uniqueness check and
// the insert happen under one lock acquisition, so concurrent retries
// of the same submission yield exactly one stored record.
func (s *MemoryStore) CreateScore(ctx context.Context, sc *model.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scoreKey{
		eventID:  sc.EventID,
		teamID:   sc.TeamID,
		round:    sc.Round,
		actionNo: sc.ActionNo,
		judgeID:  sc.JudgeID,
	}
	if _, exists := s.scores[key]; exists {
		return fmt.Errorf("%w: judge %s already scored %s", ErrDuplicate, sc.JudgeID, sc.ActionNo)
	}

	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.SubmittedAt.IsZero() {
		sc.SubmittedAt = s.now()
	}
	s.scores[key] = *sc

	ak := actionKey{sc.EventID, sc.TeamID, sc.Round, sc.ActionNo}
	s.byAction[ak] = append(s.byAction[ak], key)
	return nil
}

// CountScores answers how many distinct judges have scored an action.
func (s *MemoryStore) CountScores(ctx context.Context, eventID, teamID string, round int, actionNo string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byAction[actionKey{eventID, teamID, round, actionNo}]), nil
}

// ListScores returns the recorded submissions for one action.
func (s *MemoryStore) ListScores(ctx context.Context, eventID, teamID string, round int, actionNo string) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byAction[actionKey{eventID, teamID, round, actionNo}]
	scores := make([]model.Score, 0, len(keys))
	for _, k := range keys {
		scores = append(scores, s.scores[k])
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Seat < scores[j].Seat
	})
	return scores, nil
}

// ListScoresByEvent returns every submission recorded for an event.
func (s *MemoryStore) ListScoresByEvent(ctx context.Context, eventID string) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make([]model.Score, 0)
	for _, sc := range s.scores {
		if sc.EventID == eventID {
			scores = append(scores, sc)
		}
	}
	return scores, nil
}

// ListScoresByJudge returns one judge's submissions for a team and
// round, ordered by action id.
func (s *MemoryStore) ListScoresByJudge(ctx context.Context, eventID, teamID string, round int, judgeID string) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make([]model.Score, 0)
	for k, sc := range s.scores {
		if k.eventID == eventID && k.teamID == teamID && k.round == round && k.judgeID == judgeID {
			scores = append(scores, sc)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].ActionNo < scores[j].ActionNo
	})
	return scores, nil
}

// PutVRScore inserts or replaces the variety score for the key.
func (s *MemoryStore) PutVRScore(ctx context.Context, v model.VRScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.SubmittedAt.IsZero() {
		v.SubmittedAt = s.now()
	}
	s.vrScores[vrKey{v.EventID, v.TeamID, v.Round}] = v
	return nil
}

// GetVRScore returns the variety score for the key.
func (s *MemoryStore) GetVRScore(ctx context.Context, eventID, teamID string, round int) (model.VRScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vrScores[vrKey{eventID, teamID, round}]
	if !ok {
		return model.VRScore{}, fmt.Errorf("%w: no variety score for team %s round %d", ErrNotFound, teamID, round)
	}
	return v, nil
}

// ListVRScores returns every variety score for an event.
func (s *MemoryStore) ListVRScores(ctx context.Context, eventID string) ([]model.VRScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.VRScore, 0)
	for _, v := range s.vrScores {
		if v.EventID == eventID {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateFlowState initializes the flow state for a new event.
func (s *MemoryStore) CreateFlowState(ctx context.Context, eventID string) (model.FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flow[eventID]; exists {
		return model.FlowState{}, fmt.Errorf("%w: flow state for event %s", ErrDuplicate, eventID)
	}
	st := model.FlowState{
		EventID: eventID,
		Round:   model.MinRound,
		Status:  model.StatusIdle,
		Version: 1,
	}
	s.flow[eventID] = st
	return st, nil
}

// GetFlowState returns the flow state for an event.
func (s *MemoryStore) GetFlowState(ctx context.Context, eventID string) (model.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.flow[eventID]
	if !ok {
		return model.FlowState{}, fmt.Errorf("%w: flow state for event %s", ErrNotFound, eventID)
	}
	return st, nil
}

// SaveFlowState writes st if its version matches the stored one,
// returning the bumped state. A mismatch means another transition won
// the race; the caller gets ErrStaleState instead of a double apply.
func (s *MemoryStore) SaveFlowState(ctx context.Context, st model.FlowState) (model.FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.flow[st.EventID]
	if !ok {
		return model.FlowState{}, fmt.Errorf("%w: flow state for event %s", ErrNotFound, st.EventID)
	}
	if cur.Version != st.Version {
		return model.FlowState{}, fmt.Errorf("%w: version %d, stored %d", ErrStaleState, st.Version, cur.Version)
	}
	st.Version++
	s.flow[st.EventID] = st
	return st, nil
}
