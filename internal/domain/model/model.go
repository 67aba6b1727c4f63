// Package model contains domain models passed between layers.
package model

import "time"

// EventStatus is the administrative lifecycle of a competition event.
// It is orthogonal to the flow status: closing an event only stops
// offering it to new observers.
type EventStatus string

// Event lifecycle statuses.
const (
	EventPending EventStatus = "pending"
	EventActive  EventStatus = "active"
	EventClosed  EventStatus = "closed"
)

// Event represents one competition instance.
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Date      *time.Time  `json:"date,omitempty"`
	Venue     string      `json:"venue,omitempty"`
	Status    EventStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Category determines how many actions a team performs per round.
type Category string

// Team categories.
const (
	CategoryMale   Category = "male"
	CategoryFemale Category = "female"
	CategoryMixed  Category = "mixed"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMale, CategoryFemale, CategoryMixed:
		return true
	}
	return false
}

// Team is a competing unit. Order drives next-team sequencing and is
// administrator-managed; the flow layer reads it but never edits it.
type Team struct {
	ID       string   `json:"id"`
	EventID  string   `json:"event_id"`
	Name     string   `json:"name"`
	Members  []string `json:"members"`
	Category Category `json:"category"`
	Order    int      `json:"order"`
}

// FlowStatus tags what the event is currently doing.
type FlowStatus string

// Flow statuses. EventComplete is terminal.
const (
	StatusIdle           FlowStatus = "idle"
	StatusActionOpen     FlowStatus = "action_open"
	StatusActionClosed   FlowStatus = "action_closed"
	StatusSeriesComplete FlowStatus = "series_complete"
	StatusEventComplete  FlowStatus = "event_complete"
)

// FlowState is the single source of truth for what judges should
// currently be doing in one event. Exactly one exists per event and it
// is mutated only through the flow machine's named transitions.
type FlowState struct {
	EventID   string     `json:"event_id"`
	TeamID    string     `json:"team_id,omitempty"`
	Round     int        `json:"round"`
	ActionNo  string     `json:"action_no,omitempty"`
	Open      bool       `json:"action_open"`
	Abstained bool       `json:"team_abstained"`
	Status    FlowStatus `json:"status"`
	Version   int64      `json:"-"`
}

// ScoreItems holds one judge's per-item ratings for one action.
// P1..P4 are always scored; P5 exists only for rounds whose action
// schema carries a fifth item.
type ScoreItems struct {
	P1 int  `json:"p1"`
	P2 int  `json:"p2"`
	P3 int  `json:"p3"`
	P4 int  `json:"p4"`
	P5 *int `json:"p5,omitempty"`
}

// Values returns the item values keyed by item name. Absent optional
// items are not included.
func (s ScoreItems) Values() map[string]int {
	m := map[string]int{
		"p1": s.P1,
		"p2": s.P2,
		"p3": s.P3,
		"p4": s.P4,
	}
	if s.P5 != nil {
		m["p5"] = *s.P5
	}
	return m
}

// Score is one judge's rating of one team's one action in one round.
// At most one exists per (event, team, round, action, judge); a
// duplicate submit is rejected, never overwritten.
type Score struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	TeamID      string     `json:"team_id"`
	Round       int        `json:"round"`
	ActionNo    string     `json:"action_no"`
	JudgeID     string     `json:"judge_id"`
	Seat        int        `json:"judge_no"`
	Items       ScoreItems `json:"items"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// VRScore is the variety judge's per-round bonus rating for a team.
// One exists per (event, team, round); resubmission replaces it.
type VRScore struct {
	EventID       string    `json:"event_id"`
	TeamID        string    `json:"team_id"`
	Round         int       `json:"round"`
	ThrowVariety  int       `json:"throw_variety"`
	GroundVariety int       `json:"ground_variety"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Total returns the variety bonus contributed to rankings.
func (v VRScore) Total() int {
	return v.ThrowVariety + v.GroundVariety
}

// ActionResult is the derived official result of one action once all
// five seats have submitted. It is never stored; it must be
// recomputable from the underlying scores at any time.
type ActionResult struct {
	ActionNo string         `json:"action_no"`
	Items    map[string]int `json:"items"`
	Total    int            `json:"action_total"`
}

// RankingEntry is one team's cumulative standing. Consumers sort;
// ties keep team order.
type RankingEntry struct {
	TeamID   string   `json:"team_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Total    int      `json:"total"`
}
