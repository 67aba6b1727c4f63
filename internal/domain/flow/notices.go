package flow

import "github.com/craneyu/YILan-JJGAME/internal/domain/model"

// Notice names published on flow transitions and score events. The
// names and payload shapes below are part of the contract with
// connected clients.
const (
	NoticeActionOpened         = "action:opened"
	NoticeScoreSubmitted       = "score:submitted"
	NoticeScoreCalculated      = "score:calculated"
	NoticeVRSubmitted          = "vr:submitted"
	NoticeGroupChanged         = "group:changed"
	NoticeRoundChanged         = "round:changed"
	NoticeTeamAbstained        = "team:abstained"
	NoticeTeamAbstainCancelled = "team:abstain-cancelled"
)

// ActionOpenedPayload accompanies "action:opened".
type ActionOpenedPayload struct {
	EventID  string `json:"event_id"`
	TeamID   string `json:"team_id"`
	Round    int    `json:"round"`
	ActionNo string `json:"action_no"`
}

// ScoreSubmittedPayload accompanies "score:submitted".
type ScoreSubmittedPayload struct {
	JudgeID  string           `json:"judge_id"`
	Seat     int              `json:"judge_no"`
	TeamID   string           `json:"team_id"`
	Round    int              `json:"round"`
	ActionNo string           `json:"action_no"`
	Items    model.ScoreItems `json:"items"`
}

// ScoreCalculatedPayload accompanies "score:calculated".
type ScoreCalculatedPayload struct {
	TeamID   string         `json:"team_id"`
	Round    int            `json:"round"`
	ActionNo string         `json:"action_no"`
	Items    map[string]int `json:"items"`
	Total    int            `json:"action_total"`
}

// VRSubmittedPayload accompanies "vr:submitted".
type VRSubmittedPayload struct {
	TeamID        string `json:"team_id"`
	Round         int    `json:"round"`
	ThrowVariety  int    `json:"throw_variety"`
	GroundVariety int    `json:"ground_variety"`
}

// GroupChangedPayload accompanies "group:changed".
type GroupChangedPayload struct {
	NextTeamID string `json:"next_team_id"`
	Round      int    `json:"round"`
}

// RoundChangedPayload accompanies "round:changed". Round zero is the
// terminal marker meaning the event is complete.
type RoundChangedPayload struct {
	Round int `json:"round"`
}

// AbstainPayload accompanies "team:abstained" and
// "team:abstain-cancelled".
type AbstainPayload struct {
	TeamID string `json:"team_id"`
}
