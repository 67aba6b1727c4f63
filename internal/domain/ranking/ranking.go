// Package ranking recomputes per-team cumulative totals on demand.
//
// No running total is kept anywhere: every computation re-derives team
// totals from the persisted judge scores and variety scores, so the
// leaderboard can always be rebuilt after a restart or an audit
// recount and two computations over the same data agree exactly.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
	"github.com/craneyu/YILan-JJGAME/internal/domain/scoring"
)

// Source is the persisted data a ranking computation reads.
type Source interface {
	ListTeams(ctx context.Context, eventID string) ([]model.Team, error)
	ListScoresByEvent(ctx context.Context, eventID string) ([]model.Score, error)
	ListVRScores(ctx context.Context, eventID string) ([]model.VRScore, error)
}

// Engine computes rankings from a Source.
type Engine struct {
	src Source
}

// NewEngine creates a ranking engine over the given source.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// actionGroup keys scores by one team's action within a round.
type actionGroup struct {
	teamID   string
	round    int
	actionNo string
}

// Compute returns one entry per team in display order. A team's total
// is the sum of the aggregated totals of its quorum-complete actions
// plus its variety bonuses; partially scored actions contribute
// nothing.
func (e *Engine) Compute(ctx context.Context, eventID string) ([]model.RankingEntry, error) {
	teams, err := e.src.ListTeams(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	scores, err := e.src.ListScoresByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	vrScores, err := e.src.ListVRScores(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing variety scores: %w", err)
	}

	groups := make(map[actionGroup][]scoring.Submission)
	for _, s := range scores {
		key := actionGroup{teamID: s.TeamID, round: s.Round, actionNo: s.ActionNo}
		groups[key] = append(groups[key], scoring.Submission{Seat: s.Seat, Items: s.Items})
	}

	totals := make(map[string]int)
	for key, subs := range groups {
		result, ok := scoring.Calculate(key.actionNo, subs)
		if !ok {
			// Below quorum: the action does not count yet.
			continue
		}
		totals[key.teamID] += result.Total
	}
	for _, vr := range vrScores {
		totals[vr.TeamID] += vr.Total()
	}

	entries := make([]model.RankingEntry, 0, len(teams))
	for _, t := range teams {
		entries = append(entries, model.RankingEntry{
			TeamID:   t.ID,
			Name:     t.Name,
			Category: t.Category,
			Total:    totals[t.ID],
		})
	}
	return entries, nil
}

// Leaderboard filters entries to one category and sorts by total
// descending. The sort is stable, so tied teams keep display order;
// there is no sporting tie-break rule yet.
func Leaderboard(entries []model.RankingEntry, category model.Category) []model.RankingEntry {
	board := make([]model.RankingEntry, 0, len(entries))
	for _, e := range entries {
		if e.Category == category {
			board = append(board, e)
		}
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Total > board[j].Total
	})
	return board
}
