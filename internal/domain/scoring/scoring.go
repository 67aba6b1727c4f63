// Package scoring computes official action results from judge scores.
//
// The aggregation is a pure function over the recorded submissions so
// results can be recomputed for audit at any time and are independent
// of submission order.
package scoring

import (
	"sort"

	"github.com/craneyu/YILan-JJGAME/internal/domain/model"
)

// itemKeys is the full item schema in display order. Rounds whose
// schema has no fifth item simply never carry p5 on all submissions.
var itemKeys = [...]string{"p1", "p2", "p3", "p4", "p5"}

// Submission is the subset of a stored score the aggregator reads.
type Submission struct {
	Seat  int
	Items model.ScoreItems
}

// FromScores adapts stored scores to aggregator submissions.
func FromScores(scores []model.Score) []Submission {
	subs := make([]Submission, 0, len(scores))
	for _, s := range scores {
		subs = append(subs, Submission{Seat: s.Seat, Items: s.Items})
	}
	return subs
}

// Calculate produces the official per-item aggregate for one action.
//
// For each item key present on every one of the five submissions, the
// five values are sorted, the minimum and maximum discarded, and the
// middle three summed. The action total is the sum of all per-item
// aggregates. Items missing from any submission are omitted entirely
// and contribute nothing.
//
// The second return value is false when fewer than model.Quorum
// submissions are given; no partial result is ever produced.
func Calculate(actionNo string, subs []Submission) (model.ActionResult, bool) {
	if len(subs) < model.Quorum {
		return model.ActionResult{}, false
	}

	result := model.ActionResult{
		ActionNo: actionNo,
		Items:    make(map[string]int),
	}

	for _, key := range itemKeys {
		values := make([]int, 0, len(subs))
		for _, sub := range subs {
			v, ok := sub.Items.Values()[key]
			if !ok {
				continue
			}
			values = append(values, v)
		}
		// The item counts only when every seat scored it.
		if len(values) != model.Quorum {
			continue
		}
		sort.Ints(values)
		sum := values[1] + values[2] + values[3]
		result.Items[key] = sum
		result.Total += sum
	}

	return result, true
}
