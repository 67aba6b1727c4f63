package model

import "fmt"

// Rounds in a competition. Each round maps to a series letter used in
// action identifiers (round 1 -> A1..An, and so on).
const (
	MinRound = 1
	MaxRound = 3
)

// Seat bounds for scoring judges.
const (
	MinSeat = 1
	MaxSeat = 5
)

// Quorum is the number of recorded scores that closes an action and
// triggers aggregation.
const Quorum = 5

// MinItemScore and MaxItemScore bound a single judged item value.
const (
	MinItemScore = 0
	MaxItemScore = 3
)

// MinVariety and MaxVariety bound a single variety rating.
const (
	MinVariety = 0
	MaxVariety = 2
)

var seriesLetters = [...]string{"A", "B", "C"}

// ValidRound reports whether round is within the competition schedule.
func ValidRound(round int) bool {
	return round >= MinRound && round <= MaxRound
}

// ValidSeat reports whether seat is a scoring judge position.
func ValidSeat(seat int) bool {
	return seat >= MinSeat && seat <= MaxSeat
}

// SeriesLetter maps a round to its series letter. Rounds outside the
// schedule fall back to the first series, matching the roster source.
func SeriesLetter(round int) string {
	if !ValidRound(round) {
		return seriesLetters[0]
	}
	return seriesLetters[round-1]
}

// ActionCount returns how many actions the category performs per round:
// four for male teams, three for female and mixed.
func ActionCount(c Category) int {
	if c == CategoryMale {
		return 4
	}
	return 3
}

// ActionNo builds an action identifier such as "A1" or "C4".
func ActionNo(round, index int) string {
	return fmt.Sprintf("%s%d", SeriesLetter(round), index)
}

// ActionsForRound lists the action identifiers a team of the given
// category performs in a round, in performance order.
func ActionsForRound(round int, c Category) []string {
	n := ActionCount(c)
	actions := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		actions = append(actions, ActionNo(round, i))
	}
	return actions
}

// ValidActionNo reports whether actionNo belongs to the given round and
// category schedule.
func ValidActionNo(actionNo string, round int, c Category) bool {
	for _, a := range ActionsForRound(round, c) {
		if a == actionNo {
			return true
		}
	}
	return false
}
