package flow

import (
	"errors"
	"fmt"
)

// Base error kinds. Handlers classify transition failures with
// errors.Is against these to pick a response status.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrPermission = errors.New("permission denied")
)

// Specific transition failures, each chained to a base kind.
var (
	ErrActionAlreadyOpen = fmt.Errorf("%w: an action is already open", ErrConflict)
	ErrActionNotOpen     = fmt.Errorf("%w: action is not open for scoring", ErrConflict)
	ErrDuplicateScore    = fmt.Errorf("%w: judge already scored this action", ErrConflict)
	ErrSeriesIncomplete  = fmt.Errorf("%w: series actions are not fully scored", ErrConflict)
	ErrVarietyPending    = fmt.Errorf("%w: variety score not submitted", ErrConflict)
	ErrEventComplete     = fmt.Errorf("%w: event is complete", ErrConflict)
	ErrNoCurrentTeam     = fmt.Errorf("%w: no team is currently up", ErrConflict)
	ErrTeamAbstained     = fmt.Errorf("%w: current team has abstained", ErrConflict)
	ErrSeatMismatch      = fmt.Errorf("%w: seat does not match judge identity", ErrPermission)
)
