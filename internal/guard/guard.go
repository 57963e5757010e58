// Package guard enforces the mutual-exclusion rules between breaks,
// meetings, and event attendance. It owns no state: the three booleans
// come from their respective owners and the checks are pure functions.
package guard

import (
	"context"
	"errors"
)

var (
	ErrInMeeting     = errors.New("agent is currently in a meeting")
	ErrGoingToEvent  = errors.New("agent is marked as going to an event")
	ErrOnBreak       = errors.New("agent is currently on a break")
)

// Presence exposes the collaborator-owned booleans the guard needs.
// The narrow interface keeps break, meeting, and event modules from
// depending on each other directly.
type Presence interface {
	IsInMeeting(ctx context.Context, agentID int64) (bool, error)
	IsGoingToEvent(ctx context.Context, agentID int64) (bool, error)
}

// CanStartBreak gates entry into a break. Pausing, resuming, and ending
// an already-granted break never pass through here: the guard only
// gates entry into a new concurrent activity.
func CanStartBreak(inMeeting, goingToEvent bool) error {
	if inMeeting {
		return ErrInMeeting
	}
	if goingToEvent {
		return ErrGoingToEvent
	}
	return nil
}

// CanMarkGoingToEvent gates marking an agent "going" to an event.
func CanMarkGoingToEvent(inMeeting bool) error {
	if inMeeting {
		return ErrInMeeting
	}
	return nil
}

// CanJoinMeeting gates entry into a meeting.
func CanJoinMeeting(onBreak, goingToEvent bool) error {
	if onBreak {
		return ErrOnBreak
	}
	if goingToEvent {
		return ErrGoingToEvent
	}
	return nil
}
