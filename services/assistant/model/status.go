package model

import (
	"errors"
	"fmt"

	openai2 "github.com/sashabaranov/go-openai"
)

var ErrInvalidTransition = errors.New("invalid run status transition")

// RunStatuses is the closed set of statuses a run may hold.
var RunStatuses = []openai2.RunStatus{
	openai2.RunStatusQueued,
	openai2.RunStatusInProgress,
	openai2.RunStatusRequiresAction,
	openai2.RunStatusCancelling,
	openai2.RunStatusCancelled,
	openai2.RunStatusFailed,
	openai2.RunStatusCompleted,
	openai2.RunStatusExpired,
}

func ParseRunStatus(s string) (openai2.RunStatus, error) {
	for _, status := range RunStatuses {
		if string(status) == s {
			return status, nil
		}
	}

	return "", fmt.Errorf("unknown run status %q", s)
}

// Event is an external trigger that moves a run between statuses.
type Event string

const (
	EventSubmitToolOutputs Event = "submit_tool_outputs"
	EventCancel            Event = "cancel"
)

func (e Event) String() string {
	return string(e)
}

// transitions maps each event to the statuses it may fire from and the status it leads to.
var transitions = map[Event]map[openai2.RunStatus]openai2.RunStatus{
	EventSubmitToolOutputs: {
		openai2.RunStatusRequiresAction: openai2.RunStatusQueued,
	},
	EventCancel: {
		openai2.RunStatusQueued:     openai2.RunStatusCancelled,
		openai2.RunStatusInProgress: openai2.RunStatusCancelled,
	},
}

// Transition returns the status a run in from moves to when event fires.
// The returned error wraps ErrInvalidTransition and names the current status.
func Transition(from openai2.RunStatus, event Event) (openai2.RunStatus, error) {
	allowed, ok := transitions[event]
	if !ok {
		return "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
	}

	to, ok := allowed[from]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a run with status %s", ErrInvalidTransition, event, from)
	}

	return to, nil
}

// SourceStatuses lists the statuses event may fire from.
func SourceStatuses(event Event) []openai2.RunStatus {
	var out []openai2.RunStatus
	for _, status := range RunStatuses {
		if _, ok := transitions[event][status]; ok {
			out = append(out, status)
		}
	}

	return out
}

// IsTerminal reports whether no event moves a run out of status.
func IsTerminal(status openai2.RunStatus) bool {
	for _, allowed := range transitions {
		if _, ok := allowed[status]; ok {
			return false
		}
	}

	return true
}
