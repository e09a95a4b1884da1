package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kazz187/adotask/pkg/cerr"
)

// Status is the adapter-facing task status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeleted    Status = "deleted"
)

// Statuses lists every accepted status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusDeleted}

var remoteStates = map[Status]string{
	StatusPending:    "To Do",
	StatusInProgress: "Active",
	StatusCompleted:  "Closed",
	StatusDeleted:    "Removed",
}

var ErrUnknownStatus = errors.New("unknown status")

func ToRemoteState(s Status) (string, error) {
	state, ok := remoteStates[s]
	if !ok {
		names := make([]string, len(Statuses))
		for i, st := range Statuses {
			names[i] = string(st)
		}
		msg := fmt.Sprintf("Unknown status '%s'. Use: %s", s, strings.Join(names, ", "))
		return "", cerr.NewError(cerr.InvalidArgument, msg, ErrUnknownStatus)
	}
	return state, nil
}

const (
	StoryStateActive   = "Active"
	StoryStateResolved = "Resolved"
)

// Story states that count as "not yet started".
var notStartedStoryStates = map[string]struct{}{
	"New":       {},
	"Approved":  {},
	"Committed": {},
	"Design":    {},
}

// StoryNeedsActivation reports whether selecting a story in this state
// should move it to Active. States past the set are never touched.
func StoryNeedsActivation(state string) bool {
	_, ok := notStartedStoryStates[state]
	return ok
}
