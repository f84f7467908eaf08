package hooks

import (
	"github.com/glorpus-work/preload/pkg/errors"
)

// Event names a controller event a hook script can run on.
type Event string

// Supported hook events.
const (
	EventProgress Event = "progress"
	EventFetched  Event = "fetched"
	EventError    Event = "error"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// Events lists every supported event in a stable order.
func Events() []Event {
	return []Event{EventProgress, EventFetched, EventError, EventComplete, EventCancel}
}

// ParseEvent validates name.
func ParseEvent(name string) (Event, error) {
	for _, e := range Events() {
		if string(e) == name {
			return e, nil
		}
	}
	return "", errors.ErrUnknownHookEventWithName(name)
}

// Hook is a script bound to one event.
type Hook struct {
	Event   Event
	Content string
}

// Context is what a script sees as variables.
type Context struct {
	URL         string
	Status      string
	Progress    float64
	Downloaded  int64
	Total       int64
	ContentType string
	FileName    string
	// Count is the number of assets carried by complete and cancel events.
	Count int
	Vars  map[string]interface{}
}
