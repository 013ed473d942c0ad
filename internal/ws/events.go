package ws

import (
	"encoding/json"

	"github.com/splitlease/proposals/internal/models"
)

// Frame kinds sent to subscribers.
const (
	FrameEvent    = "event"
	FrameReset    = "reset"
	FrameShutdown = "shutdown"
)

// Frame is one server-to-client message. Event frames carry the committed
// event, whose revision orders it within the proposal; a client that sees a
// revision twice (live and replayed) keeps the first.
type Frame struct {
	Kind   string        `json:"kind"`
	Event  *models.Event `json:"event,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// subscribeMsg asks for the events committed after SinceRevision, normally
// the revision of the snapshot the client rendered.
type subscribeMsg struct {
	Type          string `json:"type"`
	SinceRevision int64  `json:"since_revision"`
}

func eventFrame(evt models.Event) ([]byte, error) {
	return json.Marshal(Frame{Kind: FrameEvent, Event: &evt})
}

func controlFrame(kind, reason string) []byte {
	data, _ := json.Marshal(Frame{Kind: kind, Reason: reason}) //nolint:errcheck // two strings always encode.

	return data
}
