package provider

import "github.com/rhuss/askstream/pkg/api"

// EventType discriminates the Event union.
type EventType int

const (
	EventTextDelta EventType = iota
	EventCitations
	EventFollowUp
	EventHeartbeat
	EventError
	EventDone
)

var eventTypeNames = [...]string{
	EventTextDelta: "text_delta",
	EventCitations: "citations",
	EventFollowUp:  "follow_up",
	EventHeartbeat: "heartbeat",
	EventError:     "error",
	EventDone:      "done",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is one decoded protocol event. Only the fields belonging to Type
// are set:
//
//	EventTextDelta  Text
//	EventCitations  Entries
//	EventFollowUp   Handle
//	EventError      Code, Message
//
// Heartbeat and Done carry no payload.
type Event struct {
	Type    EventType
	Text    string
	Entries []api.WebResult
	Handle  *api.ConversationHandle
	Code    string
	Message string
}

// Terminal reports whether no further events should be folded after e.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventDone
}

// TextDelta returns a text fragment event.
func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

// Citations returns a citation chunk event.
func Citations(entries ...api.WebResult) Event {
	return Event{Type: EventCitations, Entries: entries}
}

// FollowUp returns a follow-up handle event.
func FollowUp(backendID string, attachments ...string) Event {
	return Event{Type: EventFollowUp, Handle: &api.ConversationHandle{
		BackendID:   backendID,
		Attachments: attachments,
	}}
}

// Heartbeat returns a keep-alive event.
func Heartbeat() Event {
	return Event{Type: EventHeartbeat}
}

// ErrorEvent returns an in-band error event.
func ErrorEvent(code, message string) Event {
	return Event{Type: EventError, Code: code, Message: message}
}

// Done returns the end-of-stream event.
func Done() Event {
	return Event{Type: EventDone}
}
