package slack

import (
	"encoding/json"
	"errors"
	"strings"
)

// Event envelope types Slack delivers to the webhook.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// EventAppMention is the only inner event type the pipeline processes.
const EventAppMention = "app_mention"

// ErrUnsupportedEvent marks envelopes or inner events the bot does not
// handle. The webhook still acknowledges them; they are terminal no-ops.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// EventRequest is the top-level payload of a Slack events webhook POST. It is
// either a url_verification challenge (sent once when the endpoint is
// configured) or an event_callback wrapping one inner event.
type EventRequest struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`

	TeamID    string     `json:"team_id,omitempty"`
	EventID   string     `json:"event_id,omitempty"`
	EventTime int64      `json:"event_time,omitempty"`
	Event     InnerEvent `json:"event,omitempty"`
}

// InnerEvent is the event wrapped by an event_callback envelope. Only the
// fields app_mention carries are mapped.
type InnerEvent struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Message is one message of a thread as returned by conversations.replies.
type Message struct {
	TS       string `json:"ts"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// MentionEvent is the transient, parsed form of one app_mention. It lives for
// the duration of a single pipeline run and is never persisted.
type MentionEvent struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id"`
	ThreadTS    string `json:"thread_ts"`
	MentionTS   string `json:"mention_ts"`
	Text        string `json:"text"`
}

// ParseEventRequest decodes a raw webhook body into an EventRequest.
func ParseEventRequest(body []byte) (*EventRequest, error) {
	var req EventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Mention extracts a MentionEvent from an event_callback envelope. It returns
// ErrUnsupportedEvent for any inner event other than app_mention. When the
// mention is the thread root (no thread_ts), the mention's own timestamp is
// the thread identity.
func (r *EventRequest) Mention() (*MentionEvent, error) {
	if r.Type != TypeEventCallback || r.Event.Type != EventAppMention {
		return nil, ErrUnsupportedEvent
	}
	threadTS := r.Event.ThreadTS
	if threadTS == "" {
		threadTS = r.Event.TS
	}
	return &MentionEvent{
		WorkspaceID: r.TeamID,
		UserID:      r.Event.User,
		ChannelID:   r.Event.Channel,
		ThreadTS:    threadTS,
		MentionTS:   r.Event.TS,
		Text:        r.Event.Text,
	}, nil
}

// WantsConnect reports whether the mention text asks for account linking.
// Matching is case-insensitive anywhere in the text.
func (m *MentionEvent) WantsConnect() bool {
	return strings.Contains(strings.ToLower(m.Text), "connect")
}
