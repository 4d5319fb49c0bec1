package slack

import (
	"errors"
	"testing"
)

func TestParseEventRequest_URLVerification(t *testing.T) {
	body := []byte(`{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`)
	req, err := ParseEventRequest(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Type != TypeURLVerification {
		t.Fatalf("type = %q", req.Type)
	}
	if req.Challenge == "" {
		t.Fatalf("expected challenge to be populated")
	}
}

func TestParseEventRequest_Invalid(t *testing.T) {
	if _, err := ParseEventRequest([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestMention_AppMention_ThreadReply(t *testing.T) {
	body := []byte(`{
		"type": "event_callback",
		"team_id": "T061EG9R6",
		"event_id": "Ev9UQ52YNA",
		"event": {
			"type": "app_mention",
			"user": "U061F7AUR",
			"text": "<@U0LAN0Z89> save this one",
			"ts": "1515449483.000108",
			"channel": "C0LAN2Q65",
			"thread_ts": "1515449438.000011"
		}
	}`)
	req, err := ParseEventRequest(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := req.Mention()
	if err != nil {
		t.Fatalf("mention: %v", err)
	}
	if m.WorkspaceID != "T061EG9R6" || m.UserID != "U061F7AUR" || m.ChannelID != "C0LAN2Q65" {
		t.Fatalf("unexpected identity fields: %+v", m)
	}
	if m.ThreadTS != "1515449438.000011" {
		t.Fatalf("thread_ts = %q; want the parent thread", m.ThreadTS)
	}
	if m.MentionTS != "1515449483.000108" {
		t.Fatalf("mention_ts = %q", m.MentionTS)
	}
}

func TestMention_ThreadRootFallsBackToOwnTS(t *testing.T) {
	req := &EventRequest{
		Type:   TypeEventCallback,
		TeamID: "T1",
		Event: InnerEvent{
			Type:    EventAppMention,
			User:    "U1",
			TS:      "1700000000.000100",
			Channel: "C1",
		},
	}
	m, err := req.Mention()
	if err != nil {
		t.Fatalf("mention: %v", err)
	}
	if m.ThreadTS != "1700000000.000100" {
		t.Fatalf("thread_ts = %q; want the mention's own ts", m.ThreadTS)
	}
}

func TestMention_UnsupportedEvents(t *testing.T) {
	// Wrong inner type
	req := &EventRequest{
		Type:  TypeEventCallback,
		Event: InnerEvent{Type: "message", TS: "1.2"},
	}
	if _, err := req.Mention(); !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("message event: got %v", err)
	}
	// Wrong envelope type
	req2 := &EventRequest{Type: TypeURLVerification}
	if _, err := req2.Mention(); !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("url_verification envelope: got %v", err)
	}
}

func TestWantsConnect(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"<@U0LAN0Z89> connect", true},
		{"<@U0LAN0Z89> CONNECT please", true},
		{"<@U0LAN0Z89> please ConNeCt me", true},
		{"<@U0LAN0Z89> save this track", false},
		{"", false},
	}
	for _, tc := range cases {
		m := &MentionEvent{Text: tc.text}
		if got := m.WantsConnect(); got != tc.want {
			t.Fatalf("WantsConnect(%q) = %v; want %v", tc.text, got, tc.want)
		}
	}
}
