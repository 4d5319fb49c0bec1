package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrorAlreadyReacted is the Slack error code for adding a reaction that is
// already present. The client treats it as success.
const ErrorAlreadyReacted = "already_reacted"

// APIError is returned when a Web API call fails at the transport level or
// the envelope reports ok=false.
type APIError struct {
	Method string // Slack API method, e.g. "conversations.replies"
	Code   string // Slack error code when available
	Err    error  // transport or decode error when Code is empty
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack %s failed: %s", e.Method, e.Code)
	}
	return fmt.Sprintf("slack %s failed: %v", e.Method, e.Err)
}

// Unwrap exposes the underlying transport error, if any.
func (e *APIError) Unwrap() error { return e.Err }

// Client is a thin wrapper over the Slack Web API calls the pipeline needs:
// thread history, reactions, and direct messages. It is stateless, carries no
// retry logic, and bounds every call with the HTTP client's timeout.
type Client struct {
	botToken string
	baseURL  string
	http     *http.Client
}

// NewClient returns a Client authenticated with the given bot token. A zero
// timeout defaults to 10 seconds.
func NewClient(botToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		botToken: botToken,
		baseURL:  "https://slack.com/api",
		http:     &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at an alternate API root. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// envelope is the common shape of Slack Web API responses.
type envelope struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// FetchThreadMessages returns all messages of a thread in the order Slack
// delivers them (chronological), via conversations.replies.
func (c *Client) FetchThreadMessages(ctx context.Context, channelID, threadTS string) ([]Message, error) {
	q := url.Values{}
	q.Set("channel", channelID)
	q.Set("ts", threadTS)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/conversations.replies?"+q.Encode(), nil)
	if err != nil {
		return nil, &APIError{Method: "conversations.replies", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	env, err := c.do(req, "conversations.replies")
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("channel_id", channelID).
		Str("thread_ts", threadTS).
		Int("message_count", len(env.Messages)).
		Msg("fetched thread messages")
	return env.Messages, nil
}

// AddReaction attaches a reaction to a message via reactions.add. A response
// of "already_reacted" counts as success, so the call is idempotent from the
// caller's perspective.
func (c *Client) AddReaction(ctx context.Context, channelID, messageTS, name string) error {
	payload := map[string]string{
		"channel":   channelID,
		"timestamp": messageTS,
		"name":      name,
	}
	err := c.post(ctx, "reactions.add", payload)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == ErrorAlreadyReacted {
		return nil
	}
	return err
}

// PostMessage sends text to a channel (or, with a user id, a direct message)
// via chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	payload := map[string]string{
		"channel": channelID,
		"text":    text,
	}
	return c.post(ctx, "chat.postMessage", payload)
}

// post issues a JSON POST to one Web API method.
func (c *Client) post(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Method: method, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return &APIError{Method: method, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	_, err = c.do(req, method)
	return err
}

// do executes the request and decodes the Slack envelope, converting
// transport failures and ok=false responses into *APIError.
func (c *Client) do(req *http.Request, method string) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{Method: method, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Method: method, Err: err}
	}
	if !env.OK {
		code := env.Error
		if code == "" {
			code = "unknown_error"
		}
		return nil, &APIError{Method: method, Code: code}
	}
	return &env, nil
}
