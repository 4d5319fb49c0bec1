package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// APIError is returned when a Spotify Web API call fails. Payload carries the
// provider's error body when one was readable.
type APIError struct {
	Status  int
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spotify api call failed: %v", e.Err)
	}
	return fmt.Sprintf("spotify api returned %d: %s", e.Status, e.Payload)
}

// Unwrap exposes the underlying transport error, if any.
func (e *APIError) Unwrap() error { return e.Err }

// Client performs the library-save call against the Spotify Web API. It is
// stateless, single-attempt, and bounded by the HTTP client's timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client. A zero timeout defaults to 10 seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: "https://api.spotify.com",
		http:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at an alternate API root. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// SaveTrack adds trackID to the library of the user the access token belongs
// to (PUT /v1/me/tracks). Spotify answers 200 or 201 on success; anything
// else, including an unreadable response, is an *APIError.
func (c *Client) SaveTrack(ctx context.Context, accessToken, trackID string) error {
	q := url.Values{}
	q.Set("ids", trackID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/v1/me/tracks?"+q.Encode(), nil)
	if err != nil {
		return &APIError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		log.Error().
			Int("status", resp.StatusCode).
			Str("track_id", trackID).
			Msg("spotify save-track failed")
		return &APIError{Status: resp.StatusCode, Payload: string(payload)}
	}

	log.Debug().Str("track_id", trackID).Msg("spotify track saved")
	return nil
}
