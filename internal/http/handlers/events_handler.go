// Slack events webhook handler.
//
// This is the synchronous edge of the mention pipeline. It verifies the
// request signature against the raw body, answers url_verification
// challenges, classifies event_callback payloads, and hands supported
// mentions to the background pool. The response is sent before any external
// API is touched: Slack enforces a few-second budget and retries on slow
// acknowledgements.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/savethebeat/savethebeat/internal/http/middleware"
	"github.com/savethebeat/savethebeat/internal/services"
	"github.com/savethebeat/savethebeat/internal/slack"
)

// Slack signature headers.
const (
	HeaderSlackTimestamp = "X-Slack-Request-Timestamp"
	HeaderSlackSignature = "X-Slack-Signature"
)

// MentionEnqueuer detaches a mention pipeline run. Implemented by
// worker.Pool.
type MentionEnqueuer interface {
	Enqueue(m *slack.MentionEvent) bool
}

// HandleSlackEvents is the POST /slack/events endpoint.
//
// Responses:
//   - 200 with the echoed challenge for url_verification
//   - 200 {"status":"ok"} for an enqueued mention
//   - 200 {"status":"ignored"} for event types the bot does not handle
//     (the transport expects an acknowledgement regardless)
//   - 401 for signature failures, 400 for unparseable payloads
func (h *Handlers) HandleSlackEvents(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read request body")
		return
	}

	err = slack.VerifySignature(
		h.signingSecret,
		c.GetHeader(HeaderSlackTimestamp),
		body,
		c.GetHeader(HeaderSlackSignature),
		time.Now(),
	)
	if err != nil {
		failFromError(c, err)
		return
	}

	req, err := slack.ParseEventRequest(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid json payload")
		return
	}

	lg := middleware.LoggerFrom(c)

	switch req.Type {
	case slack.TypeURLVerification:
		// Echo the challenge verbatim; unrelated to the mention flow.
		ok(c, http.StatusOK, gin.H{"challenge": req.Challenge})

	case slack.TypeEventCallback:
		mention, err := req.Mention()
		if err != nil {
			if errors.Is(err, slack.ErrUnsupportedEvent) {
				lg.Info().
					Str("event_type", req.Event.Type).
					Str("event_id", req.EventID).
					Msg("unsupported event type, acknowledged")
				ok(c, http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid event payload")
			return
		}

		if !h.pool.Enqueue(mention) {
			// Already acknowledged to Slack either way; record the drop.
			lg.Error().
				Err(services.ErrQueueFull).
				Str("event_id", req.EventID).
				Msg("mention dropped")
		}
		ok(c, http.StatusOK, gin.H{"status": "ok"})

	default:
		lg.Info().Str("envelope_type", req.Type).Msg("unknown envelope type, acknowledged")
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
	}
}
