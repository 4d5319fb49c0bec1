// Account-linking HTTP handlers.
//
// This file exposes the two endpoints of the OAuth authorization-code flow:
//   - GET /connect?workspace=<id>&user=<id>   (start: redirect to Spotify)
//   - GET /callback?code=<code>&state=<state> (finish: store the credential)
//
// The connect-intent branch of the pipeline only builds the /connect URL; the
// handshake itself lives here. CSRF protection comes from the single-use,
// TTL-bounded state tokens in the oauthstate store.
package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savethebeat/savethebeat/internal/http/middleware"
	"github.com/savethebeat/savethebeat/internal/repo"
	"github.com/savethebeat/savethebeat/internal/services"
)

// Connect starts the linking flow: it issues a state token bound to the
// workspace/user pair and redirects the browser to Spotify's authorization
// page.
func (h *Handlers) Connect(c *gin.Context) {
	workspaceID := c.Query("workspace")
	userID := c.Query("user")
	if workspaceID == "" || userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "workspace and user query parameters are required")
		return
	}

	state, err := h.states.Insert(workspaceID, userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create oauth state")
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("workspace_id", workspaceID).
		Str("user_id", userID).
		Msg("starting spotify connect flow")

	c.Redirect(http.StatusFound, h.linker.AuthCodeURL(state))
}

// Callback finishes the linking flow: it consumes the state token, exchanges
// the authorization code, and upserts the credential with the buffered
// expiry. The Spotify profile id is left unset; enrichment is a separate
// concern.
func (h *Handlers) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code and state query parameters are required")
		return
	}

	workspaceID, userID, err := h.states.Consume(state)
	if err != nil {
		failFromError(c, err)
		return
	}

	tok, err := h.linker.Exchange(c.Request.Context(), code)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("authorization code exchange failed")
		fail(c, http.StatusBadGateway, ErrCodeProviderError, "spotify token exchange failed")
		return
	}

	expiresAt := tok.Expiry.Add(-services.ExpiryBuffer)
	cred, err := repo.UpsertCredential(c.Request.Context(), h.db,
		workspaceID, userID, nil, tok.AccessToken, tok.RefreshToken, expiresAt)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("credential upsert failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not store credential")
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("credential_id", cred.ID).
		Str("workspace_id", workspaceID).
		Str("user_id", userID).
		Msg("stored spotify credential")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(successPage(workspaceID, userID)))
}

// successPage renders the small post-link confirmation shown in the browser.
// The identifiers originate from unauthenticated query parameters, so they
// are escaped before interpolation.
func successPage(workspaceID, userID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Spotify connected</title></head>
<body>
  <h1>Connected!</h1>
  <p>Your Spotify account is now linked for workspace %s (user %s).</p>
  <p>Head back to Slack and mention the bot in a thread with a track link.</p>
</body>
</html>`, html.EscapeString(workspaceID), html.EscapeString(userID))
}
