// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger for the
// service. Webhook traffic carries secrets that must never reach logs: Slack
// sends an HMAC signature on every event delivery, and the Spotify OAuth
// callback carries a single-use authorization code and state token in the
// query string. RedactingLogger scrubs all of these before emitting.
//
// Design goals:
//   - Default-safe: never logs request or response bodies
//   - Masks sensitive headers (Authorization, Cookie, X-Slack-Signature, plus custom)
//   - Masks OAuth query parameters (code, state) on the callback route
//   - Redacts email addresses and UUID-like identifiers from remaining values
//   - Attaches a request-scoped zerolog.Logger (key "logger") for handlers
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RequestID(), middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	}))
//
// Security note: this middleware reduces but does not eliminate the risk of
// sensitive data leaking to logs. Upstream services should still avoid
// transmitting secrets in query strings or headers unless strictly necessary.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders specifies extra HTTP header names whose values will be fully
// replaced with "[REDACTED]". Matching is case-insensitive and merged with the
// built-in sensitive headers ("Authorization", "Cookie", "Set-Cookie",
// "X-Slack-Signature", "X-Slack-Request-Timestamp").
//
// MaskQueryParams specifies extra query parameter names whose values are
// replaced with "[REDACTED]" in the logged query string. Merged with the
// built-in set ("code", "state", "token").
type RedactOptions struct {
	MaskHeaders     []string
	MaskQueryParams []string
}

// RedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed.
//
// Behavior:
//   - Logs method, path, query string, status, response size, latency,
//     and request headers (with scrubbing applied).
//   - Fully masks built-in sensitive headers and query parameters plus any
//     additional names provided in opts.
//   - Applies regex-based substitution to redact email addresses and
//     UUID-like identifiers from the remaining query and header values.
//   - Attaches a request-scoped zerolog.Logger under the "logger" context key
//     (retrievable via LoggerFrom) carrying the correlation fields.
//   - Logs in structured JSON format at INFO level by default, WARN for 4xx,
//     and ERROR for 5xx responses.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	// Compile regex patterns once.
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		return out
	}

	// Build header mask set (case-insensitive).
	maskHeaders := map[string]struct{}{
		"authorization":             {},
		"cookie":                    {},
		"set-cookie":                {},
		"x-slack-signature":         {},
		"x-slack-request-timestamp": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	// Build query parameter mask set (case-insensitive).
	maskParams := map[string]struct{}{
		"code":  {},
		"state": {},
		"token": {},
	}
	for _, p := range opts.MaskQueryParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	// scrubQuery masks the values of sensitive parameters, then applies
	// regex redaction to whatever remains. A query string that fails to
	// parse is redacted wholesale rather than logged raw.
	scrubQuery := func(raw string) string {
		if raw == "" {
			return raw
		}
		vals, err := url.ParseQuery(raw)
		if err != nil {
			return "[REDACTED:unparseable]"
		}
		parts := make([]string, 0, len(vals))
		for k, vv := range vals {
			if _, ok := maskParams[strings.ToLower(k)]; ok {
				parts = append(parts, k+"=[REDACTED]")
				continue
			}
			for _, v := range vv {
				parts = append(parts, k+"="+redact(v))
			}
		}
		return strings.Join(parts, "&")
	}

	return func(c *gin.Context) {
		start := time.Now()

		// Request path and query.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrubQuery(c.Request.URL.RawQuery)

		// Scrub headers.
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			keyLower := strings.ToLower(k)
			val := strings.Join(vv, ", ")
			if _, ok := maskHeaders[keyLower]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(val)
		}

		// Request-scoped logger for handlers and services.
		rid, _ := c.Get(requestIDKey)
		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		// Severity based on status.
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}

		ev.
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
