// Package slack implements the inbound and outbound Slack surface of the bot:
// webhook signature verification, event payload parsing, and a thin client
// for the Web API calls the pipeline needs.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Signature verification failures. Each condition is distinct so the HTTP
// layer can map them to stable error codes.
var (
	// ErrSignatureMissing is returned when the timestamp or signature header
	// is absent from the request.
	ErrSignatureMissing = errors.New("signature headers missing")

	// ErrSignatureInvalid is returned for a malformed timestamp or a digest
	// mismatch.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrSignatureExpired is returned when the request timestamp is outside
	// the replay window regardless of signature correctness.
	ErrSignatureExpired = errors.New("signature expired")
)

// maxSkew is the replay window Slack documents for signed requests.
const maxSkew = 5 * time.Minute

// signaturePrefix is Slack's signing scheme version.
const signaturePrefix = "v0"

// VerifySignature checks a Slack request signature.
//
// Slack signs every request with HMAC-SHA256 over "v0:{timestamp}:{body}"
// using the app's signing secret; the hex digest is sent prefixed with "v0=".
// The timestamp is bounded to ±5 minutes of now to reject replays.
//
// The final comparison uses hmac.Equal on the decoded digests, so it does not
// short-circuit on content. Length mismatch (a malformed header) returns
// immediately; the timing difference there reveals nothing beyond what the
// header format already does.
func VerifySignature(signingSecret, timestamp string, body []byte, signature string, now time.Time) error {
	if timestamp == "" || signature == "" {
		return ErrSignatureMissing
	}

	requestTS, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}

	skew := now.Unix() - requestTS
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(maxSkew.Seconds()) {
		return ErrSignatureExpired
	}

	computed := ComputeSignature(signingSecret, timestamp, body)
	if !hmac.Equal([]byte(computed), []byte(signature)) {
		log.Warn().
			Str("provided_prefix", prefix(signature, 12)).
			Msg("slack signature verification failed")
		return ErrSignatureInvalid
	}
	return nil
}

// ComputeSignature returns the "v0=<hex>" signature Slack would send for the
// given secret, timestamp, and raw body. Exported so tests and tooling can
// produce valid signatures.
func ComputeSignature(signingSecret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(signaturePrefix + ":" + timestamp + ":"))
	mac.Write(body)
	return signaturePrefix + "=" + hex.EncodeToString(mac.Sum(nil))
}

// prefix truncates s for logging; signatures are never logged in full.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
