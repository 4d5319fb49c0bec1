// Package spotify implements the outbound Spotify surface of the bot: track
// link extraction, the OAuth2 token exchange, and the library-save call.
package spotify

import "regexp"

// Track link patterns. Only /track/ links match; playlist, album, or artist
// URLs on the same domain do not.
var (
	trackURLRE = regexp.MustCompile(`https?://open\.spotify\.com/track/([a-zA-Z0-9]+)`)
	trackURIRE = regexp.MustCompile(`spotify:track:([a-zA-Z0-9]+)`)
)

// ExtractTrackID returns the Spotify track id embedded in text, or "" when
// none is present. Both the open.spotify.com URL form (with or without a
// trailing query string) and the spotify:track: URI form are recognized; the
// URL form wins when both appear. Pure and deterministic.
func ExtractTrackID(text string) string {
	if m := trackURLRE.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := trackURIRE.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// FindFirstTrack scans messages in the order given (chronological for a
// thread) and returns the track id from the first message that contains one,
// or "" when no message does.
func FindFirstTrack(messages []string) string {
	for _, msg := range messages {
		if id := ExtractTrackID(msg); id != "" {
			return id
		}
	}
	return ""
}
