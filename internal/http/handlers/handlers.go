package handlers

import (
	"context"

	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/savethebeat/savethebeat/internal/oauthstate"
)

// AccountLinker is the OAuth surface the connect/callback handlers need.
// Implemented by spotify.OAuth; faked in tests.
type AccountLinker interface {
	// AuthCodeURL returns the provider authorization URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for a full token set.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Handlers groups the HTTP endpoints: the events webhook, the account-linking
// flow, and the audit listing. Transport-thin by design: validate input, call
// collaborators, translate results.
type Handlers struct {
	signingSecret string
	pool          MentionEnqueuer
	db            *gorm.DB
	linker        AccountLinker
	states        *oauthstate.Store
}

// New constructs a Handlers instance bound to the given collaborators.
func New(signingSecret string, pool MentionEnqueuer, db *gorm.DB, linker AccountLinker, states *oauthstate.Store) *Handlers {
	return &Handlers{
		signingSecret: signingSecret,
		pool:          pool,
		db:            db,
		linker:        linker,
		states:        states,
	}
}
