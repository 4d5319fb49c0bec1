// Package services – MentionService
//
// This file implements the mention-processing pipeline: the strictly
// sequential flow a single app_mention event goes through after the webhook
// layer verified and classified it. The pipeline runs detached from the
// webhook response; its steps are thread fetch → link extraction →
// idempotency check → token lifecycle → remote save → feedback and audit,
// short-circuiting to a failure branch at any step. Every terminal branch
// that reaches the idempotency check writes exactly one audit row.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/savethebeat/savethebeat/internal/domain"
	"github.com/savethebeat/savethebeat/internal/repo"
	"github.com/savethebeat/savethebeat/internal/slack"
	"github.com/savethebeat/savethebeat/internal/spotify"
)

// Reactions used as user-visible feedback. The three outcomes stay
// distinguishable: success, duplicate, failure.
const (
	ReactionSuccess   = "white_check_mark"
	ReactionDuplicate = "recycle"
	ReactionFailure   = "x"
)

// mentionOutcomes counts pipeline terminal states by outcome label.
var mentionOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "savethebeat_mention_outcomes_total",
		Help: "Terminal outcomes of processed mention events.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(mentionOutcomes)
}

// ChatClient is the Slack surface the pipeline needs: thread history,
// reactions, direct messages. Implemented by slack.Client; faked in tests.
type ChatClient interface {
	FetchThreadMessages(ctx context.Context, channelID, threadTS string) ([]slack.Message, error)
	AddReaction(ctx context.Context, channelID, messageTS, name string) error
	PostMessage(ctx context.Context, channelID, text string) error
}

// TrackSaver adds a track to the authenticated user's library. Implemented by
// spotify.Client; faked in tests.
type TrackSaver interface {
	SaveTrack(ctx context.Context, accessToken, trackID string) error
}

// TokenProvider yields a valid access token for a workspace/user pair.
// Implemented by TokenService; faked in tests.
type TokenProvider interface {
	EnsureValidToken(ctx context.Context, workspaceID, userID string) (string, error)
}

// MentionService orchestrates one pipeline run per mention event. It holds
// only stateless collaborators and a DB handle; all per-event state lives in
// the MentionEvent passed to Process.
type MentionService struct {
	DB     *gorm.DB
	Chat   ChatClient
	Saver  TrackSaver
	Tokens TokenProvider

	// BaseURL is the public base of this service, used to build the one-time
	// account-linking URL sent on connect intent.
	BaseURL string
}

// NewMentionService constructs a MentionService.
func NewMentionService(db *gorm.DB, chat ChatClient, saver TrackSaver, tokens TokenProvider, baseURL string) *MentionService {
	return &MentionService{DB: db, Chat: chat, Saver: saver, Tokens: tokens, BaseURL: baseURL}
}

// Process runs the pipeline for one mention to a terminal state.
//
// Terminal states and their contracts:
//   - connect intent: DM with the linking URL sent, no track lookup, nil.
//   - no track link in the thread: failure reaction, no audit row, nil (a
//     mention without a link is normal, not an error).
//   - duplicate (prior ledger row for the idempotency key): duplicate
//     reaction, one already_saved row, nil.
//   - auth failure: failure reaction, one failed row with auth_error, the
//     error propagates for logging.
//   - save failure: failure reaction, one failed row with spotify_error, the
//     error propagates.
//   - save success: success reaction, one saved row, nil.
//
// A uniqueness conflict on a success-shaped ledger append means a concurrent
// or replayed pipeline won the race; it is absorbed as "already saved".
func (s *MentionService) Process(ctx context.Context, m *slack.MentionEvent) error {
	lg := log.With().
		Str("workspace_id", m.WorkspaceID).
		Str("user_id", m.UserID).
		Str("channel_id", m.ChannelID).
		Str("thread_ts", m.ThreadTS).
		Logger()

	if m.WantsConnect() {
		return s.sendConnectLink(ctx, m, lg)
	}

	messages, err := s.Chat.FetchThreadMessages(ctx, m.ChannelID, m.ThreadTS)
	if err != nil {
		mentionOutcomes.WithLabelValues("fetch_error").Inc()
		return err
	}

	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		texts = append(texts, msg.Text)
	}
	trackID := spotify.FindFirstTrack(texts)
	if trackID == "" {
		lg.Info().Int("message_count", len(messages)).Msg("no track link found in thread")
		s.react(ctx, m, ReactionFailure, lg)
		mentionOutcomes.WithLabelValues("no_track").Inc()
		return nil
	}
	lg = lg.With().Str("track_id", trackID).Logger()

	// Idempotency: a prior row for (workspace, user, thread, track) means the
	// save already happened (or was already marked duplicate).
	if prior, err := repo.FindSaveAction(ctx, s.DB, m.WorkspaceID, m.UserID, m.ThreadTS, trackID); err == nil {
		lg.Info().Str("prior_status", prior.Status).Msg("track already processed in this thread")
		s.react(ctx, m, ReactionDuplicate, lg)
		if err := s.appendAudit(ctx, m, trackID, domain.StatusAlreadySaved, "", nil, lg); err != nil {
			return err
		}
		mentionOutcomes.WithLabelValues("already_saved").Inc()
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	accessToken, err := s.Tokens.EnsureValidToken(ctx, m.WorkspaceID, m.UserID)
	if err != nil {
		lg.Error().Err(err).Msg("could not obtain valid access token")
		s.react(ctx, m, ReactionFailure, lg)
		if auditErr := s.appendAudit(ctx, m, trackID, domain.StatusFailed, domain.ErrCodeAuth, err, lg); auditErr != nil {
			return auditErr
		}
		mentionOutcomes.WithLabelValues("auth_error").Inc()
		return err
	}

	if err := s.Saver.SaveTrack(ctx, accessToken, trackID); err != nil {
		lg.Error().Err(err).Msg("failed to save track")
		s.react(ctx, m, ReactionFailure, lg)
		if auditErr := s.appendAudit(ctx, m, trackID, domain.StatusFailed, domain.ErrCodeSpotify, err, lg); auditErr != nil {
			return auditErr
		}
		mentionOutcomes.WithLabelValues("spotify_error").Inc()
		return err
	}

	lg.Info().Msg("track saved")
	s.react(ctx, m, ReactionSuccess, lg)
	if err := s.appendAudit(ctx, m, trackID, domain.StatusSaved, "", nil, lg); err != nil {
		return err
	}
	mentionOutcomes.WithLabelValues("saved").Inc()
	return nil
}

// sendConnectLink handles the connect-intent branch: the user is sent a DM
// with the one-time account-linking URL and the pipeline terminates without
// any track lookup.
func (s *MentionService) sendConnectLink(ctx context.Context, m *slack.MentionEvent, lg zerolog.Logger) error {
	q := url.Values{}
	q.Set("workspace", m.WorkspaceID)
	q.Set("user", m.UserID)
	link := fmt.Sprintf("%s/connect?%s", s.BaseURL, q.Encode())

	// A DM channel is addressed by the user id.
	text := "Click here to connect your Spotify account: " + link
	if err := s.Chat.PostMessage(ctx, m.UserID, text); err != nil {
		mentionOutcomes.WithLabelValues("connect_error").Inc()
		return err
	}
	lg.Info().Msg("sent account-linking url via dm")
	mentionOutcomes.WithLabelValues("connect").Inc()
	return nil
}

// react posts feedback to the thread. Reaction failures are logged and
// swallowed: feedback is best-effort, the audit ledger is the durable record
// and must still be written by the caller.
func (s *MentionService) react(ctx context.Context, m *slack.MentionEvent, name string, lg zerolog.Logger) {
	if err := s.Chat.AddReaction(ctx, m.ChannelID, m.MentionTS, name); err != nil {
		lg.Warn().Err(err).Str("reaction", name).Msg("failed to add reaction")
	}
}

// appendAudit writes one ledger row. A uniqueness conflict on a
// success-shaped row is absorbed: the row the race winner wrote already
// records the outcome.
func (s *MentionService) appendAudit(ctx context.Context, m *slack.MentionEvent, trackID, status, errCode string, cause error, lg zerolog.Logger) error {
	p := repo.SaveActionParams{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		ChannelID:   m.ChannelID,
		ThreadTS:    m.ThreadTS,
		MentionTS:   m.MentionTS,
		TrackID:     trackID,
		Status:      status,
	}
	if errCode != "" {
		p.ErrorCode = &errCode
	}
	if cause != nil {
		msg := cause.Error()
		p.ErrorMessage = &msg
	}

	if _, err := repo.CreateSaveAction(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			lg.Info().Str("status", status).Msg("audit row already present, conflict absorbed")
			return nil
		}
		lg.Error().Err(err).Str("status", status).Msg("failed to append audit row")
		return err
	}
	return nil
}
