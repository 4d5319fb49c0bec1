package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/savethebeat/savethebeat/internal/oauthstate"
	"github.com/savethebeat/savethebeat/internal/repo"
	"github.com/savethebeat/savethebeat/internal/slack"
)

const testSigningSecret = "test-signing-secret"

// newTestDB opens a uniquely named in-memory SQLite database (shared cache so
// every connection in the pool sees the same data) and migrates the schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakePool captures enqueued mentions; full simulates a saturated queue.
type fakePool struct {
	enqueued []*slack.MentionEvent
	full     bool
}

func (f *fakePool) Enqueue(m *slack.MentionEvent) bool {
	if f.full {
		return false
	}
	f.enqueued = append(f.enqueued, m)
	return true
}

// fakeLinker scripts the OAuth exchange.
type fakeLinker struct {
	exchangeTok *oauth2.Token
	exchangeErr error
	codes       []string
}

func (f *fakeLinker) AuthCodeURL(state string) string {
	return "https://accounts.spotify.test/authorize?state=" + state
}

func (f *fakeLinker) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeTok, nil
}

// testEnv bundles the handler under test with its collaborators and a router.
type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	pool   *fakePool
	linker *fakeLinker
	states *oauthstate.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		db:     newTestDB(t),
		pool:   &fakePool{},
		linker: &fakeLinker{},
		states: oauthstate.New(10 * time.Minute),
	}
	h := New(testSigningSecret, env.pool, env.db, env.linker, env.states)

	r := gin.New()
	r.POST("/slack/events", h.HandleSlackEvents)
	r.GET("/connect", h.Connect)
	r.GET("/callback", h.Callback)
	r.GET("/api/v1/actions", h.ListActions)
	env.router = r
	return env
}
