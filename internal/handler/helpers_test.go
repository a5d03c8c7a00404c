package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/poetry-studio/internal/auth"
	"github.com/sakif/poetry-studio/internal/background"
	"github.com/sakif/poetry-studio/internal/blob"
	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/handler"
	"github.com/sakif/poetry-studio/internal/kv"
	"github.com/sakif/poetry-studio/internal/model"
	sqliteRepo "github.com/sakif/poetry-studio/internal/repository/sqlite"
	"github.com/sakif/poetry-studio/internal/service"
)

const testPassword = "moonlight-sonata"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeGenerator replays partials and then returns result or err.
type fakeGenerator struct {
	partials []string
	result   string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, onPartial func(string)) (string, error) {
	for _, p := range f.partials {
		if onPartial != nil {
			onPartial(p)
		}
	}
	return f.result, f.err
}

var _ generate.Generator = (*fakeGenerator)(nil)

type testEnv struct {
	router *chi.Mux
	poems  *service.PoemService
	tokens *auth.TokenService
	store  *blob.Memory
	picker *background.Picker
	gen    *fakeGenerator
}

type envOption func(*envConfig)

type envConfig struct {
	withAuth    bool
	withoutBlob bool
}

func withAuth() envOption    { return func(c *envConfig) { c.withAuth = true } }
func withoutBlob() envOption { return func(c *envConfig) { c.withoutBlob = true } }

// newTestEnv wires the handlers the way the server does, on an in-memory
// database, an in-memory blob store and a fake generator.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var cfg envConfig
	for _, o := range opts {
		o(&cfg)
	}

	logger := testLogger()
	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		poems: service.NewPoemService(db, logger),
		gen:   &fakeGenerator{},
	}

	var store blob.Store
	if !cfg.withoutBlob {
		env.store = blob.NewMemory("https://cdn.example.com/poems")
		store = env.store
	}
	backgrounds := service.NewBackgroundService(store, logger)
	enhance := service.NewEnhanceService(env.gen, logger)

	env.picker = background.NewPicker(kv.NewMemory(), background.ApplierFunc(func(string) {}), logger,
		background.WithRand(func(int) int { return 0 }))

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	env.tokens = tokens

	var session *handler.AuthHandler
	if cfg.withAuth {
		passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
		hash, err := passwords.Hash(testPassword)
		require.NoError(t, err)
		session = handler.NewAuthHandler(service.NewAuthService(hash, tokens, passwords, logger), tokens.TTL(), false, logger)
	}

	pages, err := handler.NewPageHandler(handler.PageConfig{
		Poems:       env.poems,
		Backgrounds: backgrounds,
		Picker:      env.picker,
		Session:     session,
	}, logger)
	require.NoError(t, err)

	poemHandler := handler.NewPoemHandler(env.poems, logger)
	bgHandler := handler.NewBackgroundHandler(backgrounds, logger)
	enhanceHandler := handler.NewEnhanceHandler(enhance, logger)

	r := chi.NewRouter()
	protect := func(next http.Handler) http.Handler { return next }
	if session != nil {
		protect = auth.RequireAuth(tokens)
		r.Post("/auth/login", session.HandleLogin)
		r.Post("/auth/logout", session.HandleLogout)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/poems/count", poemHandler.HandleCount)
		r.Get("/poems", poemHandler.HandleList)
		r.Get("/poems/{id}", poemHandler.HandleGetByID)
		r.Get("/backgrounds", bgHandler.HandleList)
		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Post("/poems", poemHandler.HandleCreate)
			r.Put("/poems/{id}", poemHandler.HandleUpdate)
			r.Delete("/poems/{id}", poemHandler.HandleDelete)
			r.Post("/backgrounds", bgHandler.HandleUpload)
			r.Delete("/backgrounds", bgHandler.HandleDelete)
			r.Post("/enhance", enhanceHandler.HandleEnhance)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/", pages.HandleEditor)
		r.Get("/history", pages.HandleHistory)
		r.Get("/poem/{id}", pages.HandleDetail)
		r.Get("/login", pages.HandleLoginPage)
		r.Post("/login", pages.HandleLoginForm)
		r.Post("/logout", pages.HandleLogoutForm)
		r.Group(func(r chi.Router) {
			r.Use(pages.RequireSession)
			r.Post("/", pages.HandleCreate)
			r.Get("/poem/{id}/edit", pages.HandleEditor)
			r.Post("/poem/{id}/edit", pages.HandleEdit)
			r.Post("/poem/{id}/delete", pages.HandleDelete)
			r.Post("/settings/background", pages.HandleBackground)
		})
	})

	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, n int) []*model.Poem {
	t.Helper()
	out := make([]*model.Poem, 0, n)
	for i := 1; i <= n; i++ {
		p, err := e.poems.Create(context.Background(), model.PoemInput{
			Title:   "poem " + string(rune('A'+i-1)),
			Content: "line one\nline two",
		})
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
