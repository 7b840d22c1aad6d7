package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/auth"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/cache"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/handler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/middleware"
)

type stubRunner struct{ pulls int }

func (s *stubRunner) EntityTypes() []string { return []string{"listing"} }
func (s *stubRunner) AutoSyncEnabled() bool { return false }

func (s *stubRunner) Pull(context.Context, string) (*integration.SyncSummary, error) {
	s.pulls++
	sum := integration.NewSyncSummary("listing", integration.SyncDirectionPull)
	sum.Finish()
	return sum, nil
}

func (s *stubRunner) PullAll(context.Context) ([]*integration.SyncSummary, error) { return nil, nil }

func (s *stubRunner) Push(context.Context, string) (*integration.SyncSummary, error) {
	return nil, integration.ErrRemoteNotConfigured
}

func (s *stubRunner) PushEntity(context.Context, uuid.UUID) (*integration.SyncSummary, error) {
	return nil, integration.ErrEntityNotFound
}

func (s *stubRunner) Diagnose(context.Context, string) (*integration.DiagnosticReport, error) {
	return &integration.DiagnosticReport{Message: "ok"}, nil
}

func (s *stubRunner) TestConnection(context.Context, string) (string, error) {
	return "Connection successful", nil
}

type apiFixture struct {
	engine http.Handler
	tokens *auth.TokenService
	nonces *cache.InMemoryNonceStore
	runner *stubRunner
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	tokens, err := auth.NewTokenService(config.AuthConfig{
		AdminSecret: "router-test-secret-at-least-32-characters",
		Issuer:      "sync-admin",
	})
	require.NoError(t, err)
	nonces := cache.NewInMemoryNonceStore()
	t.Cleanup(func() { _ = nonces.Close() })

	runner := &stubRunner{}
	system := handler.NewSystemHandler("listing-sync", "test", nil)
	engine, err := NewEngine(EngineConfig{ServiceName: "listing-sync", CORS: middleware.DefaultCORSConfig()}, system)
	require.NoError(t, err)

	guards := NewGuards(tokens, nonces, true, nil, nil)
	NewRouter(engine).Register(
		SyncRoutes(handler.NewSyncHandler(runner, nil, nil, nil), guards),
		AuthRoutes(handler.NewAuthHandler(nonces, time.Minute), guards),
	).Setup()

	return &apiFixture{engine: engine, tokens: tokens, nonces: nonces, runner: runner}
}

func (f *apiFixture) token(t *testing.T, scopes ...auth.Scope) string {
	t.Helper()
	tok, err := f.tokens.Issue("operator", scopes, 0)
	require.NoError(t, err)
	return tok.Token
}

func (f *apiFixture) do(method, path, token, nonce string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, "Bearer "+token)
	}
	if nonce != "" {
		req.Header.Set(middleware.NonceHeader, nonce)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAPI_HealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/api/v1/sync/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_ReadScope(t *testing.T) {
	f := newAPIFixture(t)
	reader := f.token(t, auth.ScopeSyncRead)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/sync/status", reader, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/sync/listing/test-connection", reader, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/sync/listing/validate-field-types", reader, "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/sync/listing/pull", reader, "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/auth/nonce", reader, "").Code)
	assert.Zero(t, f.runner.pulls)
}

func TestAPI_WriteNeedsNonce(t *testing.T) {
	f := newAPIFixture(t)
	writer := f.token(t, auth.ScopeSyncWrite)

	noNonce := f.do(http.MethodPost, "/api/v1/sync/listing/pull", writer, "")
	assert.Equal(t, http.StatusForbidden, noNonce.Code)
	assert.Contains(t, noNonce.Body.String(), "ERR_NONCE_INVALID")

	issued := f.do(http.MethodPost, "/api/v1/auth/nonce", writer, "")
	require.Equal(t, http.StatusCreated, issued.Code)
	nonce := extractNonce(t, issued.Body.String())

	pulled := f.do(http.MethodPost, "/api/v1/sync/listing/pull", writer, nonce)
	require.Equal(t, http.StatusOK, pulled.Code)
	assert.Equal(t, 1, f.runner.pulls)

	replay := f.do(http.MethodPost, "/api/v1/sync/listing/pull", writer, nonce)
	assert.Equal(t, http.StatusForbidden, replay.Code)
	assert.Equal(t, 1, f.runner.pulls)
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	writer := f.token(t, auth.ScopeSyncWrite)

	nonce, err := f.nonces.Issue(context.Background(), "operator", time.Minute)
	require.NoError(t, err)
	w := f.do(http.MethodPost, "/api/v1/sync/listing/push", writer, nonce)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REMOTE_NOT_CONFIGURED")

	nonce, err = f.nonces.Issue(context.Background(), "operator", time.Minute)
	require.NoError(t, err)
	w = f.do(http.MethodPost, "/api/v1/sync/entities/"+uuid.NewString()+"/push", writer, nonce)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func extractNonce(t *testing.T, body string) string {
	t.Helper()
	const key = `"nonce":"`
	i := strings.Index(body, key)
	require.GreaterOrEqual(t, i, 0, body)
	rest := body[i+len(key):]
	return rest[:strings.Index(rest, `"`)]
}
