package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parley/config"
	"parley/internal/auth"
	"parley/internal/directory"
	"parley/internal/handler"
	"parley/internal/metrics"
	"parley/internal/repository/memory"
	"parley/internal/services"
	"parley/internal/storage"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, readiness map[string]HealthCheck) (*Server, *auth.TokenVerifier) {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	dir := directory.NewResolver(store.Profiles(), nil, log)
	conversations := services.NewConversationService(store, dir, nil, nil, log)
	threads := services.NewThreadService(store, nil, nil)
	messages := services.NewMessageService(store, storage.NewMemoryStore("mem://", ""), threads, nil, nil, services.MessageLimits{}, log)
	reactions := services.NewReactionService(store, nil, nil)

	m := metrics.New()
	verifier := auth.NewTokenVerifier("server-secret")
	srv := New(&config.Config{AppPort: "0", AppMode: TestMode}, log)
	srv.SetupRoutes(Dependencies{
		Handlers: &handler.Handlers{
			Conversations: handler.NewConversationHandler(conversations),
			Messages:      handler.NewMessageHandler(messages, threads, reactions, services.NewChatService(conversations, messages), 0),
			Realtime:      handler.NewRealtimeHandler(nil, nil),
		},
		Verifier:  verifier,
		Metrics:   m.Handler(),
		Observer:  m,
		Readiness: readiness,
	})
	return srv, verifier
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestPingAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "parley_http_requests_total")
}

func TestHealthReportsFailingDependency(t *testing.T) {
	srv, _ := newTestServer(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "postgres")
}

func TestAPIRequiresToken(t *testing.T) {
	srv, verifier := newTestServer(t, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/conversations", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := verifier.Issue(uuid.New(), time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(srv, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}
