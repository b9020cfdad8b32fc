package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandochealth/triage/internal/triage"
	"github.com/pandochealth/triage/pkg/logging"
)

type stubTurnService struct{}

func (stubTurnService) ProcessTurn(context.Context, triage.TurnRequest) (triage.TurnResponse, error) {
	return triage.TurnResponse{Reply: "ok", Intent: triage.IntentGreeting}, nil
}

func (stubTurnService) Reset(context.Context, triage.SessionKey) error { return nil }

type stubIngestor struct{}

func (stubIngestor) Ingest(context.Context, []triage.KnowledgeCard) error { return nil }

func testRouter() http.Handler {
	logger := logging.New("error")
	return New(&Config{
		Logger:          logger,
		TriageHandler:   triage.NewHandler(stubTurnService{}, logger),
		IngestHandler:   triage.NewIngestHandler(stubIngestor{}, logger),
		AdminAuthSecret: "secret",
	})
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouterAIHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ai/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterChat(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"hello"}`))
	testRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"ok"`)
}

func TestRouterIngestRequiresAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ai/ingest", strings.NewReader(`[]`))
	testRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
