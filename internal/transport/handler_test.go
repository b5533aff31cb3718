package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-counter-deck/internal/auth"
	"go-counter-deck/internal/cards"
	"go-counter-deck/internal/config"
	"go-counter-deck/internal/observer"
	"go-counter-deck/internal/repository"
	"go-counter-deck/internal/service"
	"go-counter-deck/internal/vision"
	"go-counter-deck/pkg/models"
)

const (
	testSecret    = "jwt-test-secret"
	webhookSecret = "hook-secret"
	fixedPayload  = `{"enemyDeck":[{"name":"Gigante","icon":"🗿"}],"counterDeck":[],"counterName":"Ciclo de Corredor","isAbsoluteCounter":false}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingExtractor struct{ calls int }

func (e *countingExtractor) Extract(ctx context.Context, image string) (*vision.Extraction, error) {
	e.calls++
	return vision.NewStubExtractor().Extract(ctx, image)
}

type stubAnalyzer struct {
	calls int
	reply string
}

func (a *stubAnalyzer) Analyze(context.Context, string) (string, error) {
	a.calls++
	return a.reply, nil
}

type testServer struct {
	handler   http.Handler
	auth      *auth.Authenticator
	store     *repository.MemoryStore
	extractor *countingExtractor
	analyzer  *stubAnalyzer
}

func newTestServer(t *testing.T, reply string) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(metrics)

	ts := &testServer{
		auth:      auth.NewAuthenticator(testSecret, store),
		store:     store,
		extractor: &countingExtractor{},
		analyzer:  &stubAnalyzer{reply: reply},
	}

	cfg := config.Defaults()
	cfg.WebhookSecret = webhookSecret
	cfg.MaxRequestBodySize = 64 * 1024

	ts.handler = NewHandler(Dependencies{
		Analysis: service.NewDeckAnalysisService(service.Dependencies{
			Extractor: ts.extractor,
			Analyzer:  ts.analyzer,
			Catalog:   cards.DefaultCatalog(),
			History:   store,
			Events:    events,
		}),
		Subscriptions: service.NewSubscriptionService(store, store, ""),
		Auth:          ts.auth,
		Metrics:       metrics,
		Store:         store,
	}, cfg)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := ts.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAnalyzeDeckReturnsPayloadUnchanged(t *testing.T) {
	ts := newTestServer(t, "```json\n"+fixedPayload+"\n```")

	body := `{"deckText":"Gigante, Bruxa, Príncipe, Dragão Infernal, Valquíria, Zap, Bola de Fogo, Coletor de Elixir","arena":5,"isPremium":false}`
	w := ts.do(t, http.MethodPost, "/analyze-deck", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fixedPayload, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, ts.analyzer.calls)
}

func TestAnalyzeDeckImageForbiddenForFree(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"image":"data:image/png;base64,AAA=","isPremium":false}`, nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Upload de imagens é exclusivo para Premium"}`, w.Body.String())
	assert.Equal(t, 0, ts.extractor.calls)
	assert.Equal(t, 0, ts.analyzer.calls)
}

func TestAnalyzeDeckIgnoresPremiumFlagWithoutToken(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"image":"data:image/png;base64,AAA=","isPremium":true}`, nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Upload de imagens é exclusivo para Premium"}`, w.Body.String())
	assert.Equal(t, 0, ts.extractor.calls)
	assert.Equal(t, 0, ts.analyzer.calls)
}

func TestAnalyzeDeckPassesThroughLooselyTypedReply(t *testing.T) {
	reply := `{"counterDeck":[{"name":"Zap","counters":"Gigante"}],"counterName":"Ciclo","isAbsoluteCounter":"true"}`
	ts := newTestServer(t, "```json\n"+reply+"\n```")

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"deckText":"Gigante"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reply, w.Body.String())
}

func TestAnalyzeDeckMalformedReply(t *testing.T) {
	ts := newTestServer(t, "not json")

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"deckText":"x"}`, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Resposta da IA não está em formato JSON válido", resp.Error)
}

func TestAnalyzeDeckMissingInput(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{}`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Imagem ou texto do deck não fornecido"}`, w.Body.String())
	assert.Equal(t, 0, ts.extractor.calls+ts.analyzer.calls)
}

func TestAnalyzeDeckBadBody(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"deckText":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := `{"deckText":"` + strings.Repeat("a", 70*1024) + `"}`
	w = ts.do(t, http.MethodPost, "/analyze-deck", big, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, ts.analyzer.calls)
}

func TestAnalyzeDeckPremiumImageWithToken(t *testing.T) {
	ts := newTestServer(t, fixedPayload)
	_, err := ts.store.UpsertEntitlement(context.Background(), &models.Entitlement{UserID: "user-p", Tier: models.TierPremium})
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"image":"data:image/png;base64,AAA="}`, ts.bearer(t, "user-p"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.extractor.calls)

	w = ts.do(t, http.MethodGet, "/analyses", "", ts.bearer(t, "user-p"))
	require.Equal(t, http.StatusOK, w.Code)
	var history models.AnalysisHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Analyses, 1)
	assert.Equal(t, "Ciclo de Corredor", history.Analyses[0].CounterName)
	assert.Equal(t, models.InputKindImage, history.Analyses[0].InputKind)
}

func TestAnalyzeDeckInvalidToken(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodPost, "/analyze-deck", `{"deckText":"x"}`, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, ts.analyzer.calls)
}

func TestPreflight(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	for _, path := range []string{"/analyze-deck", "/subscriptions/me", "/anything"} {
		w := ts.do(t, http.MethodOptions, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, fixedPayload)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"available"`)
	assert.Contains(t, w.Body.String(), `"storage":"ok"`)

	ts.do(t, http.MethodPost, "/analyze-deck", `{"deckText":"Golem"}`, nil)
	ts.do(t, http.MethodPost, "/analyze-deck", `{}`, nil)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m observer.Metrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(1), m.TotalAnalyses)
	assert.Equal(t, int64(1), m.SuccessfulAnalyses)
	assert.Equal(t, int64(1), m.RejectedAnalyses)
}

func TestSubscriptionRoutes(t *testing.T) {
	ts := newTestServer(t, fixedPayload)
	headers := ts.bearer(t, "user-1")

	w := ts.do(t, http.MethodGet, "/subscriptions/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/subscriptions/free", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"free"`)

	w = ts.do(t, http.MethodGet, "/subscriptions/me", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isPremium":false`)

	w = ts.do(t, http.MethodPost, "/subscriptions/checkout", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Integração com Abacate Pay será implementada em breve","checkout_url":"https://abacatepay.com"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/analyses", "", headers)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t, fixedPayload)
	body := `{"userId":"user-1","subscriptionId":"sub_9"}`

	w := ts.do(t, http.MethodPost, "/webhooks/payment", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/webhooks/payment", body, map[string]string{WebhookSecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/webhooks/payment", `{"subscriptionId":"x"}`, map[string]string{WebhookSecretHeader: webhookSecret})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/webhooks/payment", body, map[string]string{WebhookSecretHeader: webhookSecret})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/subscriptions/me", "", ts.bearer(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isPremium":true`)

	// the upgraded user can now send screenshots
	w = ts.do(t, http.MethodPost, "/analyze-deck", `{"image":"data:image/png;base64,AAA="}`, ts.bearer(t, "user-1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalysesLimitValidation(t *testing.T) {
	ts := newTestServer(t, fixedPayload)
	_, err := ts.store.UpsertEntitlement(context.Background(), &models.Entitlement{UserID: "user-p", Tier: models.TierPremium})
	require.NoError(t, err)

	for _, limit := range []string{"abc", "0", "-1"} {
		w := ts.do(t, http.MethodGet, "/analyses?limit="+limit, "", ts.bearer(t, "user-p"))
		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
	}

	w := ts.do(t, http.MethodGet, "/analyses?limit=5", "", ts.bearer(t, "user-p"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analyses":[]}`, w.Body.String())
}
