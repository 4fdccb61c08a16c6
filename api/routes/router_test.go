package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacommerce-backend/internal/orchestrator"
	pkgAuth "github.com/angelmondragon/wacommerce-backend/pkg/auth"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type countingDispatcher struct{ n int }

func (c *countingDispatcher) Dispatch(_ context.Context, msgs ...orchestrator.Inbound) { c.n += len(msgs) }

type stubCatalog struct{ calls int }

func (s *stubCatalog) Invalidate(context.Context, int64) error { s.calls++; return nil }

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "wacommerce", TTL: time.Hour},
		Gateway: config.GatewayConfig{VerifyToken: "verify-me"},
	}
}

func TestRouterWiring(t *testing.T) {
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewConversationMetrics(reg).IncInbound(metrics.OutcomeHandled)
	dispatcher := &countingDispatcher{}
	catalog := &stubCatalog{}
	router := NewRouter(cfg, logger.Nop(), Deps{
		DB:         stubPinger{},
		Redis:      stubPinger{},
		Metrics:    reg,
		Dispatcher: dispatcher,
		Catalog:    catalog,
	})

	do := func(method, target, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health/ready", "", "").Code)

	rec := do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wacommerce_inbound_messages_total")

	rec = do(http.MethodPost, "/api/v1/webhooks/waha",
		`{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@c.us","body":"salut"}}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dispatcher.n)

	rec = do(http.MethodGet, "/api/v1/webhooks/cloud?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=c1", "", "")
	assert.Equal(t, "c1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/api/v1/merchant/catalog/invalidate", "", "").Code)

	token, err := pkgAuth.MintMerchantToken(cfg.JWT, time.Now(), 3)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/merchant/catalog/invalidate", "", token).Code)
	assert.Equal(t, 1, catalog.calls)
}
