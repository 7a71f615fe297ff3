package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/uootd-quotes/internal/assets"
	"github.com/wolfman30/uootd-quotes/internal/auth"
	"github.com/wolfman30/uootd-quotes/internal/leads"
	"github.com/wolfman30/uootd-quotes/internal/observability/metrics"
	"github.com/wolfman30/uootd-quotes/internal/quote"
	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.NewWithWriter(io.Discard, "error")
	reg := prometheus.NewRegistry()
	m := metrics.NewQuoteMetrics(reg)
	sessions := auth.NewSessionManager(testSecret, time.Minute, false)

	assetStore := assets.NewStore(nil, assets.Config{DataDir: t.TempDir(), Logger: logger, Observer: m})
	quoteService := quote.NewService(nil, assetStore, quote.Options{Logger: logger, Observer: m})
	leadService := leads.NewService(leads.NewInMemoryRepository(), leads.ServiceOptions{Assets: assetStore, Logger: logger})
	limiter := ratelimit.New(nil, ratelimit.Config{Window: time.Minute, Limit: 2}, logger)

	return New(&Config{
		Logger:            logger,
		QuoteHandler:      quote.NewHandler(quoteService, logger),
		LeadsHandler:      leads.NewHandler(leadService, sessions, logger),
		AssetsHandler:     assets.NewHandler(assetStore, sessions, logger),
		AuthHandler:       auth.NewHandler(auth.NewAuthenticator("", "", ""), sessions, logger),
		Sessions:          sessions,
		QuoteLimiter:      limiter,
		RateLimitObserver: m,
		MetricsHandler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := auth.NewSessionManager(testSecret, time.Minute, false).Sign("admin@example.com")
	if err != nil {
		t.Fatalf("sign session: %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func serve(r http.Handler, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/health", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterQuoteRateLimited(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rr := serve(r, http.MethodPost, "/api/quote", `{"imageUrl":"https://cdn.example.com/tote.png"}`, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d: %s", i, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("expected rate limit header, got %q", rr.Header().Get("X-RateLimit-Limit"))
		}
	}

	rr := serve(r, http.MethodPost, "/api/quote", `{}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	rr = serve(r, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rr.Body.String(), "uootd_ratelimit_rejected_total 1") {
		t.Fatalf("expected rejection metric, got:\n%s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `uootd_quote_generated_total{category="BAG",source="default"} 2`) {
		t.Fatalf("expected quote metric, got:\n%s", rr.Body.String())
	}
}

func TestRouterCompositeNotRateLimited(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 4; i++ {
		rr := serve(r, http.MethodPost, "/api/composite", `{"imageUrl":"https://cdn.example.com/a.png"}`, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
}

func TestRouterLeadsFlow(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodPost, "/api/leads", `{"paypal":"buyer@example.com","whatsapp":"+1 415 555 2671","quoteUsd":245}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created leads.CreateLeadResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	if rr := serve(r, http.MethodGet, "/api/leads", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}

	rr = serve(r, http.MethodGet, "/api/leads", "", adminCookie(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var list leads.ListResult
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 || list.Leads[0].ID != created.Lead.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = serve(r, http.MethodDelete, "/api/leads?id="+created.Lead.ID, "", adminCookie(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterAssetsRequireSession(t *testing.T) {
	r := newTestRouter(t)

	if rr := serve(r, http.MethodGet, "/api/assets/q-1", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := serve(r, http.MethodGet, "/api/assets/q-1", "", adminCookie(t)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown asset, got %d", rr.Code)
	}
}

func TestRouterAuthRoutes(t *testing.T) {
	r := newTestRouter(t)

	rr := serve(r, http.MethodPost, "/api/auth/logout", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", rr.Code)
	}
	rr = serve(r, http.MethodPost, "/api/auth/login", `{}`, nil)
	if rr.Code == http.StatusNotFound || rr.Code == http.StatusMethodNotAllowed {
		t.Fatalf("login route not registered, got %d", rr.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/api/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
