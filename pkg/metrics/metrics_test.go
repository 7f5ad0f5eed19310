package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/trustgate/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MetricsはDecisionRecorderを満たす。
var _ middleware.DecisionRecorder = (*Metrics)(nil)

// TestRecordGateDecision はゲート判定の記録を検証する。
func TestRecordGateDecision(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordGateDecision("trusted_header_auth", "forbidden")
	m.RecordGateDecision("trusted_header_auth", "forbidden")
	m.RecordGateDecision("trusted_forwarded_for", "attach")

	if got := testutil.ToFloat64(m.gateDecisions.WithLabelValues("trusted_header_auth", "forbidden")); got != 2 {
		t.Errorf("forbidden = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.gateDecisions.WithLabelValues("trusted_forwarded_for", "attach")); got != 1 {
		t.Errorf("attach = %v, want 1", got)
	}
}

// TestMiddleware はHTTPリクエストの記録を検証する。
func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("ルートのパターンをラベルに使うこと", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())
		router.GET("/hello/:name", func(c *gin.Context) {
			c.String(http.StatusOK, "Hello, %s!", c.Param("name"))
		})

		for _, name := range []string{"alice", "bob"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hello/"+name, nil))
		}

		if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/hello/:name", "200")); got != 2 {
			t.Errorf("http_requests_total = %v, want 2", got)
		}
	})

	t.Run("一致しないルートはunmatchedになること", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

		if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", unmatchedRoute, "404")); got != 1 {
			t.Errorf("http_requests_total = %v, want 1", got)
		}
	})

	t.Run("ゲートが拒否したステータスも記録されること", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())
		router.Use(middleware.TrustedHeaderAuth(middleware.DisabledHeaderAuth(), m))
		router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-User", "mallory@example.com")
		router.ServeHTTP(httptest.NewRecorder(), req)

		if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/", "403")); got != 1 {
			t.Errorf("http_requests_total = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.gateDecisions.WithLabelValues("trusted_header_auth", "forbidden")); got != 1 {
			t.Errorf("gate_decisions_total = %v, want 1", got)
		}
	})
}

// TestHandler は/metricsの出力を検証する。
func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordGateDecision("trusted_header_auth", "attach")
	m.ObserveRequest("GET", "/", http.StatusOK, 5*time.Millisecond)

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GETに失敗: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ボディの読み込みに失敗: %v", err)
	}

	for _, want := range []string{
		`trustgate_gate_decisions_total{gate="trusted_header_auth",outcome="attach"} 1`,
		`trustgate_http_requests_total{method="GET",route="/",status="200"} 1`,
		"trustgate_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("出力に %q が含まれていない", want)
		}
	}
}
