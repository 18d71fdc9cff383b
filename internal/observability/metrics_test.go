package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/jobs/42":                      "/api/v1/jobs/{id}",
		"/api/v1/properties/7/tenants/9":       "/api/v1/properties/{id}/tenants/{id}",
		"/api/v1/jobs":                         "/api/v1/jobs",
		"/api/v1/jobs/0b8f6a6e-9d0a-4a5b-8f6a-9d0a4a5b8f6a": "/api/v1/jobs/{id}",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetricsHandlerOutput(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "alarmtrack", Version: "test"})
	m.RecordHTTPRequest("GET", "/api/v1/jobs/3", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/jobs/9", 200, 10*time.Millisecond)
	m.RecordRateLimitRejected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `alarmtrack_http_requests_total{method="GET",path="/api/v1/jobs/{id}",status="200"} 2`) {
		t.Fatalf("request counter missing or not aggregated:\n%s", body)
	}
	if !strings.Contains(body, `alarmtrack_rate_limit_requests_total{status="rejected"} 1`) {
		t.Fatalf("rate limit counter missing:\n%s", body)
	}
	if !strings.Contains(body, `alarmtrack_info{version="test"} 1`) {
		t.Fatalf("info metric missing:\n%s", body)
	}
}

func TestMetricsMiddlewareRecordsStatus(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	h := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/5", nil))

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(out.Body.String(), `status="404"} 1`) {
		t.Fatalf("middleware should record the response status:\n%s", out.Body.String())
	}
}
