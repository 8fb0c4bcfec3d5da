package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/{id}", "404"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/items/7", http.NoBody))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/{id}", "404"))
	if after-before != 1 {
		t.Errorf("http_requests_total delta = %v, want 1", after-before)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	PairsEvaluatedTotal.Add(3)
	n, err := testutil.GatherAndCount(reg, "patchdiff_correlation_pairs_evaluated_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("gathered %d series, want 1", n)
	}
}

func TestMiddlewareUnmatchedAndBodySize(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/correlate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	beforeMiss := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", http.NoBody))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")) - beforeMiss; got != 1 {
		t.Errorf("unmatched delta = %v, want 1", got)
	}

	beforeOK := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/correlate", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/correlate", strings.NewReader(`{"source":[]}`)))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/correlate", "200")) - beforeOK; got != 1 {
		t.Errorf("implicit 200 delta = %v, want 1", got)
	}
	if testutil.CollectAndCount(httpRequestBytes) == 0 {
		t.Error("expected body size observations")
	}
}
