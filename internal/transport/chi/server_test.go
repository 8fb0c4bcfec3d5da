package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"patchdiff/internal/correlate"
	"patchdiff/internal/metrics"
	"patchdiff/internal/output"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newTestServerLimit(t, 1<<20)
}

func newTestServerLimit(t *testing.T, maxBody int64) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatal(err)
	}
	return NewServer(Config{
		Defaults:     correlate.DefaultOptions(),
		Workers:      2,
		MaxBodyBytes: maxBody,
		Gatherer:     reg,
	}, nil).Router()
}

const correlateBody = `{
  "source": [
    {"name": "foo", "address": 4096, "instructions": [
      {"mnemonic": "mov"}, {"mnemonic": "add"}, {"mnemonic": "mov"}, {"mnemonic": "jmp"}]},
    {"name": "bar", "address": 8192, "instructions": [{"mnemonic": "mov"}, {"mnemonic": "add"}]}
  ],
  "destination": [
    {"name": "foo", "address": 12288, "instructions": [
      {"mnemonic": "jmp"}, {"mnemonic": "mov"}, {"mnemonic": "mov"}, {"mnemonic": "add"}]},
    {"name": "baz", "address": 16384, "instructions": [{"mnemonic": "mov"}, {"mnemonic": "sub"}]}
  ]%s
}`

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/correlate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCorrelateDefaults(t *testing.T) {
	h := newTestServer(t)
	rr := post(t, h, strings.Replace(correlateBody, "%s", "", 1))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var rep output.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Correlator != correlate.Name {
		t.Errorf("correlator = %q", rep.Correlator)
	}
	if len(rep.Matches) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(rep.Matches), rep.Matches)
	}
	m := rep.Matches[0]
	if m.Source.Name != "foo" || m.Destination.Address != 12288 || m.Similarity != 1 || m.Confidence != 10 {
		t.Errorf("match = %+v", m)
	}
}

func TestCorrelateOptionOverrides(t *testing.T) {
	h := newTestServer(t)
	opts := `, "options": {"symbol_names_must_match": false, "similarity_threshold": 0.3}`
	rr := post(t, h, strings.Replace(correlateBody, "%s", opts, 1))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var rep output.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	// foo/foo 1.0, bar/foo 0.5, bar/baz 1/3, foo/baz 1/5 (dropped).
	if len(rep.Matches) != 3 {
		t.Fatalf("got %d matches, want 3: %+v", len(rep.Matches), rep.Matches)
	}
	if rep.Options.SymbolNamesMustMatch || rep.Options.SimilarityThreshold != 0.3 {
		t.Errorf("options = %+v", rep.Options)
	}

	rr = post(t, h, strings.Replace(correlateBody, "%s", opts[:len(opts)-1]+`}, "best_per_source": true`, 1))
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Matches) != 2 {
		t.Errorf("best_per_source: got %d matches, want 2", len(rep.Matches))
	}
}

func TestCorrelateRejectsBadInput(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name, body, code string
	}{
		{"malformed", `{"source": [`, CodeBadRequest},
		{"threshold", strings.Replace(correlateBody, "%s", `, "options": {"similarity_threshold": 2}`, 1), CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, h, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			var er ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
				t.Fatal(err)
			}
			if er.Code != tt.code {
				t.Errorf("code = %q, want %q", er.Code, tt.code)
			}
		})
	}
}

func TestCorrelateEmpty(t *testing.T) {
	rr := post(t, newTestServer(t), `{"source": [], "destination": [null]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"matches":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)
	post(t, h, strings.Replace(correlateBody, "%s", "", 1))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("healthz: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "patchdiff_correlation_runs_total") {
		t.Errorf("metrics output missing run counter")
	}
}

func TestCorrelateBodyTooLarge(t *testing.T) {
	h := newTestServerLimit(t, 64)
	rr := post(t, h, strings.Replace(correlateBody, "%s", "", 1))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var er ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatal(err)
	}
	if er.Code != CodeTooLarge || !strings.Contains(er.Message, "64 bytes") {
		t.Errorf("error = %+v", er)
	}
}
