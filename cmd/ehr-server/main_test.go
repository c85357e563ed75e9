package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/clinicalquery/internal/config"
	"github.com/ehr/clinicalquery/internal/domain/clinical"
	"github.com/ehr/clinicalquery/internal/domain/research"
	"github.com/ehr/clinicalquery/internal/platform/idgen/idgentest"
)

func newTestServer(t *testing.T, opts ...func(*config.Config)) *echo.Echo {
	t.Helper()
	store, err := clinical.LoadStore("")
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	catalog, err := research.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg := &config.Config{
		Port:           "8001",
		Env:            "test",
		LogLevel:       "info",
		AllowOrigins:   []string{"*"},
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "64K",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	d := &deps{store: store, catalog: catalog, orderID: &idgentest.Sequence{Prefix: "test"}}
	return newServer(cfg, d, zerolog.Nop())
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	detail, _ := body["detail"].(string)
	return detail
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", got)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestServer_Summary(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/patients/12873/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary clinical.PatientSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Demographics.MRN != "12873" {
		t.Errorf("expected mrn 12873, got %s", summary.Demographics.MRN)
	}

	rec = do(e, http.MethodGet, "/patients/99999/summary", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if d := detailOf(t, rec); d != "Patient not found" {
		t.Errorf("unexpected detail %q", d)
	}
}

func TestServer_Labs(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/patients/12345/labs?names=hba1c&last_n=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := `{"patient_id":"12345","labs":[{"name":"HbA1c","value":7.4,"unit":"%","collected_at":"2024-09-10T08:30:00"}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("unexpected body\n got: %s\nwant: %s", got, want)
	}

	rec = do(e, http.MethodGet, "/patients/12345/labs?last_n=abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("non-integer last_n: expected 200, got %d", rec.Code)
	}
	var all clinical.LabsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all.Labs) != 5 {
		t.Errorf("non-integer last_n should not truncate, got %d labs", len(all.Labs))
	}

	cases := []struct {
		target string
		code   int
		detail string
	}{
		{"/patients/99999/labs", http.StatusNotFound, "Patient not found or no lab history"},
		{"/patients/99999/labs?last_n=abc", http.StatusNotFound, "Patient not found or no lab history"},
		{"/patients/12345/labs?last_n=0", http.StatusUnprocessableEntity, "last_n must be greater than zero"},
		{"/patients/12345/labs?last_n=-2", http.StatusUnprocessableEntity, "last_n must be greater than zero"},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodGet, tc.target, "")
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.target, tc.code, rec.Code)
			continue
		}
		if d := detailOf(t, rec); d != tc.detail {
			t.Errorf("%s: unexpected detail %q", tc.target, d)
		}
	}
}

func TestServer_MedicationOrder(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/orders/medication",
		`{"patient_id":"12345","medication":"Metformin","dose":"500 mg","route":"PO","frequency":"BID"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"order_id":"draft-test-1","status":"draft created"}` {
		t.Errorf("unexpected body %s", got)
	}

	rec = do(e, http.MethodPost, "/orders/medication",
		`{"patient_id":"12345","medication":"Metformin","frequency":"BID"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if d := detailOf(t, rec); d != "Missing required fields: dose, route" {
		t.Errorf("unexpected detail %q", d)
	}
}

func TestServer_EvidenceSearch(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/evidence/search", `{"condition":"T2DM","geo":{"radius_km":13}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res research.EvidenceSearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.NearbyTrials) != 1 || res.NearbyTrials[0].ID != "NCT05566789" {
		t.Errorf("expected only NCT05566789, got %+v", res.NearbyTrials)
	}

	for _, body := range []string{`{"condition":"T2DM"}`, `{"geo":{"radius_km":"abc"}}`} {
		rec := do(e, http.MethodPost, "/evidence/search", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
			continue
		}
		if d := detailOf(t, rec); d != "Invalid or missing geo.radius_km" {
			t.Errorf("%s: unexpected detail %q", body, d)
		}
	}
}

func TestServer_CORS(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/patients/12345/summary", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("expected allow-origin *, got %q", got)
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	e := newTestServer(t)
	body := `{"patient_id":"` + strings.Repeat("1", 70_000) + `"}`
	rec := do(e, http.MethodPost, "/orders/medication", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on error responses")
	}
}

func TestServer_LargeBodyWithinLimit(t *testing.T) {
	e := newTestServer(t, func(cfg *config.Config) { cfg.BodyLimit = "5M" })
	body := `{"patient_id":"12345","medication":"Metformin","dose":"500 mg","route":"PO","frequency":"BID","note":"` +
		strings.Repeat("n", 1<<20) + `"}`
	rec := do(e, http.MethodPost, "/orders/medication", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a %d-byte order under a 5M limit, got %d: %s", len(body), rec.Code, rec.Body.String())
	}
}

// slowBody delivers its content only after a delay, like a stalled upload.
type slowBody struct {
	delay time.Duration
	data  io.Reader
	once  sync.Once
}

func (b *slowBody) Read(p []byte) (int, error) {
	b.once.Do(func() { time.Sleep(b.delay) })
	return b.data.Read(p)
}

func TestServer_SlowUploadTimesOut(t *testing.T) {
	e := newTestServer(t, func(cfg *config.Config) { cfg.RequestTimeout = 20 * time.Millisecond })
	order := `{"patient_id":"12345","medication":"Metformin","dose":"500 mg","route":"PO","frequency":"BID"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/medication",
		&slowBody{delay: 60 * time.Millisecond, data: strings.NewReader(order)})
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", rec.Code, rec.Body.String())
	}
	if d := detailOf(t, rec); d != "request timed out" {
		t.Errorf("unexpected detail %q", d)
	}

	// The next request on the same server is unaffected.
	rec = do(e, http.MethodGet, "/patients/12345/summary", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after a timed-out request, got %d", rec.Code)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if d := detailOf(t, rec); d == "" {
		t.Error("expected a detail message")
	}
}

func TestServer_ConcurrentLabsMatchSequential(t *testing.T) {
	e := newTestServer(t)
	targets := []string{
		"/patients/12345/labs",
		"/patients/12873/labs?names=eGFR&last_n=2",
		"/patients/12345/labs?names=LDL,HbA1c",
	}
	want := make(map[string]string, len(targets))
	for _, target := range targets {
		want[target] = do(e, http.MethodGet, target, "").Body.String()
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		target := targets[i%len(targets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := do(e, http.MethodGet, target, "").Body.String(); got != want[target] {
				errs <- target
			}
		}()
	}
	wg.Wait()
	close(errs)
	for target := range errs {
		t.Errorf("concurrent result for %s differed from sequential", target)
	}
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("DATASET_PATH", "")
	t.Setenv("TRIAL_CATALOG_PATH", "")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", t.TempDir() + "/missing.env"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCLI_Patients(t *testing.T) {
	out := runCLI(t, "patients")
	if !strings.Contains(out, "12345\t5 labs") || !strings.Contains(out, "12873\t6 labs") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCLI_Labs(t *testing.T) {
	out := runCLI(t, "labs", "12873", "--names", "eGFR", "--last-n", "1")
	var resp clinical.LabsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(resp.Labs) != 1 || resp.Labs[0].Value != 44.0 {
		t.Errorf("unexpected labs %+v", resp.Labs)
	}
}

func TestCLI_Evidence(t *testing.T) {
	out := runCLI(t, "evidence", "--radius-km", "50")
	var res research.EvidenceSearchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(res.NearbyTrials) != 2 {
		t.Errorf("expected 2 trials, got %d", len(res.NearbyTrials))
	}
}
