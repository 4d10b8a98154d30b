package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
	"github.com/xampla/insider-bot/internal/risk"
	"github.com/xampla/insider-bot/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSettings struct {
	mu    sync.Mutex
	items map[string]models.SystemSetting
}

func (s *stubSettings) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[string]models.SystemSetting{}
	}
	s.items[item.Key] = *item
	return nil
}

func (s *stubSettings) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (s *stubSettings) ListSystemSettings(_ context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SystemSetting
	for k, it := range s.items {
		if params.Prefix == nil || strings.HasPrefix(k, *params.Prefix) {
			out = append(out, it)
		}
	}
	return out, nil
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var out apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRequireBearerMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequireBearerMiddleware("s3cret"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/status", func(c *gin.Context) { Ok(c, "up", nil) })

	cases := []struct {
		path   string
		auth   string
		status int
	}{
		{"/healthz", "", http.StatusOK},
		{"/api/v1/status", "", http.StatusUnauthorized},
		{"/api/v1/status", "Bearer nope", http.StatusUnauthorized},
		{"/api/v1/status", "Bearer s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		rec := do(r, http.MethodGet, tc.path, "", map[string]string{"Authorization": tc.auth})
		if rec.Code != tc.status {
			t.Fatalf("%s auth=%q status=%d want=%d", tc.path, tc.auth, rec.Code, tc.status)
		}
	}

	open := gin.New()
	open.Use(RequireBearerMiddleware(""))
	open.GET("/api/v1/status", func(c *gin.Context) { Ok(c, "up", nil) })
	if rec := do(open, http.MethodGet, "/api/v1/status", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("empty token status=%d want 200", rec.Code)
	}
}

func TestSettingsSwitches(t *testing.T) {
	repo := &stubSettings{}
	settings := &service.SystemSettingsService{Repo: repo}
	_ = settings.EnsureDefaultSwitches(context.Background())
	r := gin.New()
	(&SettingsHandler{Repo: repo, Settings: settings}).Register(r)

	if rec := do(r, http.MethodPut, "/api/v1/settings/switches/nope", `{"enabled":false}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown switch status=%d want 404", rec.Code)
	}
	if rec := do(r, http.MethodPut, "/api/v1/settings/switches/trade_executor", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled status=%d want 400", rec.Code)
	}
	rec := do(r, http.MethodPut, "/api/v1/settings/switches/trade_executor", `{"enabled":false}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if settings.IsEnabled(context.Background(), service.FeatureTradeExecutor, true) {
		t.Fatalf("switch still enabled")
	}

	rec = do(r, http.MethodGet, "/api/v1/settings/switches", "", nil)
	resp := decode(t, rec)
	if list, ok := resp.Data.([]any); !ok || len(list) != len(service.DefaultFeatureSwitches()) {
		t.Fatalf("switches=%v", resp.Data)
	}
}

func TestSettingsScalingFactorBounds(t *testing.T) {
	repo := &stubSettings{}
	settings := &service.SystemSettingsService{Repo: repo}
	r := gin.New()
	(&SettingsHandler{Repo: repo, Settings: settings}).Register(r)

	for _, body := range []string{`{"value":0}`, `{"value":-1}`, `{"value":9}`} {
		if rec := do(r, http.MethodPut, "/api/v1/settings/scaling-factor", body, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("body=%s status=%d want 400", body, rec.Code)
		}
	}
	if rec := do(r, http.MethodPut, "/api/v1/settings/scaling-factor", `{"value":1.25}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rec.Code)
	}
	if v, _ := settings.Float(context.Background(), service.SettingScalingFactor, 1); v != 1.25 {
		t.Fatalf("factor=%v want 1.25", v)
	}
}

type stubPipeline struct {
	err error
}

func (p stubPipeline) RunOnce(context.Context) (service.PipelineResult, error) {
	return service.PipelineResult{Scored: 2}, p.err
}

type stubStatus struct {
	days int
}

func (s *stubStatus) Report(context.Context) (service.StatusReport, error) {
	return service.StatusReport{OpenTrades: 3, ScalingFactor: 1}, nil
}

func (s *stubStatus) Performance(_ context.Context, days int) (repository.PerformanceSummary, error) {
	s.days = days
	return repository.PerformanceSummary{TotalTrades: 4}, nil
}

type stubScaling struct{}

func (stubScaling) Evaluate(context.Context) (risk.ScalingDecision, error) {
	return risk.ScalingDecision{Action: risk.ScaleHold, Multiplier: 1}, nil
}

func (stubScaling) Factor(context.Context) float64 { return 1.1 }

func TestOpsEndpoints(t *testing.T) {
	st := &stubStatus{}
	r := gin.New()
	(&OpsHandler{Status: st, Scaling: stubScaling{}, Pipeline: stubPipeline{}}).Register(r)

	if rec := do(r, http.MethodGet, "/api/v1/performance?days=0", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("days=0 status=%d want 400", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/v1/performance?days=90", "", nil); rec.Code != http.StatusOK || st.days != 90 {
		t.Fatalf("status=%d days=%d", rec.Code, st.days)
	}
	resp := decode(t, do(r, http.MethodGet, "/api/v1/scaling", "", nil))
	if resp.Meta["current_factor"] != 1.1 {
		t.Fatalf("meta=%v", resp.Meta)
	}
	if rec := do(r, http.MethodPost, "/api/v1/pipeline/run", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("run status=%d", rec.Code)
	}

	busy := gin.New()
	(&OpsHandler{Pipeline: stubPipeline{err: service.ErrCycleRunning}}).Register(busy)
	if rec := do(busy, http.MethodPost, "/api/v1/pipeline/run", "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("busy status=%d want 409", rec.Code)
	}
}

type stubCloser struct {
	reason string
}

func (s *stubCloser) CloseAll(_ context.Context, reason string) (service.CloseResult, error) {
	s.reason = reason
	return service.CloseResult{Checked: 2, Closed: 2}, nil
}

func TestCloseAllUsesManualReason(t *testing.T) {
	closer := &stubCloser{}
	r := gin.New()
	(&TradeHandler{Positions: closer}).Register(r)
	rec := do(r, http.MethodPost, "/api/v1/trades/close-all", "", nil)
	if rec.Code != http.StatusOK || closer.reason != models.ExitManual {
		t.Fatalf("status=%d reason=%q", rec.Code, closer.reason)
	}
}
