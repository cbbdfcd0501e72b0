package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rampantspark/gridwatch/internal/ratelimit"
	"github.com/rampantspark/gridwatch/internal/sysstats"
	"github.com/rampantspark/gridwatch/internal/trader"
	"github.com/rampantspark/gridwatch/internal/tradelog"
	"github.com/rampantspark/gridwatch/internal/visitor"
)

const uaChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.199 Safari/537.36"

type fakeStatus struct {
	state trader.State
	err   error
}

func (f *fakeStatus) Load(ctx context.Context) (trader.State, error) {
	return f.state, f.err
}

type fakeLogs struct {
	content tradelog.Content
	err     error
}

func (f *fakeLogs) Read(ctx context.Context) (tradelog.Content, error) {
	return f.content, f.err
}

type fakeSystem struct {
	stats sysstats.Stats
	err   error
}

func (f *fakeSystem) Sample(ctx context.Context) (sysstats.Stats, error) {
	return f.stats, f.err
}

type fixture struct {
	handler *Handler
	router  http.Handler
	status  *fakeStatus
	logs    *fakeLogs
	system  *fakeSystem
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, mutate func(*Options, *Deps)) *fixture {
	t.Helper()

	grid := 2.0
	base := 600.0
	f := &fixture{
		status: &fakeStatus{state: trader.State{
			Symbol:           "BNB/USDT",
			BasePrice:        &base,
			CurrentPrice:     620,
			GridSize:         &grid,
			BaseBalance:      1.5,
			QuoteBalance:     500,
			InitialPrincipal: 1000,
		}},
		logs: &fakeLogs{content: tradelog.Content{
			Text: "newest line\noldest line",
			ETag: tradelog.ETag("newest line\noldest line"),
		}},
		system: &fakeSystem{stats: sysstats.Stats{CPUPercent: 12.5, MemoryUsedGB: 3.2, MemoryTotalGB: 8, MemoryPercent: 40}},
	}

	manager := visitor.NewManager(visitor.NewResolver(), visitor.NewStore(visitor.NewFrequencyTracker()), nil, discardLogger())
	opts := Options{
		HomePath:       "/gw",
		RecentVisitors: 5,
		PushInterval:   50 * time.Millisecond,
		MaxBodyBytes:   1 << 10,
		Location:       time.UTC,
	}
	deps := Deps{
		Visitors: manager,
		Status:   f.status,
		Logs:     f.logs,
		System:   f.system,
	}
	if mutate != nil {
		mutate(&opts, &deps)
	}

	f.handler = NewHandler(opts, deps, discardLogger())
	f.router = f.handler.Routes()
	return f
}

func (f *fixture) get(target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandleHome_RecordsVisitAndRenders(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/gw", map[string]string{
		"User-Agent":      uaChrome,
		"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "gridwatch - BNB/USDT")
	assert.Contains(t, body, "203.0.113.7")
	assert.Contains(t, body, "Chrome 114.0.5735.199")
	assert.Contains(t, body, "Desktop (Unknown)")
	assert.Contains(t, body, "newest line\noldest line")
	assert.Contains(t, body, `<span id="total-assets">1430.00</span>`)
	assert.Contains(t, body, `<span id="grid-size">2.00%</span>`)
	assert.Contains(t, body, `<span id="cpu-percent">12.5%</span>`)

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "'nonce-")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	records, tracked := f.handler.deps.Visitors.Stats()
	assert.Equal(t, 1, records)
	assert.Equal(t, 1, tracked)
}

func TestHandleHome_EscapesVisitorData(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/gw", map[string]string{
		"User-Agent":      uaChrome,
		"X-Forwarded-For": "<script>alert(1)</script>",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestHandleHome_ShowsFiveMostRecentVisitors(t *testing.T) {
	f := newFixture(t, nil)

	var w *httptest.ResponseRecorder
	for i := 11; i <= 17; i++ {
		w = f.get("/gw", map[string]string{
			"User-Agent":      uaChrome,
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
		})
	}

	body := w.Body.String()
	for i := 13; i <= 17; i++ {
		assert.Contains(t, body, fmt.Sprintf("10.0.0.%d", i))
	}
	assert.NotContains(t, body, "10.0.0.11")
	assert.NotContains(t, body, "10.0.0.12")
	assert.Less(t, strings.Index(body, "10.0.0.17"), strings.Index(body, "10.0.0.13"), "most recent first")
}

func TestHandleHome_MissingLogStillRenders(t *testing.T) {
	f := newFixture(t, nil)
	f.logs.err = tradelog.ErrLogNotFound

	w := f.get("/gw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Log file not found.")
}

func TestHandleHome_LogErrorIs500(t *testing.T) {
	f := newFixture(t, nil)
	f.logs.err = errors.New("permission denied")

	w := f.get("/gw", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")
}

func TestHandleHome_StatusUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.status.err = trader.ErrStatusUnavailable
	f.system.err = errors.New("no /proc")

	w := f.get("/gw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Trader status unavailable")
	assert.Contains(t, body, "System stats unavailable.")
	assert.Contains(t, body, `<span id="base-price">--</span>`)
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "BNB/USDT", got["symbol"])
	assert.InDelta(t, 0.02, got["grid_size"], 1e-12)
	assert.InDelta(t, 1430.0, got["total_assets"], 1e-9)
	assert.InDelta(t, 43.0, got["profit_rate"], 1e-9)
	assert.Equal(t, "--", got["last_trade_time_str"])
	assert.Equal(t, []any{}, got["trade_history"])

	records, _ := f.handler.deps.Visitors.Stats()
	assert.Zero(t, records, "API calls are not recorded as visits")
}

func TestHandleStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unavailable", fmt.Errorf("%w: state.json", trader.ErrStatusUnavailable), http.StatusServiceUnavailable},
		{"corrupt", errors.New("decode trader state: unexpected EOF"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.status.err = tt.err

			w := f.get("/api/status", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.err.Error(), got["error"])
		})
	}
}

func TestHandleLogs(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/api/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "newest line\noldest line", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = f.get("/api/logs", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = f.get("/api/logs", map[string]string{"If-None-Match": `"stale"`})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleLogs_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing", tradelog.ErrLogNotFound, http.StatusNotFound},
		{"read failure", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.logs.err = tt.err

			w := f.get("/api/logs", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Body.String())
		})
	}
}

func TestHandleVisitors(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/api/visitors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var empty struct {
		Visitors []visitor.View `json:"visitors"`
		Records  int            `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.NotNil(t, empty.Visitors)
	assert.Empty(t, empty.Visitors)

	f.get("/gw", map[string]string{"User-Agent": uaChrome, "X-Real-IP": "10.0.0.1"})
	f.get("/gw", map[string]string{"User-Agent": uaChrome, "X-Real-IP": "10.0.0.2"})
	f.get("/gw", map[string]string{"User-Agent": uaChrome, "X-Real-IP": "10.0.0.1"})

	w = f.get("/api/visitors", nil)
	var got struct {
		Visitors    []visitor.View `json:"visitors"`
		Records     int            `json:"records"`
		TrackedKeys int            `json:"tracked_keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Visitors, 2)
	assert.Equal(t, "10.0.0.2", got.Visitors[0].Address)
	assert.Equal(t, "10.0.0.1", got.Visitors[1].Address)
	assert.Equal(t, 2, got.Visitors[1].VisitCount)
	assert.Equal(t, 2, got.Records)
	assert.Equal(t, 2, got.TrackedKeys)
}

func TestRoutes_NotFoundIsJSON(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get("/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	// The page lives at the home prefix only.
	w = f.get("/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/status", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRoutes_RateLimitsAPI(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 0.5, Burst: 2})
	defer limiter.Stop()
	f := newFixture(t, func(o *Options, d *Deps) { d.Limiter = limiter })

	headers := map[string]string{"X-Forwarded-For": "198.51.100.9"}
	assert.Equal(t, http.StatusOK, f.get("/api/status", headers).Code)
	assert.Equal(t, http.StatusOK, f.get("/api/status", headers).Code)

	w := f.get("/api/status", headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	// Another client is unaffected, and the page itself is not limited.
	assert.Equal(t, http.StatusOK, f.get("/api/status", map[string]string{"X-Forwarded-For": "198.51.100.10"}).Code)
	assert.Equal(t, http.StatusOK, f.get("/gw", headers).Code)
}

func TestRoutes_TokenRequired(t *testing.T) {
	f := newFixture(t, func(o *Options, d *Deps) { o.Token = "letmein" })

	assert.Equal(t, http.StatusForbidden, f.get("/gw", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.get("/api/status", nil).Code)

	records, _ := f.handler.deps.Visitors.Stats()
	assert.Zero(t, records, "rejected requests are not recorded")

	w := f.get("/gw?token=letmein", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, w.Result().Cookies(), 1)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(w.Result().Cookies()[0])
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_RootHomePrefix(t *testing.T) {
	f := newFixture(t, func(o *Options, d *Deps) { o.HomePath = "/" })

	assert.Equal(t, http.StatusOK, f.get("/", nil).Code)
	assert.Equal(t, http.StatusOK, f.get("/api/status", nil).Code)
}

func TestBuildFrame(t *testing.T) {
	f := newFixture(t, nil)
	f.get("/gw", map[string]string{"User-Agent": uaChrome, "X-Real-IP": "10.0.0.1"})

	payload, err := f.handler.buildFrame(context.Background())
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	require.NotNil(t, frame.Status)
	assert.Equal(t, "BNB/USDT", frame.Status.Symbol)
	require.NotNil(t, frame.System)
	assert.Equal(t, 12.5, frame.System.CPUPercent)
	require.Len(t, frame.Visitors, 1)
	assert.Empty(t, frame.StatusError)

	f.status.err = trader.ErrStatusUnavailable
	payload, err = f.handler.buildFrame(context.Background())
	require.NoError(t, err)
	frame = Frame{}
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Nil(t, frame.Status)
	assert.Equal(t, trader.ErrStatusUnavailable.Error(), frame.StatusError)
}
