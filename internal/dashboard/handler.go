// Package dashboard serves the monitoring page, its JSON API and the live
// websocket feed.
package dashboard

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rampantspark/gridwatch/internal/middleware"
	"github.com/rampantspark/gridwatch/internal/ratelimit"
	"github.com/rampantspark/gridwatch/internal/sysstats"
	"github.com/rampantspark/gridwatch/internal/trader"
	"github.com/rampantspark/gridwatch/internal/tradelog"
	"github.com/rampantspark/gridwatch/internal/visitor"
)

// LogSource yields the reversed trade log.
type LogSource interface {
	Read(ctx context.Context) (tradelog.Content, error)
}

// SystemSampler yields host usage.
type SystemSampler interface {
	Sample(ctx context.Context) (sysstats.Stats, error)
}

// Options configures the dashboard routes.
type Options struct {
	HomePath       string
	RecentVisitors int
	PushInterval   time.Duration
	MaxBodyBytes   int64
	Token          string
	SecureCookie   bool
	// Location renders timestamps; nil means time.Local.
	Location *time.Location
}

// Deps are the data sources behind the dashboard.
type Deps struct {
	Visitors *visitor.Manager
	Status   trader.Source
	Logs     LogSource
	System   SystemSampler
	Limiter  *ratelimit.Limiter
}

// Handler handles dashboard HTTP requests.
type Handler struct {
	opts     Options
	deps     Deps
	auth     *Authenticator
	renderer *Renderer
	hub      *Hub
	logger   *slog.Logger
}

// Frame is one websocket push.
type Frame struct {
	Time        string          `json:"time"`
	Status      *trader.Status  `json:"status"`
	StatusError string          `json:"status_error,omitempty"`
	System      *sysstats.Stats `json:"system"`
	Visitors    []visitor.View  `json:"visitors"`
}

// NewHandler creates a new dashboard handler.
//
// Parameters:
//   - opts: route and rendering options
//   - deps: data sources
//   - logger: structured logger instance
//
// Returns a new Handler instance.
func NewHandler(opts Options, deps Deps, logger *slog.Logger) *Handler {
	if opts.HomePath == "" {
		opts.HomePath = "/"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	h := &Handler{
		opts:     opts,
		deps:     deps,
		auth:     NewAuthenticator(opts.Token, opts.SecureCookie),
		renderer: NewRenderer(opts.Location),
		logger:   logger,
	}
	h.hub = NewHub(opts.PushInterval, h.buildFrame, logger)
	return h
}

// Hub returns the websocket hub so the caller can run it.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.RecoverPanic(h.logger))
	r.Use(middleware.LimitRequestBody(h.opts.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSONError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get(h.opts.HomePath, h.HandleHome)
		r.Get("/ws", h.hub.ServeWS)

		r.Route("/api", func(r chi.Router) {
			if h.deps.Limiter != nil {
				r.Use(middleware.RateLimit(h.deps.Limiter, h.deps.Visitors.ClientAddress))
			}
			r.Get("/status", h.HandleStatus)
			r.Get("/logs", h.HandleLogs)
			r.Get("/visitors", h.HandleVisitors)
		})
	})

	return r
}

// HandleHome records the visit and renders the dashboard page.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	h.deps.Visitors.RecordRequest(ctx, r)

	page := PageData{
		Visitors: h.deps.Visitors.Recent(h.opts.RecentVisitors),
	}

	content, err := h.deps.Logs.Read(ctx)
	switch {
	case err == nil:
		page.Log = content.Text
	case errors.Is(err, tradelog.ErrLogNotFound):
		page.LogMissing = true
	default:
		h.logger.Error("Failed to read trade log", "error", err)
		http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	page.Status, page.StatusError = h.loadStatus(ctx)
	page.System = h.sampleSystem(ctx)

	if ctx.Err() != nil {
		return
	}

	page.Nonce = h.generateNonce()
	body := h.renderer.RenderHome(page)

	h.setSecurityHeaders(w, page.Nonce)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, body)
}

// HandleStatus returns the trader status as JSON.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.deps.Status.Load(r.Context())
	if err != nil {
		if errors.Is(err, trader.ErrStatusUnavailable) {
			middleware.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("Failed to load trader status", "error", err)
		middleware.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, trader.BuildStatus(state, h.opts.Location))
}

// HandleLogs returns the reversed trade log as plain text.
//
// A missing log is 404 and a read failure is 500, both with an empty body.
// Responses carry an ETag and honour If-None-Match.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	content, err := h.deps.Logs.Read(r.Context())
	if err != nil {
		if errors.Is(err, tradelog.ErrLogNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to read trade log", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", content.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == content.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, content.Text)
}

// HandleVisitors returns every stored visitor, most recent first.
func (h *Handler) HandleVisitors(w http.ResponseWriter, r *http.Request) {
	views := h.deps.Visitors.Recent(0)
	if views == nil {
		views = []visitor.View{}
	}
	records, tracked := h.deps.Visitors.Stats()
	h.writeJSON(w, map[string]any{
		"visitors":     views,
		"records":      records,
		"tracked_keys": tracked,
	})
}

func (h *Handler) buildFrame(ctx context.Context) ([]byte, error) {
	frame := Frame{
		Time:     time.Now().In(h.opts.Location).Format(trader.TimeLayout),
		Visitors: h.deps.Visitors.Recent(h.opts.RecentVisitors),
	}
	if frame.Visitors == nil {
		frame.Visitors = []visitor.View{}
	}
	frame.Status, frame.StatusError = h.loadStatus(ctx)
	frame.System = h.sampleSystem(ctx)
	return json.Marshal(frame)
}

func (h *Handler) loadStatus(ctx context.Context) (*trader.Status, string) {
	state, err := h.deps.Status.Load(ctx)
	if err != nil {
		if !errors.Is(err, trader.ErrStatusUnavailable) {
			h.logger.Warn("Failed to load trader status", "error", err)
		}
		return nil, err.Error()
	}
	status := trader.BuildStatus(state, h.opts.Location)
	return &status, ""
}

func (h *Handler) sampleSystem(ctx context.Context) *sysstats.Stats {
	if h.deps.System == nil {
		return nil
	}
	stats, err := h.deps.System.Sample(ctx)
	if err != nil {
		h.logger.Warn("Failed to sample system stats", "error", err)
		return nil
	}
	return &stats
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", "error", err)
	}
}

// generateNonce generates a cryptographically secure nonce for CSP.
func (h *Handler) generateNonce() string {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		h.logger.Error("Failed to generate CSP nonce", "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(nonceBytes)
}

// setSecurityHeaders sets security headers for the dashboard page.
func (h *Handler) setSecurityHeaders(w http.ResponseWriter, nonce string) {
	scriptSrc := "script-src 'self'"
	if nonce != "" {
		scriptSrc += " 'nonce-" + nonce + "'"
	}

	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			scriptSrc+"; "+
			"style-src 'self' 'unsafe-inline'; "+
			"img-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
