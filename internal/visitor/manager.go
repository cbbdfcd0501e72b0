package visitor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rampantspark/gridwatch/internal/middleware"
)

// Sink receives every recorded visit. The journal implements it.
type Sink interface {
	Append(ctx context.Context, event VisitEvent) error
}

// Manager ties address resolution, agent classification and the visit store
// together for the HTTP layer.
type Manager struct {
	resolver *Resolver
	store    *Store
	sink     Sink
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a new visitor manager.
//
// Parameters:
//   - resolver: client address resolver
//   - store: recent-visitor store
//   - sink: optional visit sink (nil disables it)
//   - logger: structured logger instance
//
// Returns a new Manager instance.
func NewManager(resolver *Resolver, store *Store, sink Sink, logger *slog.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		store:    store,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordRequest records the visit carried by r.
//
// The in-memory store is always updated. A sink failure is logged and does not
// affect the caller.
func (m *Manager) RecordRequest(ctx context.Context, r *http.Request) VisitEvent {
	event := VisitEvent{
		Address:   m.resolver.ResolveRequest(r),
		Path:      r.URL.Path,
		Facts:     Classify(r.Header.Get("User-Agent")),
		Timestamp: m.now(),
		RequestID: middleware.RequestIDFromContext(ctx),
	}

	m.store.Record(event.Address, event.Path, event.Facts, event.Timestamp)

	if m.sink != nil {
		if err := m.sink.Append(ctx, event); err != nil {
			m.logger.Warn("Failed to journal visit",
				"ip", event.Address,
				"browser", event.Facts.Browser,
				"error", err)
		}
	}

	m.logger.Debug("Visit recorded",
		"ip", event.Address,
		"path", event.Path,
		"browser", event.Facts.Browser,
		"request_id", event.RequestID)

	return event
}

// ClientAddress resolves the client address of r without recording anything.
func (m *Manager) ClientAddress(r *http.Request) string {
	return m.resolver.ResolveRequest(r)
}

// Snapshot returns every stored visitor, oldest first.
func (m *Manager) Snapshot() []View {
	return m.store.Snapshot()
}

// Recent returns up to limit visitors, most recent first. A non-positive limit
// returns all of them.
func (m *Manager) Recent(limit int) []View {
	views := m.store.Snapshot()
	total := len(views)
	if total == 0 {
		return nil
	}

	count := total
	if limit > 0 && limit < total {
		count = limit
	}

	result := make([]View, count)
	for i := 0; i < count; i++ {
		result[i] = views[total-1-i]
	}
	return result
}

// Stats reports the store size and the number of keys tracked for frequency.
func (m *Manager) Stats() (records, trackedKeys int) {
	return m.store.Len(), m.store.Tracker().Len()
}
