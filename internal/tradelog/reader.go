// Package tradelog serves the trading process log newest line first.
package tradelog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// DefaultPath is where the trading process writes its log.
const DefaultPath = "logs/trading_system.log"

// DefaultCacheTTL bounds how stale a served log may be without a watcher.
const DefaultCacheTTL = 2 * time.Second

// ErrLogNotFound is returned when the log file does not exist.
var ErrLogNotFound = errors.New("trade log not found")

// Content is the reversed log and its entity tag.
type Content struct {
	Text string
	ETag string
}

// Reader reads the log file and caches the reversed text for a TTL.
type Reader struct {
	path   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   Content
	cachedAt time.Time
	valid    bool
}

// NewReader creates a log reader.
//
// Parameters:
//   - path: log file location
//   - ttl: how long a read result is reused (0 disables caching)
//   - logger: structured logger instance
//
// Returns a new Reader instance.
func NewReader(path string, ttl time.Duration, logger *slog.Logger) *Reader {
	return &Reader{
		path:   filepath.Clean(path),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the watched log file.
func (r *Reader) Path() string {
	return r.path
}

// Read returns the log lines in reverse order joined by newlines.
//
// Returns ErrLogNotFound if the file does not exist.
func (r *Reader) Read(ctx context.Context) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	r.mu.Lock()
	if r.valid && r.now().Sub(r.cachedAt) < r.ttl {
		c := r.cached
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.Invalidate()
		if errors.Is(err, fs.ErrNotExist) {
			return Content{}, ErrLogNotFound
		}
		return Content{}, fmt.Errorf("read trade log: %w", err)
	}

	text := Reverse(string(data))
	c := Content{Text: text, ETag: ETag(text)}

	r.mu.Lock()
	r.cached = c
	r.cachedAt = r.now()
	r.valid = true
	r.mu.Unlock()

	return c, nil
}

// Invalidate drops the cached result so the next Read hits the disk.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	r.valid = false
	r.mu.Unlock()
}

// Reverse trims surrounding whitespace and reverses the line order.
func Reverse(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// ETag returns a strong entity tag for text.
func ETag(text string) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64String(text))
}

// Watch invalidates the cache whenever the log file changes, until ctx is
// cancelled.
//
// The parent directory is watched so rotation and late creation are seen. If
// the directory cannot be watched the reader falls back to TTL expiry.
func (r *Reader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		r.logger.Warn("Cannot watch trade log directory, relying on cache TTL",
			"dir", dir,
			"error", err)
		<-ctx.Done()
		return nil
	}
	r.logger.Debug("Watching trade log", "path", r.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				r.Invalidate()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("Trade log watcher error", "error", err)
		}
	}
}
