package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rampantspark/gridwatch/internal/visitor"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.199 Safari/537.36"

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func event(addr, path string, at time.Time) visitor.VisitEvent {
	return visitor.VisitEvent{
		Address:   addr,
		Path:      path,
		Facts:     visitor.Classify(chromeUA),
		Timestamp: at,
		RequestID: "req-" + addr,
	}
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, event("10.0.0.1", "/", t0)))
	require.NoError(t, j.Append(ctx, event("10.0.0.2", "/api/status", t0.Add(time.Second))))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "10.0.0.2", entries[0].Address)
	assert.Equal(t, "/api/status", entries[0].Path)
	assert.Equal(t, "Chrome", entries[0].Browser)
	assert.Equal(t, "114.0.5735.199", entries[0].BrowserVersion)
	assert.Equal(t, "Desktop", entries[0].Device)
	assert.Equal(t, "Windows", entries[0].OS)
	assert.Equal(t, chromeUA, entries[0].UserAgent)
	assert.Equal(t, "req-10.0.0.2", entries[0].RequestID)
	assert.True(t, entries[0].VisitedAt.Equal(t0.Add(time.Second)))
	assert.Equal(t, "10.0.0.1", entries[1].Address)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecent_Limit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, event(fmt.Sprintf("10.0.0.%d", i), "/", t0.Add(time.Duration(i)*time.Second))))
	}

	entries, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "10.0.0.4", entries[0].Address)
	assert.Equal(t, "10.0.0.2", entries[2].Address)
}

func TestTopVisitors(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(ctx, event("10.0.0.1", "/", t0.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, j.Append(ctx, event("10.0.0.2", "/", t0)))

	firefox := event("10.0.0.1", "/", t0.Add(time.Hour))
	firefox.Facts = visitor.Classify("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	require.NoError(t, j.Append(ctx, firefox))

	top, err := j.TopVisitors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, "10.0.0.1", top[0].Address)
	assert.Equal(t, "Chrome", top[0].Browser)
	assert.Equal(t, 3, top[0].Count)
	assert.True(t, top[0].FirstSeen.Equal(t0))
	assert.True(t, top[0].LastSeen.Equal(t0.Add(2*time.Minute)))

	// Ties are broken by the most recent visit.
	assert.Equal(t, "Firefox", top[1].Browser)
	assert.Equal(t, "10.0.0.2", top[2].Address)
}

func TestAppend_TruncatesLongFields(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	ev := event("10.0.0.1", "/"+strings.Repeat("a", 3000), t0)
	ev.Facts.RawAgent = strings.Repeat("x", 1000)
	require.NoError(t, j.Append(ctx, ev))

	entries, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Path, maxPathLen)
	assert.Len(t, entries[0].UserAgent, maxUserAgentLen)
}

func TestAppend_ClientControlledAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"over long", strings.Repeat("a", 300), strings.Repeat("a", maxAddressLen)},
		{"empty", "", visitor.UnknownAgent},
		{"ipv6", "2001:db8::1", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := openTestJournal(t)
			ctx := context.Background()

			require.NoError(t, j.Append(ctx, event(tt.address, "/", t0)))

			n, err := j.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			entries, err := j.Recent(ctx, 1)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.want, entries[0].Address)

			top, err := j.TopVisitors(ctx, 1)
			require.NoError(t, err)
			require.Len(t, top, 1)
			assert.Equal(t, tt.want, top[0].Address)
		})
	}
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 4, "abcd"},
		{"cut inside rune", "ab\u00e9\u00e9", 3, "ab"},
		{"cut on boundary", "ab\u00e9\u00e9", 4, "ab\u00e9"},
		{"four byte rune", "\U0001F600x", 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.limit)
		})
	}
}

func TestAppend_TruncatedAgentIsValidUTF8(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	ev := event("10.0.0.1", "/", t0)
	ev.Facts.RawAgent = "x" + strings.Repeat("\u00e9", 600)
	require.NoError(t, j.Append(ctx, ev))

	entries, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, utf8.ValidString(entries[0].UserAgent))
	assert.Len(t, entries[0].UserAgent, maxUserAgentLen-1)
}

func TestAppend_CancelledContext(t *testing.T) {
	j := openTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, j.Append(ctx, event("10.0.0.1", "/", t0)))
}

func TestJournalImplementsSink(t *testing.T) {
	var _ visitor.Sink = (*Journal)(nil)
}

func TestExportNDJSON(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Append(ctx, event("10.0.0.1", "/", t0)))
	require.NoError(t, j.Append(ctx, event("10.0.0.2", "/", t0.Add(time.Second))))

	dir := filepath.Join(t.TempDir(), "exports")
	path, n, err := j.ExportNDJSON(ctx, dir, "visits.ndjson")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, filepath.Join(dir, "visits.ndjson"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].Address)
	assert.Equal(t, "10.0.0.2", got[1].Address)
}

func TestExportNDJSON_RejectsEscape(t *testing.T) {
	j := openTestJournal(t)
	dir := t.TempDir()

	_, _, err := j.ExportNDJSON(context.Background(), dir, "../outside.ndjson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside data directory")

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "outside.ndjson"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidateDataDirPath(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		file    string
		wantErr bool
	}{
		{"inside", "/data", "/data/visits.ndjson", false},
		{"nested", "/data", "/data/a/b.ndjson", false},
		{"parent", "/data", "/visits.ndjson", true},
		{"sibling", "/data", "/data2/visits.ndjson", true},
		{"dotdot name", "/data", "/data/..visits", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDataDirPath(tt.dir, tt.file)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}
