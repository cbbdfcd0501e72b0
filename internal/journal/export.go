package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validateDataDirPath checks if a path is within the data directory.
func validateDataDirPath(dataDir, filePath string) error {
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("cannot resolve data directory: %w", err)
	}
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("cannot resolve file path: %w", err)
	}

	relPath, err := filepath.Rel(absDataDir, absFilePath)
	if err != nil {
		return fmt.Errorf("cannot determine relative path: %w", err)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file path is outside data directory: %s", filePath)
	}
	return nil
}

// ExportNDJSON writes every journaled visit, oldest first, as one JSON object
// per line to dir/name.
//
// Returns the written path and the number of visits exported.
func (j *Journal) ExportNDJSON(ctx context.Context, dir, name string) (string, int, error) {
	path := filepath.Join(dir, name)
	if err := validateDataDirPath(dir, path); err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ip, browser, browser_version, device, device_type, os, user_agent, path, request_id, visited_at
		FROM visit_log
		ORDER BY id ASC
	`)
	if err != nil {
		return "", 0, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return "", 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create export file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return "", 0, fmt.Errorf("failed to encode visit %d: %w", e.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("failed to flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close export: %w", err)
	}

	j.logger.Debug("Journal exported", "path", path, "visits", len(entries))
	return path, len(entries), nil
}
