package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rampantspark/gridwatch/internal/journal"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer j.Close()

	return c.executeWithJournal(context.Background(), j, time.Now())
}

// executeWithJournal runs the export against a provided journal (for testing).
func (c *ExportCommand) executeWithJournal(ctx context.Context, j *journal.Journal, now time.Time) error {
	name := c.Name
	if name == "" {
		name = "visits-" + now.UTC().Format("20060102-150405") + ".ndjson"
	}

	path, n, err := j.ExportNDJSON(ctx, c.Dir, name)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(c.out, "Exported %d visits to %s\n", n, path)
	return nil
}
