package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rampantspark/gridwatch/internal/journal"
	"github.com/rampantspark/gridwatch/internal/trader"
)

// Execute implements the go-flags Commander interface for RecentCommand.
func (c *RecentCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer j.Close()

	return c.executeWithJournal(context.Background(), j)
}

// executeWithJournal runs recent against a provided journal (for testing).
func (c *RecentCommand) executeWithJournal(ctx context.Context, j *journal.Journal) error {
	if c.Limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", c.Limit)
	}

	entries, err := j.Recent(ctx, c.Limit)
	if err != nil {
		return err
	}

	if c.JSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No visits journaled yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%s  %-15s  %s %s on %s (%s)  %s\n",
			e.VisitedAt.Local().Format(trader.TimeLayout),
			e.Address, e.Browser, e.BrowserVersion, e.OS, e.Device, e.Path)
	}
	return nil
}
