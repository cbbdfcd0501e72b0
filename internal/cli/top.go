package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rampantspark/gridwatch/internal/journal"
	"github.com/rampantspark/gridwatch/internal/trader"
)

// Execute implements the go-flags Commander interface for TopCommand.
func (c *TopCommand) Execute(args []string) error {
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

// executeWithJournal runs top against a provided journal (for testing).
func (c *TopCommand) executeWithJournal(ctx context.Context, j *journal.Journal) error {
	if c.Limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", c.Limit)
	}

	entries, err := j.TopVisitors(ctx, c.Limit)
	if err != nil {
		return err
	}

	if c.JSON {
		if entries == nil {
			entries = []journal.CountEntry{}
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No visits journaled yet.")
		return nil
	}
	fmt.Fprintf(c.out, "%-39s %-10s %6s  %-19s  %s\n", "IP", "BROWSER", "VISITS", "FIRST SEEN", "LAST SEEN")
	for _, e := range entries {
		fmt.Fprintf(c.out, "%-39s %-10s %6d  %-19s  %s\n",
			e.Address, e.Browser, e.Count,
			e.FirstSeen.Local().Format(trader.TimeLayout),
			e.LastSeen.Local().Format(trader.TimeLayout))
	}
	return nil
}
