package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rampantspark/gridwatch/internal/config"
	"github.com/rampantspark/gridwatch/internal/journal"
	"github.com/rampantspark/gridwatch/internal/logging"
)

// errNoJournal is returned by journal commands when no journal is configured.
var errNoJournal = errors.New("no journal configured: set journal.path or " + config.EnvJournalPath)

// loadConfig loads the configuration named by the global flags and applies the
// log overrides.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	envFile := config.DefaultEnvFile
	if globals != nil && globals.EnvFile != "" {
		envFile = globals.EnvFile
	}
	path := ""
	if globals != nil {
		path = globals.Config
	}

	cfg, err := config.LoadWith(path, envFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	if globals != nil {
		if globals.LogLevel != "" {
			cfg.Logging.Level = globals.LogLevel
		}
		if globals.LogFormat != "" {
			cfg.Logging.Format = globals.LogFormat
		}
	}
	cfg.Normalize()
	return cfg, nil
}

// newLogger builds the process logger; it always writes to stderr so command
// output on stdout stays machine readable.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

// openJournal opens the configured journal for the read-side commands.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	if cfg.Journal.Path == "" {
		return nil, errNoJournal
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return nil, fmt.Errorf("journal %s: %w", cfg.Journal.Path, err)
	}
	return journal.Open(cfg.Journal.Path, logger)
}
