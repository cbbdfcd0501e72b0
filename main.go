// Package main implements gridwatch, a live web dashboard for a grid trading
// bot. It serves the bot's status, its trade log, host usage and the most
// recent visitors, and can journal every visit to SQLite.
//
// Usage:
//
//	gridwatch serve
//	gridwatch serve -p 8080 --home-prefix monitor --journal data/visits.db
//	gridwatch --config gridwatch.yaml top -n 20
package main

import (
	"os"

	"github.com/rampantspark/gridwatch/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// go-flags has already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
