// Package ui prints the console banner and startup summary.
package ui

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Banner is the ASCII art banner for gridwatch
const Banner = `
             _     _                 _       _
  __ _ _ __ (_) __| |_      ____ _| |_ ___| |__
 / _' | '__|| |/ _' \ \ /\ / / _' | __/ __| '_ \
| (_| | |   | | (_| |\ V  V / (_| | || (__| | | |
 \__, |_|   |_|\__,_| \_/\_/ \__,_|\__\___|_| |_|
 |___/
`

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// StartupInfo holds configuration information to display at startup
type StartupInfo struct {
	Version      string
	Addr         string
	DashboardURL string
	TokenEnabled bool
	RateLimit    string
	TradeLog     string
	StateFile    string
	JournalMode  string
}

// PrintBanner prints the ASCII banner
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner)
}

// PrintStartupInfo prints a clean summary of the server configuration
func PrintStartupInfo(w io.Writer, info StartupInfo) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  gridwatch %s started at %s\n", info.Version, time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  SERVER")
	fmt.Fprintf(w, "     Listening:       %s\n", info.Addr)
	fmt.Fprintf(w, "     Rate Limiting:   %s\n", info.RateLimit)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  SOURCES")
	fmt.Fprintf(w, "     Trade log:       %s\n", info.TradeLog)
	fmt.Fprintf(w, "     Trader state:    %s\n", info.StateFile)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  JOURNAL")
	fmt.Fprintf(w, "     Mode:            %s\n", info.JournalMode)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  DASHBOARD")
	fmt.Fprintf(w, "     URL:             %s\n", info.DashboardURL)
	if info.TokenEnabled {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  ⚠️  SECURITY WARNING:")
		fmt.Fprintln(w, "     The URL above contains the dashboard access token.")
		fmt.Fprintln(w, "     Keep it secure and rotate logs containing this token.")
	} else {
		fmt.Fprintln(w, "     Access:          open (no token configured)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Press Ctrl+C to stop the server")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// PrintShutdown prints a shutdown message
func PrintShutdown(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Server stopped")
	fmt.Fprintln(w, rule)
}

// BuildDashboardURL returns the browsable URL of the dashboard page. Wildcard
// listen hosts are shown as localhost.
func BuildDashboardURL(addr, homePath, token string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}

	u := url.URL{Scheme: "http", Host: host, Path: homePath}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String()
}

// BuildRateLimitSummary creates a summary string for rate limiting
func BuildRateLimitSummary(requestsPerSec float64, burst int) string {
	return fmt.Sprintf("%s req/sec (burst: %d)", strconv.FormatFloat(requestsPerSec, 'f', -1, 64), burst)
}

// BuildTradeLogSummary creates a summary string for the trade log source
func BuildTradeLogSummary(path string, watch bool, ttl time.Duration) string {
	if watch {
		return fmt.Sprintf("%s (watched)", path)
	}
	return fmt.Sprintf("%s (cached %s)", path, ttl)
}

// BuildJournalSummary creates a summary string for the visit journal
func BuildJournalSummary(dbPath string) string {
	if dbPath != "" {
		return fmt.Sprintf("SQLite database - %s", dbPath)
	}
	return "Disabled (memory only)"
}
