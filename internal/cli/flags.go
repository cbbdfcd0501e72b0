package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config    string `long:"config" short:"c" description:"Path to YAML config file" default:""`
	EnvFile   string `long:"env-file" description:"Path to .env file" default:".env"`
	LogLevel  string `long:"log-level" description:"Override log level: debug | info | warn | error"`
	LogFormat string `long:"log-format" description:"Override log format: text | json"`
	Version   bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand runs the dashboard server.
type ServeCommand struct {
	Host       string `long:"host" description:"Override listen host"`
	Port       string `long:"port" short:"p" description:"Override listen port"`
	HomePrefix string `long:"home-prefix" description:"Override the dashboard page path"`
	TradeLog   string `long:"trade-log" description:"Override the trade log path"`
	StateFile  string `long:"state-file" description:"Override the trader state file"`
	Journal    string `long:"journal" description:"Override the visit journal database path"`
	NoWatch    bool   `long:"no-watch" description:"Poll the trade log instead of watching it"`
	Quiet      bool   `long:"quiet" short:"q" description:"Do not print the startup banner"`

	globals *GlobalFlags
	version string
	out     io.Writer
}

// ExportCommand writes the visit journal as NDJSON.
type ExportCommand struct {
	Dir  string `long:"dir" description:"Directory to write into" default:"exports"`
	Name string `long:"name" description:"File name (default: visits-<timestamp>.ndjson)"`

	globals *GlobalFlags
	out     io.Writer
}

// TopCommand lists the busiest visitors in the journal.
type TopCommand struct {
	Limit int  `long:"limit" short:"n" description:"Maximum rows" default:"10"`
	JSON  bool `long:"json" description:"Output in JSON format"`

	globals *GlobalFlags
	out     io.Writer
}

// RecentCommand lists the latest journaled visits.
type RecentCommand struct {
	Limit int  `long:"limit" short:"n" description:"Maximum rows" default:"20"`
	JSON  bool `long:"json" description:"Output in JSON format"`

	globals *GlobalFlags
	out     io.Writer
}
