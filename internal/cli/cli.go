// Package cli wires the gridwatch subcommands.
package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve  *ServeCommand
	Export *ExportCommand
	Top    *TopCommand
	Recent *RecentCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string, out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "gridwatch"
	parser.LongDescription = "Live dashboard for a grid trading bot: status, trade log and visitors."

	cmds := &commands{
		Serve:  &ServeCommand{globals: &globals, version: version, out: out},
		Export: &ExportCommand{globals: &globals, out: out},
		Top:    &TopCommand{globals: &globals, out: out},
		Recent: &RecentCommand{globals: &globals, out: out},
	}

	parser.AddCommand("serve", "Run the dashboard server", "Serve the dashboard page, its JSON API and the live websocket feed.", cmds.Serve)
	parser.AddCommand("export", "Export the visit journal", "Write every journaled visit as newline-delimited JSON.", cmds.Export)
	parser.AddCommand("top", "List the busiest visitors", "List (address, browser) pairs by lifetime visit count.", cmds.Top)
	parser.AddCommand("recent", "List the latest visits", "List the most recent journaled visits.", cmds.Recent)

	return parser, &globals, cmds
}

// Run is the main entry point for the gridwatch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	return runWithArgs(version, args, os.Stdout)
}

func runWithArgs(version string, args []string, out io.Writer) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Fprintf(out, "gridwatch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version, out)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
