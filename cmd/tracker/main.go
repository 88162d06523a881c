package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/release-tracker/internal/config"
	"github.com/yourorg/release-tracker/internal/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usageText = `Usage: tracker <command> [flags]

Commands:
  check [project...]                    check the newest release (all projects by default)
  push  -project X [-count N | -all]    push historical releases that were not delivered yet
  force -project X [-version V]         announce a release without touching state
  dump  -project X [-o file]            print parsed releases as JSON
  serve                                 run checks on SCHEDULE with the admin bot
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// command is one subcommand: flags are parsed before configuration is loaded
type command struct {
	opts  appOptions
	parse func(fs *flag.FlagSet, args []string) (action, error)
}

type action func(ctx context.Context, a *app) int

var commands = map[string]command{
	"check": {opts: appOptions{state: true, notifiers: true}, parse: parseCheck},
	"push":  {opts: appOptions{state: true, notifiers: true}, parse: parsePush},
	"force": {opts: appOptions{notifiers: true}, parse: parseForce},
	"dump":  {opts: appOptions{}, parse: parseDump},
	"serve": {opts: appOptions{state: true, notifiers: true}, parse: parseServe},
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return exitUsage
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(stdout, usageText)
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usageText)
		return exitUsage
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	act, err := cmd.parse(fs, args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
		}
		return exitUsage
	}

	// Setup logging
	logger := logging.Setup()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return exitUsage
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, cmd.opts)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return exitUsage
	}
	defer a.Close()
	a.stdout = stdout

	return act(ctx, a)
}

// logResult is shared by the commands that end with a single error
func logResult(logger *slog.Logger, msg string, err error) int {
	if err != nil {
		logger.Error(msg, "error", err)
		return exitFailure
	}
	return exitOK
}
