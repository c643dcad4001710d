package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/hirosato/checklist-portal/backend/internal/common/config"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	// stdout carries the MCP stream under serve
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	a := &app{
		in:         os.Stdin,
		out:        os.Stdout,
		logger:     logger,
		loadConfig: config.LoadFromEnv,
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range a.commands() {
		commander.Register(c.cmd, c.group)
	}

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
