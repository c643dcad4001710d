package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/subcommands"

	"github.com/hirosato/checklist-portal/backend/internal/common/config"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/store"
)

// operator is the actor every portalctl command runs as
var operator = portal.Actor{Subject: "portalctl", Role: portal.RoleStaff}

// app holds what the commands share
type app struct {
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
	loadConfig func() (*config.Config, error)
}

type registered struct {
	cmd   subcommands.Command
	group string
}

func (a *app) commands() []registered {
	return []registered{
		{&clientsCmd{app: a}, "clients"},
		{&addClientCmd{app: a}, "clients"},
		{&setEmailCmd{app: a}, "clients"},
		{&statusCmd{app: a}, "checklists"},
		{&importCmd{app: a}, "checklists"},
		{&reconcileCmd{app: a}, "checklists"},
		{&serveCmd{app: a}, "server"},
	}
}

// service opens the configured store and returns the portal service on top of it
func (a *app) service(ctx context.Context) (*portal.Service, *config.Config, func() error, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	st, err := store.Open(ctx, cfg, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := portal.NewService(st.Repository, a.logger.With("component", "portal"), cfg.AutosaveDelay)
	return svc, cfg, st.Close, nil
}

// fail reports err on the log and returns the failure status
func (a *app) fail(err error) subcommands.ExitStatus {
	a.logger.Error("command failed", "error", err)
	return subcommands.ExitFailure
}
