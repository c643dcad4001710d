package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/hirosato/checklist-portal/backend/internal/api/mcp/resources"
	"github.com/hirosato/checklist-portal/backend/internal/api/mcp/tools"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

type clientsCmd struct {
	app *app
}

func (*clientsCmd) Name() string     { return "clients" }
func (*clientsCmd) Synopsis() string { return "list every client, oldest first" }
func (*clientsCmd) Usage() string {
	return `portalctl clients
`
}
func (*clientsCmd) SetFlags(*flag.FlagSet) {}

func (c *clientsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	clients, err := svc.ListClients(ctx, operator)
	if err != nil {
		return c.app.fail(err)
	}
	if err := renderClients(c.app.out, clients); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type addClientCmd struct {
	app  *app
	name string
}

func (*addClientCmd) Name() string     { return "add-client" }
func (*addClientCmd) Synopsis() string { return "register a new client" }
func (*addClientCmd) Usage() string {
	return `portalctl add-client -name <name>

  Creates a client with an empty email and prints its id.
`
}
func (c *addClientCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Client name.")
}

func (c *addClientCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	summary, err := svc.CreateClient(ctx, operator, c.name)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.out, summary.ID)
	return subcommands.ExitSuccess
}

type setEmailCmd struct {
	app   *app
	id    string
	email string
}

func (*setEmailCmd) Name() string     { return "set-email" }
func (*setEmailCmd) Synopsis() string { return "set or clear the contact email of a client" }
func (*setEmailCmd) Usage() string {
	return `portalctl set-email -id <client id> [-email <address>]

  An empty -email clears the address.
`
}
func (c *setEmailCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Client id.")
	f.StringVar(&c.email, "email", "", "New email address.")
}

func (c *setEmailCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		return subcommands.ExitUsageError
	}
	svc, _, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	if err := svc.UpdateEmail(ctx, operator, c.id, c.email); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type statusCmd struct {
	app  *app
	year int
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the client and office status of every client for a year" }
func (*statusCmd) Usage() string {
	return `portalctl status [-year <year>]

  The year defaults to DEFAULT_YEAR.
`
}
func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "Fiscal year.")
}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cfg, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	year := c.year
	if year == 0 {
		year = cfg.DefaultYear
	}
	rows, err := svc.StatusMatrix(ctx, operator, year)
	if err != nil {
		return c.app.fail(err)
	}
	if err := renderStatus(c.app.out, year, rows); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	app  *app
	id   string
	year int
	file string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "merge a spreadsheet migration document into a client's checklists" }
func (*importCmd) Usage() string {
	return `portalctl import -id <client id> [-year <year>] [-file <path>]

  Reads {sales_data, term_inputs} JSON from -file, or stdin when -file is "-".
  Only terms that already have a saved checklist receive figures.
`
}
func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Client id.")
	f.IntVar(&c.year, "year", 0, "Fiscal year, defaults to DEFAULT_YEAR.")
	f.StringVar(&c.file, "file", "-", "Migration document.")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		return subcommands.ExitUsageError
	}
	data, err := c.read()
	if err != nil {
		return c.app.fail(err)
	}

	svc, cfg, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	year := c.year
	if year == 0 {
		year = cfg.DefaultYear
	}
	result, err := svc.ImportLegacy(ctx, operator, c.id, year, data)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.out, result.Message)
	for _, key := range result.UpdatedKeys {
		fmt.Fprintf(c.app.out, "  %s\n", key)
	}
	return subcommands.ExitSuccess
}

func (c *importCmd) read() ([]byte, error) {
	if c.file == "-" {
		return io.ReadAll(c.app.in)
	}
	data, err := os.ReadFile(c.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.file, err)
	}
	return data, nil
}

type reconcileCmd struct {
	app  *app
	id   string
	year int
	term int
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare shop reported totals with the ledger for a term" }
func (*reconcileCmd) Usage() string {
	return `portalctl reconcile -id <client id> -term <1-3> [-year <year>]
`
}
func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Client id.")
	f.IntVar(&c.year, "year", 0, "Fiscal year, defaults to DEFAULT_YEAR.")
	f.IntVar(&c.term, "term", 0, "Term (1: Jan-May, 2: Jun-Sep, 3: Oct-Dec).")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" || c.term == 0 {
		fmt.Fprintln(os.Stderr, "-id and -term are required")
		return subcommands.ExitUsageError
	}
	svc, cfg, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	year := c.year
	if year == 0 {
		year = cfg.DefaultYear
	}
	session := svc.OpenSession(operator)
	defer session.Close(ctx)
	view, err := session.LoadScope(ctx, portal.Scope{ClientID: c.id, Year: year, Term: c.term})
	if err != nil {
		return c.app.fail(err)
	}
	if err := renderReconciliation(c.app.out, view); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type serveCmd struct {
	app      *app
	clientID string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the MCP server on stdin and stdout" }
func (*serveCmd) Usage() string {
	return `portalctl serve [-client <client id>]

  Serves the portal tools over newline delimited JSON-RPC. Edits are saved
  after AUTOSAVE_DELAY of inactivity and when the input ends. With -client
  the caller acts as that client instead of as staff.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.clientID, "client", "", "Act as this client instead of as staff.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeStore, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer closeStore()

	actor := operator
	if c.clientID != "" {
		actor = portal.Actor{Subject: "portalctl", Role: portal.RoleClient, ClientID: c.clientID}
	}

	pool := tools.NewStickySessions(svc)
	registry := mcp.NewHandlerRegistry()
	tools.Register(registry, svc, pool, c.app.logger.With("component", "tools"))
	resources.Register(registry)
	server := mcp.NewService(c.app.logger, registry)

	serveErr := server.ServeStdio(portal.ContextWithActor(ctx, actor), c.app.in, c.app.out)
	// the serve context may be cancelled already; pending edits still get written
	flushErr := pool.Close(context.WithoutCancel(ctx))
	if err := errors.Join(ignoreCancel(serveErr), flushErr); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
