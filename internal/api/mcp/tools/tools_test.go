package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
	"github.com/hirosato/checklist-portal/backend/internal/platform/sqlite"
)

var (
	staff  = portal.Actor{Subject: "staff-1", Role: portal.RoleStaff}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

type fixture struct {
	repo     *sqlite.ClientRepository
	registry *mcp.HandlerRegistry
	pool     *SessionPool
}

func newFixture(t *testing.T, sticky bool) *fixture {
	t.Helper()
	repo, err := sqlite.NewClientRepository(filepath.Join(t.TempDir(), "portal.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// a long delay so only explicit flushes write
	svc := portal.NewService(repo, logger, time.Hour)
	pool := NewRequestSessions(svc)
	if sticky {
		pool = NewStickySessions(svc)
	}
	registry := mcp.NewHandlerRegistry()
	Register(registry, svc, pool, logger)
	return &fixture{repo: repo, registry: registry, pool: pool}
}

func (f *fixture) call(t *testing.T, actor *portal.Actor, name string, args any) *mcp.CallToolResult {
	t.Helper()
	tool, ok := f.registry.GetTool(name)
	require.True(t, ok, "tool %s not registered", name)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	ctx := context.Background()
	if actor != nil {
		ctx = portal.ContextWithActor(ctx, *actor)
	}
	res, err := tool.Execute(ctx, raw)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	return res
}

// decode reads the JSON body that follows the first line of a successful result
func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, res.Content[0].Text)
	_, body, ok := strings.Cut(res.Content[0].Text, "\n")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(body), v))
}

func errorOf(t *testing.T, res *mcp.CallToolResult) errorPayload {
	t.Helper()
	require.True(t, res.IsError)
	var p errorPayload
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(res.Content[0].Text, "Error: ")), &p))
	return p
}

func (f *fixture) createClient(t *testing.T, name string) string {
	t.Helper()
	var summary portal.ClientSummary
	decode(t, f.call(t, &staff, "create-client", map[string]any{"name": name}), &summary)
	return summary.ID
}

func toolNames(tools []mcp.Tool) []string {
	names := []string{}
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestRegister(t *testing.T) {
	t.Run("staff see every tool", func(t *testing.T) {
		// Setup
		f := newFixture(t, false)

		// Act
		names := toolNames(f.registry.ListTools(staff))

		// Assert
		assert.Equal(t, []string{
			"add-custom-task", "create-client", "delete-custom-task", "edit-ledger-entry", "edit-shop-entry",
			"edit-task", "import-legacy", "list-clients", "load-scope", "reconcile", "status-matrix",
			"submit-scope", "update-client-email",
		}, names)
	})

	t.Run("clients see only checklist tools", func(t *testing.T) {
		f := newFixture(t, false)
		client := portal.Actor{Subject: "u1", Role: portal.RoleClient, ClientID: "c1"}

		names := toolNames(f.registry.ListTools(client))

		assert.Equal(t, []string{
			"edit-ledger-entry", "edit-shop-entry", "edit-task", "load-scope", "reconcile", "submit-scope",
		}, names)
	})

	t.Run("annotations", func(t *testing.T) {
		// Setup
		f := newFixture(t, false)
		byName := map[string]*mcp.ToolAnnotations{}
		for _, tool := range f.registry.ListTools(staff) {
			byName[tool.Name] = tool.Annotations
		}

		// Assert
		require.NotNil(t, byName["reconcile"])
		assert.True(t, byName["reconcile"].ReadOnlyHint)
		assert.True(t, byName["reconcile"].IdempotentHint)
		assert.False(t, byName["reconcile"].DestructiveHint)
		assert.True(t, byName["delete-custom-task"].DestructiveHint)
		assert.False(t, byName["submit-scope"].ReadOnlyHint)
		assert.False(t, byName["submit-scope"].IdempotentHint)
	})
}

func TestDashboardTools(t *testing.T) {
	t.Run("create, email and list", func(t *testing.T) {
		// Setup
		f := newFixture(t, false)
		id := f.createClient(t, "Shop A")

		// Act
		res := f.call(t, &staff, "update-client-email", map[string]any{"clientId": id, "email": "a@example.com"})
		var clients []portal.ClientSummary
		decode(t, f.call(t, &staff, "list-clients", nil), &clients)

		// Assert
		assert.Contains(t, res.Content[0].Text, "update-client-email updated successfully")
		require.Len(t, clients, 1)
		assert.Equal(t, "Shop A", clients[0].Name)
		assert.Equal(t, "a@example.com", clients[0].Email)
	})

	t.Run("clients cannot use staff tools", func(t *testing.T) {
		f := newFixture(t, false)
		client := portal.Actor{Subject: "u1", Role: portal.RoleClient, ClientID: "c1"}

		res := f.call(t, &client, "list-clients", nil)

		assert.Equal(t, commonErrors.CodeAuthorization, errorOf(t, res).Code)
	})

	t.Run("missing caller", func(t *testing.T) {
		f := newFixture(t, false)

		res := f.call(t, nil, "list-clients", nil)

		assert.Equal(t, commonErrors.CodeAuthentication, errorOf(t, res).Code)
	})

	t.Run("bad arguments", func(t *testing.T) {
		f := newFixture(t, false)

		res := f.call(t, &staff, "create-client", map[string]any{"name": 42})

		assert.Equal(t, commonErrors.CodeInvalidInput, errorOf(t, res).Code)
	})

	t.Run("import accepts the document as text", func(t *testing.T) {
		// Setup
		f := newFixture(t, false)
		id := f.createClient(t, "Shop B")
		doc := `{"sales_data":[{"month":2,"shop":"Amazon","sales":1000,"purchase":400,"fee":50}],"term_inputs":{"term1":{"status":"完了"}}}`

		// Act
		res := f.call(t, &staff, "import-legacy", map[string]any{"clientId": id, "year": 2025, "data": doc})
		var rows []portal.StatusRow
		decode(t, f.call(t, &staff, "status-matrix", map[string]any{"year": 2025}), &rows)

		// Assert
		assert.False(t, res.IsError, res.Content[0].Text)
		require.Len(t, rows, 1)
		assert.Equal(t, checklist.ClientComplete, rows[0].Terms[1].ClientStatus)
	})
}

func TestScopeTools(t *testing.T) {
	t.Run("per request sessions write every edit", func(t *testing.T) {
		// Setup
		f := newFixture(t, false)
		id := f.createClient(t, "Shop A")
		client := portal.Actor{Subject: "u1", Role: portal.RoleClient, ClientID: id}

		// Act
		var view portal.View
		decode(t, f.call(t, &client, "edit-task", map[string]any{
			"clientId": id, "year": 2025, "term": 1,
			"index": 1, "field": "clientInput", "value": "done",
		}), &view)

		// Assert
		assert.Equal(t, portal.SaveSaved, view.SaveState)
		assert.Equal(t, checklist.ClientInProgress, view.Status.ClientStatus)
		rec, err := f.repo.GetClient(context.Background(), id)
		require.NoError(t, err)
		saved, ok := rec.SavedTasks(2025, 1)
		require.True(t, ok)
		assert.Equal(t, "done", saved[1].ClientInput)
	})

	t.Run("clients cannot open another client", func(t *testing.T) {
		f := newFixture(t, false)
		id := f.createClient(t, "Shop A")
		other := portal.Actor{Subject: "u2", Role: portal.RoleClient, ClientID: "someone-else"}

		res := f.call(t, &other, "load-scope", map[string]any{"clientId": id, "year": 2025, "term": 1})

		assert.Equal(t, commonErrors.CodeAuthorization, errorOf(t, res).Code)
	})

	t.Run("edits without a scope are rejected", func(t *testing.T) {
		f := newFixture(t, false)

		res := f.call(t, &staff, "reconcile", nil)

		assert.Equal(t, commonErrors.CodeValidation, errorOf(t, res).Code)
	})

	t.Run("sticky sessions keep the scope and submit checks variance", func(t *testing.T) {
		// Setup
		f := newFixture(t, true)
		id := f.createClient(t, "Shop A")
		f.call(t, &staff, "load-scope", map[string]any{"clientId": id, "year": 2025, "term": 1})
		f.call(t, &staff, "edit-shop-entry", map[string]any{"taskIndex": 6, "month": 2, "shop": "Amazon", "field": "sales", "value": "1,000"})
		f.call(t, &staff, "edit-ledger-entry", map[string]any{"taskIndex": 7, "month": 2, "field": "sales", "value": 2000})

		// Act
		blocked := f.call(t, &staff, "submit-scope", nil)
		f.call(t, &staff, "edit-task", map[string]any{"index": 7, "field": "justification", "value": "refund booked in March"})
		var view portal.View
		done := f.call(t, &staff, "submit-scope", nil)
		decode(t, done, &view)
		rows := f.call(t, &staff, "reconcile", nil)

		// Assert
		p := errorOf(t, blocked)
		var structured errorPayload
		require.NoError(t, json.Unmarshal(blocked.StructuredContent, &structured))
		assert.Equal(t, p, structured)
		assert.Equal(t, commonErrors.CodeJustificationRequired, p.Code)
		assert.Equal(t, []interface{}{float64(2)}, p.Details["months"])
		assert.Equal(t, checklist.ClientComplete, view.Status.ClientStatus)
		assert.Empty(t, view.BlockedMonths)
		var structuredView portal.View
		require.NoError(t, json.Unmarshal(done.StructuredContent, &structuredView))
		assert.Equal(t, view.Status, structuredView.Status)
		assert.False(t, rows.IsError)
		assert.Empty(t, rows.StructuredContent, "lists are sent as text only")
		require.NoError(t, f.pool.Close(context.Background()))
	})

	t.Run("custom tasks", func(t *testing.T) {
		// Setup
		f := newFixture(t, true)
		id := f.createClient(t, "Shop A")
		scope := map[string]any{"clientId": id, "year": 2025, "term": 3}

		// Act
		var added portal.View
		decode(t, f.call(t, &staff, "add-custom-task", scope), &added)
		last := len(added.Tasks) - 1
		templateDelete := f.call(t, &staff, "delete-custom-task", map[string]any{"index": 0})
		var removed portal.View
		decode(t, f.call(t, &staff, "delete-custom-task", map[string]any{"index": last}), &removed)

		// Assert
		assert.True(t, added.Tasks[last].IsCustom)
		assert.Equal(t, commonErrors.CodeValidation, errorOf(t, templateDelete).Code)
		assert.Len(t, removed.Tasks, len(checklist.Template(3)))
		require.NoError(t, f.pool.Close(context.Background()))
	})
}
