package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	commonErrors "github.com/hirosato/checklist-portal/backend/internal/domain/errors"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

type scopeArgs struct {
	ClientID string `json:"clientId"`
	Year     int    `json:"year"`
	Term     int    `json:"term"`
}

func (a scopeArgs) scope() portal.Scope {
	return portal.Scope{ClientID: a.ClientID, Year: a.Year, Term: a.Term}
}

// ensureScope loads the scope named by the arguments unless it is already open.
// Without scope arguments the call works on the scope the session has loaded.
func ensureScope(ctx context.Context, s *portal.Session, a scopeArgs) error {
	current, loaded := s.Current()
	if a.ClientID == "" && a.Year == 0 && a.Term == 0 {
		if !loaded {
			return commonErrors.NewValidationError("no scope loaded: pass clientId, year and term")
		}
		return nil
	}
	if loaded && current == a.scope() {
		return nil
	}
	_, err := s.LoadScope(ctx, a.scope())
	return err
}

// amountText accepts an amount given either as a JSON number or as text such as "1,200".
func amountText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func scopeSchema(props map[string]interface{}, required ...string) mcp.JSONSchema {
	all := map[string]interface{}{
		"clientId": stringProp("Client ID. With year and term, opens that checklist first"),
		"year":     intProp("Fiscal year", 2000, 2100),
		"term":     intProp("Term (1: Jan-May, 2: Jun-Sep, 3: Oct-Dec and year end)", 1, 3),
	}
	for k, v := range props {
		all[k] = v
	}
	return mcp.JSONSchema{Type: "object", Properties: all, Required: required}
}

func scopeTools(pool *SessionPool) []*Tool {
	return []*Tool{
		{
			name:        "load-scope",
			description: "Opens the checklist of a client for a fiscal year and term. Pending edits of the previous checklist are saved first",
			schema:      scopeSchema(nil, "clientId", "year", "term"),
			verb:        "loaded",
			readOnly:    true,
			pool:        pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args scopeArgs
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				return c.session.LoadScope(ctx, args.scope())
			},
		},
		{
			name:        "edit-task",
			description: "Edits one field of a checklist task. Staff only fields: officeStatus, memo, and name of custom tasks",
			schema: scopeSchema(map[string]interface{}{
				"index": intProp("Zero based task position", 0, 100),
				"field": enumProp("Field to change",
					string(portal.FieldClientInput), string(portal.FieldOfficeStatus), string(portal.FieldMemo),
					string(portal.FieldName), string(portal.FieldJustification)),
				"value": stringProp("New value. officeStatus takes 未, OK or 要確認"),
			}, "index", "field", "value"),
			verb:       "applied",
			idempotent: true,
			pool:       pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					scopeArgs
					Index int    `json:"index"`
					Field string `json:"field"`
					Value string `json:"value"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args.scopeArgs); err != nil {
					return nil, err
				}
				return c.session.EditTask(args.Index, portal.TaskField(args.Field), args.Value)
			},
		},
		{
			name:        "edit-shop-entry",
			description: "Sets the sales, purchase or fee a shop reported for a month on the sales input task",
			schema: scopeSchema(map[string]interface{}{
				"taskIndex": intProp("Position of the sales input task", 0, 100),
				"month":     intProp("Calendar month within the term", 1, 12),
				"shop":      enumProp("Shop", checklist.Shops...),
				"field":     enumProp("Figure to set", string(portal.AmountSales), string(portal.AmountPurchase), string(portal.AmountFee)),
				"value":     map[string]interface{}{"type": []string{"string", "number"}, "description": "Amount; commas are ignored, invalid input counts as 0"},
			}, "taskIndex", "month", "shop", "field", "value"),
			verb:       "applied",
			idempotent: true,
			pool:       pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					scopeArgs
					TaskIndex int             `json:"taskIndex"`
					Month     int             `json:"month"`
					Shop      string          `json:"shop"`
					Field     string          `json:"field"`
					Value     json.RawMessage `json:"value"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args.scopeArgs); err != nil {
					return nil, err
				}
				return c.session.EditShopEntry(args.TaskIndex, args.Month, args.Shop, portal.AmountField(args.Field), amountText(args.Value))
			},
		},
		{
			name:        "edit-ledger-entry",
			description: "Sets the sales or purchase the accounting ledger shows for a month on the sales check task",
			schema: scopeSchema(map[string]interface{}{
				"taskIndex": intProp("Position of the sales check task", 0, 100),
				"month":     intProp("Calendar month within the term", 1, 12),
				"field":     enumProp("Figure to set", string(portal.AmountSales), string(portal.AmountPurchase)),
				"value":     map[string]interface{}{"type": []string{"string", "number"}, "description": "Amount; commas are ignored, invalid input counts as 0"},
			}, "taskIndex", "month", "field", "value"),
			verb:       "applied",
			idempotent: true,
			pool:       pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					scopeArgs
					TaskIndex int             `json:"taskIndex"`
					Month     int             `json:"month"`
					Field     string          `json:"field"`
					Value     json.RawMessage `json:"value"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args.scopeArgs); err != nil {
					return nil, err
				}
				return c.session.EditLedgerEntry(args.TaskIndex, args.Month, portal.AmountField(args.Field), amountText(args.Value))
			},
		},
		{
			name:        "submit-scope",
			description: "Marks the checklist complete for the client. Fails with JUSTIFICATION_REQUIRED listing the months whose variance needs a reason",
			schema:      scopeSchema(nil),
			verb:        "submitted",
			pool:        pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args scopeArgs
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args); err != nil {
					return nil, err
				}
				return c.session.Submit(ctx)
			},
		},
		{
			name:        "reconcile",
			description: "Compares the shop reported totals with the ledger for every month of the term",
			schema:      scopeSchema(nil),
			verb:        "computed",
			readOnly:    true,
			pool:        pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args scopeArgs
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args); err != nil {
					return nil, err
				}
				return c.session.Reconcile()
			},
		},
		{
			name:        "add-custom-task",
			description: "Appends a free form task to a term 3 checklist (staff only)",
			schema:      scopeSchema(nil),
			verb:        "added",
			staffOnly:   true,
			pool:        pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args scopeArgs
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args); err != nil {
					return nil, err
				}
				return c.session.AddCustomTask()
			},
		},
		{
			name:        "delete-custom-task",
			description: "Removes a custom task (staff only). Template tasks cannot be deleted",
			schema: scopeSchema(map[string]interface{}{
				"index": intProp("Zero based task position", 0, 100),
			}, "index"),
			verb:        "deleted",
			staffOnly:   true,
			destructive: true,
			pool:        pool,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					scopeArgs
					Index int `json:"index"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := ensureScope(ctx, c.session, args.scopeArgs); err != nil {
					return nil, err
				}
				return c.session.DeleteCustomTask(args.Index)
			},
		},
	}
}
