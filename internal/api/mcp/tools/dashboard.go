package tools

import (
	"context"
	"encoding/json"

	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

func dashboardTools(svc *portal.Service) []*Tool {
	return []*Tool{
		{
			name:        "list-clients",
			description: "Lists every client, oldest first (staff only)",
			schema:      mcp.JSONSchema{Type: "object"},
			verb:        "listed",
			staffOnly:   true,
			readOnly:    true,
			run: func(ctx context.Context, c *call) (any, error) {
				return svc.ListClients(ctx, c.actor)
			},
		},
		{
			name:        "create-client",
			description: "Registers a new client with an empty email (staff only)",
			schema: mcp.JSONSchema{
				Type:       "object",
				Properties: map[string]interface{}{"name": stringProp("Client name")},
				Required:   []string{"name"},
			},
			verb:      "created",
			staffOnly: true,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					Name string `json:"name"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				return svc.CreateClient(ctx, c.actor, args.Name)
			},
		},
		{
			name:        "update-client-email",
			description: "Sets or clears the contact email of a client (staff only)",
			schema: mcp.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"clientId": stringProp("Client ID"),
					"email":    stringProp("New email; empty clears it"),
				},
				Required: []string{"clientId", "email"},
			},
			verb:       "updated",
			staffOnly:  true,
			idempotent: true,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					ClientID string `json:"clientId"`
					Email    string `json:"email"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				if err := svc.UpdateEmail(ctx, c.actor, args.ClientID, args.Email); err != nil {
					return nil, err
				}
				return map[string]string{"clientId": args.ClientID, "email": args.Email}, nil
			},
		},
		{
			name:        "status-matrix",
			description: "Shows the client and office status of every client for the three terms of a year (staff only)",
			schema: mcp.JSONSchema{
				Type:       "object",
				Properties: map[string]interface{}{"year": intProp("Fiscal year", 2000, 2100)},
				Required:   []string{"year"},
			},
			verb:      "computed",
			staffOnly: true,
			readOnly:  true,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					Year int `json:"year"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				return svc.StatusMatrix(ctx, c.actor, args.Year)
			},
		},
		{
			name:        "import-legacy",
			description: "Merges a spreadsheet migration document into the saved checklists of a year (staff only)",
			schema: mcp.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"clientId": stringProp("Client ID"),
					"year":     intProp("Fiscal year", 2000, 2100),
					"data": map[string]interface{}{
						"type":        []string{"object", "string"},
						"description": "Migration document {sales_data:[{month,shop,sales,purchase,fee}], term_inputs:{termN:{points,notes,status}}}, as an object or JSON text",
					},
				},
				Required: []string{"clientId", "year", "data"},
			},
			verb:        "completed",
			staffOnly:   true,
			destructive: true,
			idempotent:  true,
			run: func(ctx context.Context, c *call) (any, error) {
				var args struct {
					ClientID string          `json:"clientId"`
					Year     int             `json:"year"`
					Data     json.RawMessage `json:"data"`
				}
				if err := c.bind(&args); err != nil {
					return nil, err
				}
				doc := []byte(args.Data)
				var text string
				if err := json.Unmarshal(args.Data, &text); err == nil {
					doc = []byte(text)
				}
				return svc.ImportLegacy(ctx, c.actor, args.ClientID, args.Year, doc)
			},
		},
	}
}
