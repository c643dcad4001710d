package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hirosato/checklist-portal/backend/internal/domain/checklist"
	"github.com/hirosato/checklist-portal/backend/internal/domain/mcp"
)

// CatalogResource serves the task template of one term
type CatalogResource struct {
	term int
}

// NewCatalogResource creates the template resource for term
func NewCatalogResource(term int) *CatalogResource {
	return &CatalogResource{term: term}
}

func (r *CatalogResource) GetURI() string      { return fmt.Sprintf("portal://catalog/term%d", r.term) }
func (r *CatalogResource) GetName() string     { return fmt.Sprintf("Checklist template, term %d", r.term) }
func (r *CatalogResource) GetMimeType() string { return "application/json" }
func (r *CatalogResource) GetDescription() string {
	return fmt.Sprintf("Tasks and manuals of a fresh term %d checklist, months %v", r.term, checklist.TermMonths(r.term))
}

func (r *CatalogResource) Read(ctx context.Context) (*mcp.ReadResourceResult, error) {
	body := struct {
		Term   int                `json:"term"`
		Months []int              `json:"months"`
		Tasks  []checklist.Record `json:"tasks"`
	}{
		Term:   r.term,
		Months: checklist.TermMonths(r.term),
		Tasks:  checklist.ToRecords(checklist.Template(r.term)),
	}
	return jsonContent(r.GetURI(), body)
}

// ShopsResource serves the shops figures are reported for
type ShopsResource struct{}

func (r *ShopsResource) GetURI() string         { return "portal://shops" }
func (r *ShopsResource) GetName() string        { return "Shops" }
func (r *ShopsResource) GetDescription() string { return "E-commerce channels accepted by edit-shop-entry, in display order" }
func (r *ShopsResource) GetMimeType() string    { return "application/json" }

func (r *ShopsResource) Read(ctx context.Context) (*mcp.ReadResourceResult, error) {
	return jsonContent(r.GetURI(), checklist.Shops)
}

func jsonContent(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContent{{
			URI:      uri,
			MimeType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Register adds the catalog resources to the registry
func Register(registry *mcp.HandlerRegistry) {
	for _, term := range checklist.Terms() {
		registry.RegisterResource(NewCatalogResource(term))
	}
	registry.RegisterResource(&ShopsResource{})
}
