package mcp

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// ToolHandler is a callable tool
type ToolHandler interface {
	GetName() string
	GetDescription() string
	GetInputSchema() JSONSchema
	Execute(ctx context.Context, arguments json.RawMessage) (*CallToolResult, error)
}

// AnnotatedTool is implemented by tools that publish behaviour hints.
type AnnotatedTool interface {
	GetAnnotations() *ToolAnnotations
}

// RestrictedTool is implemented by tools only some callers may use.
// Restricted tools are left out of tools/list for other callers.
type RestrictedTool interface {
	AvailableTo(actor portal.Actor) bool
}

// ResourceHandler is a readable resource
type ResourceHandler interface {
	GetURI() string
	GetName() string
	GetDescription() string
	GetMimeType() string
	Read(ctx context.Context) (*ReadResourceResult, error)
}

// HandlerRegistry holds the tools and resources a Service exposes
type HandlerRegistry struct {
	tools     map[string]ToolHandler
	resources map[string]ResourceHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		tools:     make(map[string]ToolHandler),
		resources: make(map[string]ResourceHandler),
	}
}

// RegisterTool adds a tool. A later registration with the same name replaces the earlier one.
func (r *HandlerRegistry) RegisterTool(handler ToolHandler) {
	r.tools[handler.GetName()] = handler
}

// RegisterResource adds a resource, keyed by URI.
func (r *HandlerRegistry) RegisterResource(handler ResourceHandler) {
	r.resources[handler.GetURI()] = handler
}

func (r *HandlerRegistry) GetTool(name string) (ToolHandler, bool) {
	handler, ok := r.tools[name]
	return handler, ok
}

func (r *HandlerRegistry) GetResource(uri string) (ResourceHandler, bool) {
	handler, ok := r.resources[uri]
	return handler, ok
}

// ListTools returns the tools actor may call, sorted by name.
// The zero Actor sees only unrestricted tools.
func (r *HandlerRegistry) ListTools(actor portal.Actor) []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, handler := range r.tools {
		if restricted, ok := handler.(RestrictedTool); ok && !restricted.AvailableTo(actor) {
			continue
		}
		tool := Tool{
			Name:        handler.GetName(),
			Description: handler.GetDescription(),
			InputSchema: handler.GetInputSchema(),
		}
		if annotated, ok := handler.(AnnotatedTool); ok {
			tool.Annotations = annotated.GetAnnotations()
		}
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ListResources returns every resource sorted by URI
func (r *HandlerRegistry) ListResources() []Resource {
	resources := make([]Resource, 0, len(r.resources))
	for _, handler := range r.resources {
		resources = append(resources, Resource{
			URI:         handler.GetURI(),
			Name:        handler.GetName(),
			Description: handler.GetDescription(),
			MimeType:    handler.GetMimeType(),
		})
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return resources
}
