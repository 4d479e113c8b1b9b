// Package mcp provides the MCP (Model Context Protocol) server for Wayfinder.
package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/logging"
	"github.com/Benny93/wayfinder-go/internal/navigation"
	"github.com/Benny93/wayfinder-go/internal/pathfind"
	"github.com/Benny93/wayfinder-go/internal/storage"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

const defaultSearchLimit = 10

// Router answers route queries. It is implemented by *navigation.Service.
type Router interface {
	Route(ctx context.Context, plan, from, to string) (*navigation.Result, error)
	Plan(ctx context.Context, name string) (*floorplan.FloorPlan, *pathfind.Pathfinder, error)
	ResolvePlan(ctx context.Context, name string) (string, error)
}

// PlanStore is the read side of the plan catalogue.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]storage.PlanSummary, error)
	SearchNodes(ctx context.Context, plan, query string, limit int) ([]storage.SearchResult, error)
}

// Server represents the MCP server.
type Server struct {
	router Router
	store  PlanStore
	logger *zap.Logger
	impl   *mcp.Implementation
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server.
func NewServer(router Router, store PlanStore, logger *zap.Logger) *Server {
	s := &Server{
		router: router,
		store:  store,
		logger: logging.OrNop(logger),
		impl: &mcp.Implementation{
			Name:    "wayfinder",
			Version: Version,
		},
	}
	s.server = mcp.NewServer(s.impl, nil)
	s.register()
	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	planProp := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Description: "Floor plan name (defaults to the configured or only plan)"}
	}
	return []Tool{
		{
			Name:        "wayfinder_route",
			Description: "Shortest walking route between two named locations. Returns nodes and edges in walking order.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"plan": planProp(),
					"from": {Type: "string", Description: "Start location name (defaults to the configured start node)"},
					"to":   {Type: "string", Description: "Destination location name"},
					"format": {
						Type:        "string",
						Description: "Output format",
						Enum:        []any{"text", "json"},
					},
				},
				Required: []string{"to"},
			},
		},
		{
			Name:        "wayfinder_nodes",
			Description: "List every location (node) of a floor plan with its id and position.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"plan": planProp(),
				},
			},
		},
		{
			Name:        "wayfinder_plans",
			Description: "List all imported floor plans with their stats.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "wayfinder_search",
			Description: "Find locations whose names match a query. Use it to resolve names before routing.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"plan":  planProp(),
					"query": {Type: "string", Description: "Search query text"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "wayfinder://overview",
			Name:        "Floor Plan Overview",
			Description: "Imported floor plans and their sizes",
			MimeType:    "text/plain",
		},
		{
			URI:         "wayfinder://schema",
			Name:        "Floor Plan Schema",
			Description: "JSON Schema of the floor-plan document format",
			MimeType:    "application/json",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	plan, _ := args["plan"].(string)

	switch name {
	case "wayfinder_route":
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		format, _ := args["format"].(string)
		return s.handleRoute(ctx, plan, from, to, format)
	case "wayfinder_nodes":
		return s.handleNodes(ctx, plan)
	case "wayfinder_plans":
		return s.handlePlans(ctx)
	case "wayfinder_search":
		query, _ := args["query"].(string)
		limit, _ := args["limit"].(float64)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		return s.handleSearch(ctx, plan, query, int(limit))
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "wayfinder://overview":
		return s.getOverview(ctx)
	case "wayfinder://schema":
		return getSchema()
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves one MCP session over newline-delimited JSON on stdin and
// stdout until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	})
}

// Connect starts a session over t and returns without waiting for it to end.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type routeArgs struct {
	Plan   string `json:"plan,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Format string `json:"format,omitempty"`
}

type nodesArgs struct {
	Plan string `json:"plan,omitempty"`
}

type plansArgs struct{}

type searchArgs struct {
	Plan  string `json:"plan,omitempty"`
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// register adds every tool and resource to the SDK server. Arguments are
// validated against the tool input schemas before a handler runs.
func (s *Server) register() {
	for _, tool := range s.ListTools() {
		t := &mcp.Tool{Name: tool.Name, Description: tool.Description, InputSchema: tool.InputSchema}
		switch tool.Name {
		case "wayfinder_route":
			mcp.AddTool(s.server, t, func(ctx context.Context, _ *mcp.CallToolRequest, args routeArgs) (*mcp.CallToolResult, any, error) {
				return s.textResult(tool.Name)(s.handleRoute(ctx, args.Plan, args.From, args.To, args.Format))
			})
		case "wayfinder_nodes":
			mcp.AddTool(s.server, t, func(ctx context.Context, _ *mcp.CallToolRequest, args nodesArgs) (*mcp.CallToolResult, any, error) {
				return s.textResult(tool.Name)(s.handleNodes(ctx, args.Plan))
			})
		case "wayfinder_plans":
			mcp.AddTool(s.server, t, func(ctx context.Context, _ *mcp.CallToolRequest, _ plansArgs) (*mcp.CallToolResult, any, error) {
				return s.textResult(tool.Name)(s.handlePlans(ctx))
			})
		case "wayfinder_search":
			mcp.AddTool(s.server, t, func(ctx context.Context, _ *mcp.CallToolRequest, args searchArgs) (*mcp.CallToolResult, any, error) {
				if args.Limit <= 0 {
					args.Limit = defaultSearchLimit
				}
				return s.textResult(tool.Name)(s.handleSearch(ctx, args.Plan, args.Query, args.Limit))
			})
		}
	}

	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, s.readResource(res.MimeType))
	}
}

// textResult wraps handler output as a text tool result. Errors become
// tool errors the client can show, not protocol failures.
func (s *Server) textResult(tool string) func(string, error) (*mcp.CallToolResult, any, error) {
	return func(text string, err error) (*mcp.CallToolResult, any, error) {
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
			return nil, nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
	}
}

func (s *Server) readResource(mimeType string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		text, err := s.ReadResource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: text}},
		}, nil
	}
}
