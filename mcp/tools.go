package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/navigation"
	"github.com/Benny93/wayfinder-go/internal/pathfind"
	"github.com/Benny93/wayfinder-go/internal/storage"
)

// routeDocument is the JSON route format. Path alternates node and edge
// objects, starting and ending with a node.
type routeDocument struct {
	Plan   string  `json:"plan"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Length float64 `json:"length"`
	Path   []any   `json:"path"`
}

// Tool Handlers

func (s *Server) handleRoute(ctx context.Context, plan, from, to, format string) (string, error) {
	if to == "" {
		return "No destination provided", nil
	}

	res, err := s.router.Route(ctx, plan, from, to)
	if err != nil {
		var unknown *navigation.UnknownEndpointError
		switch {
		case errors.As(err, &unknown):
			return formatUnknownEndpoint(unknown), nil
		case errors.Is(err, pathfind.ErrUnreachable):
			return fmt.Sprintf("No path from '%s' to '%s'. The destination cannot be reached from the start.", displayStart(from), to), nil
		case errors.Is(err, navigation.ErrNoStart):
			return "No start location provided and no default start node configured", nil
		default:
			return "", err
		}
	}

	if format == "json" {
		data, err := json.Marshal(routeDocument{
			Plan:   res.Plan,
			From:   res.From,
			To:     res.To,
			Length: res.Length,
			Path:   res.Path.Items(),
		})
		if err != nil {
			return "", fmt.Errorf("encoding route: %w", err)
		}
		return string(data), nil
	}

	return formatRoute(res), nil
}

func (s *Server) handleNodes(ctx context.Context, planName string) (string, error) {
	plan, _, err := s.router.Plan(ctx, planName)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Plan **%s**: %d locations\n\n", plan.Name, len(plan.Nodes)))
	for _, node := range plan.Nodes {
		sb.WriteString(fmt.Sprintf("- %s (id %s) at [%.2f, %.2f, %.2f]\n",
			node.Name, node.ID, node.Position[0], node.Position[1], node.Position[2]))
	}
	sb.WriteString("\nNext: Use `wayfinder_route` with two of these names.")
	return sb.String(), nil
}

func (s *Server) handlePlans(ctx context.Context) (string, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return "", err
	}
	if len(plans) == 0 {
		return "No floor plans imported. Run `wayfinder import <dir>` first.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Imported floor plans (%d):\n\n", len(plans)))
	for _, p := range plans {
		sb.WriteString(formatSummary(p))
	}
	return sb.String(), nil
}

func (s *Server) handleSearch(ctx context.Context, planName, query string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	planName, err := s.router.ResolvePlan(ctx, planName)
	if err != nil {
		return "", err
	}

	results, err := s.store.SearchNodes(ctx, planName, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d locations for '%s' in %s:\n\n", len(results), query, planName))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** (id %s)\n", i+1, r.NodeName, r.NodeID))
		sb.WriteString(fmt.Sprintf("   Score: %.3f\n", r.Score))
	}
	sb.WriteString("\nNext: Use `wayfinder_route` with the exact name.")
	return sb.String(), nil
}

// Resource Handlers

func (s *Server) getOverview(ctx context.Context) (string, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Wayfinder Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Plans:** %d\n\n", len(plans)))
	for _, p := range plans {
		sb.WriteString(formatSummary(p))
	}
	sb.WriteString("\n## Graph Model\n\n")
	sb.WriteString("- Node: a named location with a 3D position\n")
	sb.WriteString("- Edge: a walkable connection with a length; bidirectional or unidirectional\n")
	sb.WriteString("- Marker: an image anchor used to localize the device\n")
	sb.WriteString("\nRoutes alternate node, edge, node and end on the destination node.\n")
	return sb.String(), nil
}

func getSchema() (string, error) {
	data, err := json.MarshalIndent(floorplan.Schema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	return string(data), nil
}

// Formatting

func formatRoute(res *navigation.Result) string {
	var sb strings.Builder
	stops := res.Path.Nodes()
	sb.WriteString(fmt.Sprintf("Route from **%s** to **%s** in %s: %.2f m, %d stops\n\n",
		res.From, res.To, res.Plan, res.Length, len(stops)))

	for i, seg := range res.Path {
		switch step := seg.(type) {
		case pathfind.NodeStep:
			sb.WriteString(fmt.Sprintf("%d. %s (id %s)\n", i/2+1, step.Node.Name, step.Node.ID))
		case pathfind.EdgeStep:
			arrow := "->"
			if step.Edge.Directionality == floorplan.Unidirectional {
				arrow = "=>"
			}
			sb.WriteString(fmt.Sprintf("   %s %.2f m\n", arrow, step.Edge.Length))
		}
	}
	return sb.String()
}

func formatUnknownEndpoint(err *navigation.UnknownEndpointError) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Unknown %s '%s'.", err.Endpoint, err.Name))
	if len(err.Suggestions) == 0 {
		sb.WriteString(" No similar locations found.")
		return sb.String()
	}
	sb.WriteString(" Did you mean:\n")
	for _, s := range err.Suggestions {
		sb.WriteString(fmt.Sprintf("- %s (id %s)\n", s.NodeName, s.NodeID))
	}
	return sb.String()
}

func formatSummary(p storage.PlanSummary) string {
	level := ""
	if p.Level != "" {
		level = fmt.Sprintf(", level %s", p.Level)
	}
	return fmt.Sprintf("- **%s**%s: %d nodes, %d edges, %d markers (imported %s)\n",
		p.Name, level, p.Nodes, p.Edges, p.Markers, p.ImportedAt.Format("2006-01-02 15:04:05"))
}

func displayStart(from string) string {
	if from == "" {
		return "default start"
	}
	return from
}
