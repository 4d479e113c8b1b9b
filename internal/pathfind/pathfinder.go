package pathfind

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

var (
	// ErrUnknownEndpoint means a start or destination name matched no node.
	ErrUnknownEndpoint = errors.New("unknown endpoint name")

	// ErrUnreachable means both endpoints exist but no arcs connect them.
	ErrUnreachable = errors.New("destination unreachable")
)

// Endpoint names the side of a route request.
type Endpoint string

const (
	EndpointStart       Endpoint = "start"
	EndpointDestination Endpoint = "destination"
)

// EndpointError reports which endpoint name could not be resolved.
type EndpointError struct {
	Endpoint Endpoint
	Name     string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s name %q does not match any node", e.Endpoint, e.Name)
}

// Unwrap lets errors.Is match ErrUnknownEndpoint.
func (e *EndpointError) Unwrap() error {
	return ErrUnknownEndpoint
}

// Pathfinder routes over one immutable node/edge snapshot.
//
// The adjacency list is built on first use and never modified afterwards,
// so a Pathfinder is safe for concurrent use without locking.
type Pathfinder struct {
	nodes []floorplan.Node
	edges []floorplan.Edge
	index *floorplan.Index

	once sync.Once
	adj  Adjacency
}

// New validates nodes and edges and returns a Pathfinder over them.
// The slices must not be modified while the Pathfinder is in use.
func New(nodes []floorplan.Node, edges []floorplan.Edge) (*Pathfinder, error) {
	if err := floorplan.Validate(nodes, edges); err != nil {
		return nil, err
	}
	return &Pathfinder{
		nodes: nodes,
		edges: edges,
		index: floorplan.NewIndex(nodes),
	}, nil
}

// NewFromPlan returns a Pathfinder over a loaded floor plan.
func NewFromPlan(plan *floorplan.FloorPlan) (*Pathfinder, error) {
	return New(plan.Nodes, plan.Edges)
}

func (pf *Pathfinder) adjacency() Adjacency {
	pf.once.Do(func() {
		pf.adj = BuildAdjacency(pf.edges)
	})
	return pf.adj
}

// Index returns the node index of the snapshot.
func (pf *Pathfinder) Index() *floorplan.Index {
	return pf.index
}

// Route returns the shortest path from the node named startName to the node
// named endName. Errors match ErrUnknownEndpoint or ErrUnreachable.
func (pf *Pathfinder) Route(startName, endName string) (Path, error) {
	start := pf.index.ByName(startName)
	if start == nil {
		return nil, &EndpointError{Endpoint: EndpointStart, Name: startName}
	}
	return pf.route(start, endName)
}

// RouteFrom is Route with the start node given by id, for callers that
// already hold a node whose name may be shared with an earlier node.
func (pf *Pathfinder) RouteFrom(startID floorplan.NodeID, endName string) (Path, error) {
	start := pf.index.ByID(startID)
	if start == nil {
		return nil, &EndpointError{Endpoint: EndpointStart, Name: string(startID)}
	}
	return pf.route(start, endName)
}

func (pf *Pathfinder) route(start *floorplan.Node, endName string) (Path, error) {
	end := pf.index.ByName(endName)
	if end == nil {
		return nil, &EndpointError{Endpoint: EndpointDestination, Name: endName}
	}

	s := dijkstra(pf.adjacency(), start.ID)
	path, ok := s.reconstruct(pf.index, start.ID, end.ID)
	if !ok {
		return nil, fmt.Errorf("%w: no path from %q to %q", ErrUnreachable, start.Name, endName)
	}
	return path, nil
}

// Distances returns the shortest distance from the node named startName to
// every node reachable from it.
func (pf *Pathfinder) Distances(startName string) (map[floorplan.NodeID]float64, error) {
	start := pf.index.ByName(startName)
	if start == nil {
		return nil, &EndpointError{Endpoint: EndpointStart, Name: startName}
	}
	return dijkstra(pf.adjacency(), start.ID).dist, nil
}

// FindPathByName returns the shortest path between two named nodes of the
// given graph, or nil when the graph is malformed, either name is unknown,
// or the destination is unreachable. Failures are logged, never returned.
func FindPathByName(logger *zap.Logger, startName, endName string, nodes []floorplan.Node, edges []floorplan.Edge) Path {
	if logger == nil {
		logger = zap.NewNop()
	}

	pf, err := New(nodes, edges)
	if err != nil {
		logger.Error("floor plan graph rejected", zap.Error(err))
		return nil
	}

	return pf.FindPathByName(logger, startName, endName)
}

// FindPathByName is the call-and-check form of Route: nil on any failure,
// with the reason logged.
func (pf *Pathfinder) FindPathByName(logger *zap.Logger, startName, endName string) Path {
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := pf.Route(startName, endName)
	if err != nil {
		var endpointErr *EndpointError
		if errors.As(err, &endpointErr) {
			logger.Warn("unknown endpoint name",
				zap.String("endpoint", string(endpointErr.Endpoint)),
				zap.String("name", endpointErr.Name))
		} else {
			logger.Warn("no path found",
				zap.String("start", startName),
				zap.String("destination", endName),
				zap.Error(err))
		}
		return nil
	}

	logger.Debug("path found",
		zap.String("start", startName),
		zap.String("destination", endName),
		zap.Int("edges", len(path)/2),
		zap.Float64("length", path.Length()))
	return path
}
