// Package navigation routes between named locations of stored floor plans.
//
// Service is shared by the CLI and the MCP server. It keeps one Pathfinder
// per plan and rebuilds it whenever the stored plan is re-imported.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/logging"
	"github.com/Benny93/wayfinder-go/internal/metrics"
	"github.com/Benny93/wayfinder-go/internal/pathfind"
	"github.com/Benny93/wayfinder-go/internal/storage"
)

var (
	// ErrNoPlan means no plan was named and none could be inferred.
	ErrNoPlan = errors.New("no floor plan selected")

	// ErrNoStart means no start was given and no default start node is set.
	ErrNoStart = errors.New("no start location given")
)

// suggestionLimit caps "did you mean" candidates per unknown endpoint.
const suggestionLimit = 5

// UnknownEndpointError is a pathfind.EndpointError with name suggestions.
type UnknownEndpointError struct {
	*pathfind.EndpointError
	Suggestions []storage.SearchResult
}

func (e *UnknownEndpointError) Unwrap() error {
	return e.EndpointError
}

// Options configures a Service.
type Options struct {
	// DefaultPlan is used when a request names no plan.
	DefaultPlan string

	// StartNode is the id or name of the node routes start from when the
	// request gives no start.
	StartNode string

	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Result is a found route.
type Result struct {
	Plan   string        `json:"plan"`
	From   string        `json:"from"`
	To     string        `json:"to"`
	Path   pathfind.Path `json:"-"`
	Length float64       `json:"length"`
}

type cachedPlan struct {
	importedAt time.Time
	plan       *floorplan.FloorPlan
	finder     *pathfind.Pathfinder
}

// Service answers route queries against a storage backend.
type Service struct {
	store       storage.Backend
	logger      *zap.Logger
	metrics     *metrics.Collector
	defaultPlan string
	startNode   string

	mu    sync.Mutex
	cache map[string]cachedPlan
}

// NewService creates a Service over store.
func NewService(store storage.Backend, opts Options) *Service {
	return &Service{
		store:       store,
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		defaultPlan: opts.DefaultPlan,
		startNode:   opts.StartNode,
		cache:       make(map[string]cachedPlan),
	}
}

// ResolvePlan returns name, the default plan, or the only stored plan.
func (s *Service) ResolvePlan(ctx context.Context, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if s.defaultPlan != "" {
		return s.defaultPlan, nil
	}

	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return "", err
	}
	switch len(plans) {
	case 0:
		return "", fmt.Errorf("%w: nothing imported yet", ErrNoPlan)
	case 1:
		return plans[0].Name, nil
	default:
		return "", fmt.Errorf("%w: %d plans stored, name one", ErrNoPlan, len(plans))
	}
}

// Plan returns the stored plan and a Pathfinder over it.
func (s *Service) Plan(ctx context.Context, name string) (*floorplan.FloorPlan, *pathfind.Pathfinder, error) {
	name, err := s.ResolvePlan(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	summary, err := s.store.GetSummary(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if summary == nil {
		s.Invalidate(name)
		return nil, nil, fmt.Errorf("%w: %s", storage.ErrPlanNotFound, name)
	}

	s.mu.Lock()
	cached, ok := s.cache[name]
	s.mu.Unlock()
	if ok && cached.importedAt.Equal(summary.ImportedAt) {
		return cached.plan, cached.finder, nil
	}

	plan, err := s.store.LoadPlan(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, fmt.Errorf("%w: %s", storage.ErrPlanNotFound, name)
	}

	finder, err := pathfind.NewFromPlan(plan)
	if err != nil {
		return nil, nil, fmt.Errorf("plan %s: %w", name, err)
	}
	if dups := floorplan.DuplicateNames(plan.Nodes); len(dups) > 0 {
		s.logger.Warn("duplicate node names, first declared node wins",
			zap.String("plan", name),
			zap.Strings("names", dups))
	}

	s.mu.Lock()
	s.cache[name] = cachedPlan{importedAt: summary.ImportedAt, plan: plan, finder: finder}
	s.mu.Unlock()

	s.logger.Debug("pathfinder built",
		zap.String("plan", name),
		zap.Int("nodes", len(plan.Nodes)),
		zap.Int("edges", len(plan.Edges)))
	return plan, finder, nil
}

// Invalidate drops the cached Pathfinder of a plan.
func (s *Service) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, name)
}

// Route finds the shortest path from the node named from to the node named
// to. An empty from starts at the default start node.
//
// Errors match pathfind.ErrUnknownEndpoint (as *UnknownEndpointError),
// pathfind.ErrUnreachable, floorplan.ErrMalformedGraph, storage.ErrPlanNotFound,
// ErrNoPlan or ErrNoStart.
func (s *Service) Route(ctx context.Context, planName, from, to string) (*Result, error) {
	started := time.Now()

	planName, err := s.ResolvePlan(ctx, planName)
	if err != nil {
		return nil, err
	}

	_, finder, err := s.Plan(ctx, planName)
	if err != nil {
		s.observe(planName, err, started, 0)
		return nil, err
	}

	var path pathfind.Path
	if from == "" {
		var start floorplan.NodeID
		from, start, err = s.defaultStart(finder.Index())
		if err != nil {
			s.observe(planName, err, started, 0)
			return nil, err
		}
		if start != "" {
			path, err = finder.RouteFrom(start, to)
		} else {
			path, err = finder.Route(from, to)
		}
	} else {
		path, err = finder.Route(from, to)
	}
	if err != nil {
		s.observe(planName, err, started, 0)

		var endpointErr *pathfind.EndpointError
		if errors.As(err, &endpointErr) {
			s.logger.Warn("unknown endpoint name",
				zap.String("plan", planName),
				zap.String("endpoint", string(endpointErr.Endpoint)),
				zap.String("name", endpointErr.Name))
			suggestions, searchErr := s.store.SearchNodes(ctx, planName, endpointErr.Name, suggestionLimit)
			if searchErr != nil {
				s.logger.Debug("suggestion search failed", zap.Error(searchErr))
			}
			return nil, &UnknownEndpointError{EndpointError: endpointErr, Suggestions: suggestions}
		}

		s.logger.Warn("no path found",
			zap.String("plan", planName),
			zap.String("start", from),
			zap.String("destination", to))
		return nil, err
	}

	length := path.Length()
	s.observe(planName, nil, started, length)
	s.logger.Debug("path found",
		zap.String("plan", planName),
		zap.String("start", from),
		zap.String("destination", to),
		zap.Int("edges", len(path)/2),
		zap.Float64("length", length))

	return &Result{Plan: planName, From: from, To: to, Path: path, Length: length}, nil
}

// defaultStart resolves the configured start node, given as id or name.
// A match by id returns the node's id so routing starts at that exact node
// even when an earlier node shares its name.
func (s *Service) defaultStart(idx *floorplan.Index) (string, floorplan.NodeID, error) {
	if s.startNode == "" {
		return "", "", ErrNoStart
	}
	if node := idx.ByID(floorplan.NodeID(s.startNode)); node != nil {
		return node.Name, node.ID, nil
	}
	return s.startNode, "", nil
}

func (s *Service) observe(plan string, err error, started time.Time, length float64) {
	outcome := metrics.OutcomeFound
	switch {
	case err == nil:
	case errors.Is(err, pathfind.ErrUnknownEndpoint):
		outcome = metrics.OutcomeUnknownEndpoint
	case errors.Is(err, pathfind.ErrUnreachable):
		outcome = metrics.OutcomeUnreachable
	case errors.Is(err, floorplan.ErrMalformedGraph):
		outcome = metrics.OutcomeMalformed
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveRoute(plan, outcome, time.Since(started), length)
}
