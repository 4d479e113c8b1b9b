// Package cmd provides CLI command implementations for Wayfinder.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/config"
	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/logging"
	"github.com/Benny93/wayfinder-go/internal/metrics"
	"github.com/Benny93/wayfinder-go/internal/navigation"
	"github.com/Benny93/wayfinder-go/internal/pathfind"
	"github.com/Benny93/wayfinder-go/internal/render"
	"github.com/Benny93/wayfinder-go/internal/storage"
	"github.com/Benny93/wayfinder-go/internal/watcher"
	"github.com/Benny93/wayfinder-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

// App carries what every command needs. It is bound into kong's Run.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Out    io.Writer
}

// ImportCmd loads floor-plan files into the plan database.
type ImportCmd struct {
	Paths []string `arg:"" type:"path" help:"Floor-plan files or directories"`
}

// Run executes the import command.
func (c *ImportCmd) Run(app *App) error {
	ctx := context.Background()
	store, err := openStorage(app.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := watcher.Options{Logger: app.Logger}
	imported, failed := 0, 0
	for _, path := range c.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("accessing %s: %w", path, err)
		}

		if !info.IsDir() {
			summary, err := watcher.ImportFile(ctx, path, store, opts)
			if err != nil {
				red.Fprintf(app.Out, "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			printImported(app.Out, *summary)
			imported++
			continue
		}

		report, err := watcher.ImportDir(ctx, path, store, opts)
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		for _, summary := range report.Imported {
			printImported(app.Out, summary)
		}
		for source, err := range report.Failed {
			red.Fprintf(app.Out, "✗ %s: %v\n", source, err)
		}
		imported += len(report.Imported)
		failed += len(report.Failed)
	}

	if imported == 0 && failed == 0 {
		fmt.Fprintln(app.Out, "No floor-plan files found")
		return nil
	}
	green.Fprintf(app.Out, "\n✓ Imported %d floor plans into %s\n", imported, app.Config.DBPath())
	if failed > 0 {
		return fmt.Errorf("%d floor plans failed to import", failed)
	}
	return nil
}

// ValidateCmd checks floor-plan files without storing them.
type ValidateCmd struct {
	Paths []string `arg:"" type:"existingfile" help:"Floor-plan files to check"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(app *App) error {
	invalid := 0
	for _, path := range c.Paths {
		plan, err := floorplan.LoadFile(path)
		if err == nil {
			_, err = pathfind.NewFromPlan(plan)
		}
		if err != nil {
			red.Fprintf(app.Out, "✗ %v\n", err)
			invalid++
			continue
		}

		stats := plan.Stats()
		green.Fprintf(app.Out, "✓ %s", path)
		fmt.Fprintf(app.Out, " (%s: %d nodes, %d edges, %d markers)\n",
			plan.Name, stats["nodes"], stats["edges"], stats["markers"])
		if dups := floorplan.DuplicateNames(plan.Nodes); len(dups) > 0 {
			yellow.Fprintf(app.Out, "  duplicate names, first declared node wins: %s\n", strings.Join(dups, ", "))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d floor plans are invalid", invalid, len(c.Paths))
	}
	return nil
}

// RouteCmd finds the shortest walking route to a destination.
type RouteCmd struct {
	Destination string `arg:"" help:"Destination location name"`
	From        string `short:"f" help:"Start location name (defaults to WAYFINDER_START_NODE)"`
	Plan        string `short:"p" help:"Floor plan name"`
	File        string `type:"existingfile" help:"Route on a floor-plan file instead of the database"`
	JSON        bool   `help:"Print the route as JSON"`
}

// routeJSON is the route document printed with --json. Path alternates
// node and edge objects.
type routeJSON struct {
	*navigation.Result
	Path []any `json:"path"`
}

// Run executes the route command.
func (c *RouteCmd) Run(app *App) error {
	res, err := c.route(app)
	if err != nil {
		var unknown *navigation.UnknownEndpointError
		if errors.As(err, &unknown) && len(unknown.Suggestions) > 0 {
			fmt.Fprintf(app.Out, "Unknown %s '%s'. Did you mean:\n", unknown.Endpoint, unknown.Name)
			for _, s := range unknown.Suggestions {
				fmt.Fprintf(app.Out, "  - %s (id %s)\n", s.NodeName, s.NodeID)
			}
		}
		return err
	}

	if c.JSON {
		data, err := json.MarshalIndent(routeJSON{Result: res, Path: res.Path.Items()}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding route: %w", err)
		}
		fmt.Fprintln(app.Out, string(data))
		return nil
	}

	printRoute(app.Out, res)
	return nil
}

func (c *RouteCmd) route(app *App) (*navigation.Result, error) {
	if c.File == "" {
		store, err := openStorage(app.Config, true)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()

		svc := navigation.NewService(store, navigation.Options{
			DefaultPlan: app.Config.DefaultPlan,
			StartNode:   app.Config.StartNode,
			Logger:      app.Logger,
		})
		return svc.Route(context.Background(), c.Plan, c.From, c.Destination)
	}

	// A single file needs no database; route it with a throwaway store.
	plan, err := floorplan.LoadFile(c.File)
	if err != nil {
		return nil, err
	}
	store := storage.NewMemoryBackend()
	_ = store.Initialize("", false)
	if _, err := store.SavePlan(context.Background(), plan, c.File); err != nil {
		return nil, err
	}
	svc := navigation.NewService(store, navigation.Options{
		StartNode: app.Config.StartNode,
		Logger:    app.Logger,
	})
	return svc.Route(context.Background(), plan.Name, c.From, c.Destination)
}

// NodesCmd lists the locations of a floor plan.
type NodesCmd struct {
	Plan string `short:"p" help:"Floor plan name"`
}

// Run executes the nodes command.
func (c *NodesCmd) Run(app *App) error {
	store, err := openStorage(app.Config, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := navigation.NewService(store, navigation.Options{DefaultPlan: app.Config.DefaultPlan, Logger: app.Logger})
	plan, _, err := svc.Plan(context.Background(), c.Plan)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "%s: %d locations\n", plan.Name, len(plan.Nodes))
	for _, node := range plan.Nodes {
		fmt.Fprintf(app.Out, "  %-8s %-30s [%.2f, %.2f, %.2f]\n",
			node.ID, node.Name, node.Position[0], node.Position[1], node.Position[2])
	}
	return nil
}

// PlansCmd lists imported floor plans.
type PlansCmd struct{}

// Run executes the plans command.
func (c *PlansCmd) Run(app *App) error {
	store, err := openStorage(app.Config, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	plans, err := store.ListPlans(context.Background())
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(app.Out, "No floor plans imported")
		return nil
	}

	fmt.Fprintln(app.Out, "Imported floor plans:")
	for _, p := range plans {
		fmt.Fprintf(app.Out, "\n  %s\n", p.Name)
		if p.Level != "" {
			fmt.Fprintf(app.Out, "    Level:    %s\n", p.Level)
		}
		fmt.Fprintf(app.Out, "    Nodes:    %d\n", p.Nodes)
		fmt.Fprintf(app.Out, "    Edges:    %d\n", p.Edges)
		fmt.Fprintf(app.Out, "    Markers:  %d\n", p.Markers)
		fmt.Fprintf(app.Out, "    Source:   %s\n", p.Source)
		fmt.Fprintf(app.Out, "    Imported: %s\n", p.ImportedAt.Format(time.RFC3339))
	}
	return nil
}

// SearchCmd finds locations by name.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Plan  string `short:"p" help:"Floor plan name"`
	Limit int    `short:"n" default:"10" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(app *App) error {
	ctx := context.Background()
	store, err := openStorage(app.Config, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := navigation.NewService(store, navigation.Options{DefaultPlan: app.Config.DefaultPlan, Logger: app.Logger})
	planName, err := svc.ResolvePlan(ctx, c.Plan)
	if err != nil {
		return err
	}

	results, err := store.SearchNodes(ctx, planName, c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(app.Out, "No results found")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(app.Out, "%d. %s (id %s)\n", i+1, r.NodeName, r.NodeID)
		fmt.Fprintf(app.Out, "   Score: %.3f\n", r.Score)
	}
	return nil
}

// RenderCmd draws a floor plan as SVG.
type RenderCmd struct {
	Plan   string  `short:"p" help:"Floor plan name"`
	Out    string  `short:"o" type:"path" help:"Output file (default stdout)"`
	Plane  string  `default:"xy" enum:"xy,xz" help:"Projection plane (xy, xz)"`
	Width  float64 `default:"800" help:"Drawing width in pixels"`
	Labels bool    `help:"Draw node names"`
	From   string  `short:"f" help:"Highlight the route starting here"`
	To     string  `short:"t" help:"Highlight the route ending here"`
}

// Run executes the render command.
func (c *RenderCmd) Run(app *App) error {
	ctx := context.Background()
	store, err := openStorage(app.Config, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := navigation.NewService(store, navigation.Options{
		DefaultPlan: app.Config.DefaultPlan,
		StartNode:   app.Config.StartNode,
		Logger:      app.Logger,
	})
	plan, _, err := svc.Plan(ctx, c.Plan)
	if err != nil {
		return err
	}

	opts := render.Options{Plane: c.Plane, Width: c.Width, Labels: c.Labels}
	if c.To != "" {
		res, err := svc.Route(ctx, plan.Name, c.From, c.To)
		if err != nil {
			return err
		}
		opts.Route = res.Path
	}

	if c.Out == "" {
		return render.Write(app.Out, plan, opts)
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.Out, err)
	}
	if err := render.Write(f, plan, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.Out, err)
	}
	green.Fprintf(app.Out, "✓ Wrote %s\n", c.Out)
	return nil
}

// WatchCmd keeps the database in sync with a directory of floor plans.
type WatchCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"existingdir" help:"Directory to watch"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(app.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := watcher.Options{Logger: app.Logger, Debounce: app.Config.WatchDebounce}
	report, err := watcher.ImportDir(ctx, c.Dir, store, opts)
	if err != nil {
		return err
	}
	green.Fprintf(app.Out, "✓ Imported %d floor plans, %d failed\n", len(report.Imported), len(report.Failed))
	fmt.Fprintf(app.Out, "Watching %s for changes (Ctrl+C to stop)...\n", c.Dir)

	if err := watcher.WatchDir(ctx, c.Dir, store, opts); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(app.Out, "\nStopped watching")
	return nil
}

// ServeCmd starts the MCP server with stdio transport.
type ServeCmd struct {
	Watch       string `short:"w" type:"existingdir" help:"Import and watch this directory while serving"`
	MetricsAddr string `help:"Expose Prometheus metrics on this address (e.g. :9090)"`
}

// Run executes the serve command. Stdout carries JSON-RPC only.
func (c *ServeCmd) Run(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStorage(app.Config, c.Watch == "")
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	collector := metrics.NewCollector()
	svc := navigation.NewService(store, navigation.Options{
		DefaultPlan: app.Config.DefaultPlan,
		StartNode:   app.Config.StartNode,
		Logger:      app.Logger,
		Metrics:     collector,
	})

	if c.Watch != "" {
		opts := watcher.Options{
			Logger:   app.Logger,
			Metrics:  collector,
			Debounce: app.Config.WatchDebounce,
			OnChange: svc.Invalidate,
		}
		if _, err := watcher.ImportDir(ctx, c.Watch, store, opts); err != nil {
			return err
		}
		go func() {
			err := watcher.WatchDir(ctx, c.Watch, store, opts)
			if err != nil && !errors.Is(err, context.Canceled) {
				app.Logger.Error("watch stopped", zap.Error(err))
			}
		}()
		app.Logger.Info("file watching enabled", zap.String("dir", c.Watch))
	}

	addr := c.MetricsAddr
	if addr == "" {
		addr = app.Config.MetricsAddr
	}
	if addr != "" {
		stop := serveMetrics(addr, collector, app.Logger)
		defer stop()
	}

	mcp.Version = Version
	server := mcp.NewServer(svc, store, app.Logger)
	app.Logger.Info("mcp server started", zap.String("db", app.Config.DBPath()))
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows the database location and contents.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(app *App) error {
	dbPath := app.Config.DBPath()
	fmt.Fprintf(app.Out, "Wayfinder status\n")
	fmt.Fprintf(app.Out, "  Version:       %s\n", Version)
	fmt.Fprintf(app.Out, "  Database:      %s\n", dbPath)
	if app.Config.DefaultPlan != "" {
		fmt.Fprintf(app.Out, "  Default plan:  %s\n", app.Config.DefaultPlan)
	}
	if app.Config.StartNode != "" {
		fmt.Fprintf(app.Out, "  Start node:    %s\n", app.Config.StartNode)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(app.Out, "  Plans:         0 (nothing imported yet)")
		return nil
	}

	store, err := openStorage(app.Config, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	plans, err := store.ListPlans(context.Background())
	if err != nil {
		return err
	}
	nodes, edges := 0, 0
	for _, p := range plans {
		nodes += p.Nodes
		edges += p.Edges
	}
	fmt.Fprintf(app.Out, "  Plans:         %d\n", len(plans))
	fmt.Fprintf(app.Out, "  Nodes:         %d\n", nodes)
	fmt.Fprintf(app.Out, "  Edges:         %d\n", edges)
	return nil
}

// CleanCmd deletes the plan database.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(app *App) error {
	home := app.Config.Home
	if _, err := os.Stat(home); os.IsNotExist(err) {
		return fmt.Errorf("no data found at %s. Nothing to clean", home)
	}

	if !c.Force {
		fmt.Fprintf(app.Out, "Delete %s? [y/N] ", home)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(app.Out, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(home); err != nil {
		return fmt.Errorf("deleting %s: %w", home, err)
	}

	green.Fprintf(app.Out, "Deleted %s\n", home)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := osSignalChannel()
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func openStorage(cfg config.Config, readOnly bool) (*storage.BadgerBackend, error) {
	dbPath := cfg.DBPath()
	if readOnly {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no plan database at %s. Run 'wayfinder import' first", dbPath)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// serveMetrics exposes the collector on addr and returns a function that
// shuts the listener down.
func serveMetrics(addr string, collector *metrics.Collector, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printImported(w io.Writer, s storage.PlanSummary) {
	green.Fprintf(w, "✓ %s", s.Name)
	fmt.Fprintf(w, " (%d nodes, %d edges, %d markers) from %s\n", s.Nodes, s.Edges, s.Markers, s.Source)
}

func printRoute(w io.Writer, res *navigation.Result) {
	stops := res.Path.Nodes()
	green.Fprintf(w, "%s -> %s", res.From, res.To)
	fmt.Fprintf(w, " (%s): %.2f m, %d stops\n\n", res.Plan, res.Length, len(stops))

	step := 0
	for _, seg := range res.Path {
		switch s := seg.(type) {
		case pathfind.NodeStep:
			step++
			fmt.Fprintf(w, "%3d. %s (id %s)\n", step, s.Node.Name, s.Node.ID)
		case pathfind.EdgeStep:
			arrow := "|"
			if s.Edge.Directionality == floorplan.Unidirectional {
				arrow = "v"
			}
			fmt.Fprintf(w, "      %s %.2f m\n", arrow, s.Edge.Length)
		}
	}
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Import   ImportCmd   `cmd:"" help:"Import floor-plan files into the plan database"`
	Validate ValidateCmd `cmd:"" help:"Check floor-plan files without importing them"`
	Route    RouteCmd    `cmd:"" help:"Find the shortest route to a destination"`
	Nodes    NodesCmd    `cmd:"" help:"List the locations of a floor plan"`
	Plans    PlansCmd    `cmd:"" help:"List imported floor plans"`
	Search   SearchCmd   `cmd:"" help:"Find locations by name"`
	Render   RenderCmd   `cmd:"" help:"Draw a floor plan as SVG"`
	Watch    WatchCmd    `cmd:"" help:"Watch mode with live re-import"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
	Status   StatusCmd   `cmd:"" help:"Show database status"`
	Clean    CleanCmd    `cmd:"" help:"Delete the plan database"`

	out io.Writer `kong:"-"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{out: os.Stdout}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("wayfinder"),
		kong.Description("Shortest-path wayfinding over indoor floor plans"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	app, err := c.newApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Logger.Sync() }()

	return kongCtx.Run(app)
}

func (c *CLI) newApp() (*App, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	switch {
	case c.Verbose:
		cfg.Logging.Level = "debug"
	case c.Quiet:
		cfg.Logging.Level = "error"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	return &App{Config: cfg, Logger: logger, Out: out}, nil
}
