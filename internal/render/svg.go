// Package render draws floor plans and routes as SVG.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/beevik/etree"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/pathfind"
)

// Projection planes.
const (
	PlaneXY = "xy"
	PlaneXZ = "xz"
)

const (
	defaultWidth = 800.0
	margin       = 20.0
)

// Options controls how a plan is drawn.
type Options struct {
	// Plane is PlaneXY (default) or PlaneXZ.
	Plane string

	// Width of the drawing in pixels. Height follows the plan's aspect ratio.
	Width float64

	// Labels draws node names next to nodes.
	Labels bool

	// Route is highlighted on top of the plan when non-empty.
	Route pathfind.Path
}

type point struct{ x, y float64 }

// projection maps plan coordinates into the SVG canvas.
type projection struct {
	axis          [2]int
	minU, maxV    float64
	scale         float64
	width, height float64
}

func newProjection(plan *floorplan.FloorPlan, opts Options) (*projection, error) {
	p := &projection{axis: [2]int{0, 1}}
	switch opts.Plane {
	case "", PlaneXY:
	case PlaneXZ:
		p.axis = [2]int{0, 2}
	default:
		return nil, fmt.Errorf("unknown projection plane %q (want %s or %s)", opts.Plane, PlaneXY, PlaneXZ)
	}

	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	minU, maxU := math.Inf(1), math.Inf(-1)
	minV, maxV := math.Inf(1), math.Inf(-1)
	positions := make([]floorplan.Vec3, 0, len(plan.Nodes)+len(plan.Markers))
	for _, node := range plan.Nodes {
		positions = append(positions, node.Position)
	}
	for _, marker := range plan.Markers {
		positions = append(positions, marker.Position)
	}
	for _, pos := range positions {
		u, v := pos[p.axis[0]], pos[p.axis[1]]
		minU, maxU = math.Min(minU, u), math.Max(maxU, u)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
	}
	if len(positions) == 0 {
		minU, maxU, minV, maxV = 0, 1, 0, 1
	}

	rangeU := math.Max(maxU-minU, 1e-9)
	rangeV := math.Max(maxV-minV, 1e-9)
	p.minU = minU
	p.maxV = maxV
	p.scale = (width - 2*margin) / rangeU
	p.width = width
	// A degenerate axis still gets a usable canvas.
	p.height = math.Max(rangeV*p.scale, 2*margin) + 2*margin
	if maxV-minV < 1e-9 {
		p.maxV = minV + (p.height-2*margin)/(2*p.scale)
	}
	return p, nil
}

// project flips the vertical axis so larger coordinates are drawn higher.
func (p *projection) project(pos floorplan.Vec3) point {
	return point{
		x: margin + (pos[p.axis[0]]-p.minU)*p.scale,
		y: margin + (p.maxV-pos[p.axis[1]])*p.scale,
	}
}

// SVG builds the drawing of plan as an etree document.
func SVG(plan *floorplan.FloorPlan, opts Options) (*etree.Document, error) {
	proj, err := newProjection(plan, opts)
	if err != nil {
		return nil, err
	}
	index := floorplan.NewIndex(plan.Nodes)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("width", num(proj.width))
	svg.CreateAttr("height", num(proj.height))
	svg.CreateAttr("data-plan", plan.Name)
	if plan.Level != "" {
		svg.CreateAttr("data-level", plan.Level)
	}

	title := svg.CreateElement("title")
	title.SetText(plan.Name)

	edges := svg.CreateElement("g")
	edges.CreateAttr("id", "edges")
	edges.CreateAttr("stroke", "#999999")
	edges.CreateAttr("stroke-width", "2")
	for _, edge := range plan.Edges {
		start, end := index.ByID(edge.Start), index.ByID(edge.End)
		if start == nil || end == nil {
			continue
		}
		line := addLine(edges, proj.project(start.Position), proj.project(end.Position))
		line.CreateAttr("data-start", string(edge.Start))
		line.CreateAttr("data-end", string(edge.End))
		line.CreateAttr("data-length", num(edge.Length))
		if edge.Directionality == floorplan.Unidirectional {
			line.CreateAttr("stroke-dasharray", "6 3")
		}
	}

	if len(opts.Route) > 0 {
		route := svg.CreateElement("g")
		route.CreateAttr("id", "route")
		route.CreateAttr("stroke", "#d62728")
		route.CreateAttr("stroke-width", "4")
		route.CreateAttr("data-length", num(opts.Route.Length()))
		routeNodes := opts.Route.Nodes()
		for i := 1; i < len(routeNodes); i++ {
			addLine(route, proj.project(routeNodes[i-1].Position), proj.project(routeNodes[i].Position))
		}
		for _, node := range routeNodes {
			circle := addCircle(route, proj.project(node.Position), 6)
			circle.CreateAttr("fill", "#d62728")
			circle.CreateAttr("data-id", string(node.ID))
		}
	}

	nodes := svg.CreateElement("g")
	nodes.CreateAttr("id", "nodes")
	nodes.CreateAttr("fill", "#1f77b4")
	for _, node := range plan.Nodes {
		at := proj.project(node.Position)
		circle := addCircle(nodes, at, 4)
		circle.CreateAttr("data-id", string(node.ID))
		circle.CreateElement("title").SetText(node.Name)

		if opts.Labels {
			text := nodes.CreateElement("text")
			text.CreateAttr("x", num(at.x+6))
			text.CreateAttr("y", num(at.y-6))
			text.CreateAttr("font-size", "10")
			text.SetText(node.Name)
		}
	}

	if len(plan.Markers) > 0 {
		markers := svg.CreateElement("g")
		markers.CreateAttr("id", "markers")
		markers.CreateAttr("fill", "#2ca02c")
		for _, marker := range plan.Markers {
			at := proj.project(marker.Position)
			rect := markers.CreateElement("rect")
			rect.CreateAttr("x", num(at.x-4))
			rect.CreateAttr("y", num(at.y-4))
			rect.CreateAttr("width", "8")
			rect.CreateAttr("height", "8")
			rect.CreateAttr("data-id", marker.ID)
		}
	}

	doc.Indent(2)
	return doc, nil
}

// Write renders plan as SVG to w.
func Write(w io.Writer, plan *floorplan.FloorPlan, opts Options) error {
	doc, err := SVG(plan, opts)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("writing svg: %w", err)
	}
	return nil
}

func addLine(parent *etree.Element, from, to point) *etree.Element {
	line := parent.CreateElement("line")
	line.CreateAttr("x1", num(from.x))
	line.CreateAttr("y1", num(from.y))
	line.CreateAttr("x2", num(to.x))
	line.CreateAttr("y2", num(to.y))
	return line
}

func addCircle(parent *etree.Element, at point, r float64) *etree.Element {
	circle := parent.CreateElement("circle")
	circle.CreateAttr("cx", num(at.x))
	circle.CreateAttr("cy", num(at.y))
	circle.CreateAttr("r", num(r))
	return circle
}

// num formats f with at most two decimals.
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
