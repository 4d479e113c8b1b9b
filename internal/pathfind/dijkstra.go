package pathfind

import (
	"container/heap"
	"math"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

// predecessor records how a node was last improved.
type predecessor struct {
	via  floorplan.NodeID
	edge floorplan.Edge
}

// frontierItem is a (node, tentative distance) pair. seq is the insertion
// counter used to order equal distances.
type frontierItem struct {
	id   floorplan.NodeID
	dist float64
	seq  uint64
}

// frontier is a min-heap ordered by distance, then insertion order.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// search holds the state of one single-source run.
type search struct {
	dist  map[floorplan.NodeID]float64
	prev  map[floorplan.NodeID]predecessor
	order []floorplan.NodeID // settle order
}

// distance returns +Inf for nodes that were never reached.
func (s *search) distance(id floorplan.NodeID) float64 {
	if d, ok := s.dist[id]; ok {
		return d
	}
	return math.Inf(1)
}

// dijkstra settles every node reachable from start. It does not stop at a
// particular destination; the full predecessor map is kept.
func dijkstra(adj Adjacency, start floorplan.NodeID) *search {
	s := &search{
		dist: map[floorplan.NodeID]float64{start: 0},
		prev: make(map[floorplan.NodeID]predecessor),
	}
	visited := make(map[floorplan.NodeID]bool)

	var seq uint64
	pq := &frontier{{id: start, dist: 0, seq: seq}}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(frontierItem)
		current := item.id
		if visited[current] {
			continue
		}
		visited[current] = true
		s.order = append(s.order, current)

		for _, arc := range adj[current] {
			candidate := s.dist[current] + arc.Weight
			if candidate < s.distance(arc.Target) {
				s.dist[arc.Target] = candidate
				s.prev[arc.Target] = predecessor{via: current, edge: arc.Edge}
				seq++
				heap.Push(pq, frontierItem{id: arc.Target, dist: candidate, seq: seq})
			}
		}
	}

	return s
}

// reconstruct walks predecessors back from end. It returns false when end
// was never reached.
func (s *search) reconstruct(idx *floorplan.Index, start, end floorplan.NodeID) (Path, bool) {
	if _, ok := s.prev[end]; !ok && end != start {
		return nil, false
	}

	var reversed Path
	cur := end
	for {
		reversed = append(reversed, NodeStep{Node: *idx.ByID(cur)})
		p, ok := s.prev[cur]
		if !ok {
			break
		}
		reversed = append(reversed, EdgeStep{Edge: p.edge})
		cur = p.via
	}

	path := make(Path, len(reversed))
	for i, seg := range reversed {
		path[len(reversed)-1-i] = seg
	}
	return path, true
}
