package sim

import (
	"container/heap"
	"fmt"
	"strings"
)

// A Vertex is a node of the phased precedence graph. Every Scheduleable owns
// one vertex. Vertices of the same phase that are due at the same tick fire in
// the order of their rank.
type Vertex struct {
	id    int
	name  string
	phase SchedulingPhase
	succ  []*Vertex
	rank  int
}

// Name returns the name of the vertex.
func (v *Vertex) Name() string {
	return v.name
}

// Phase returns the phase that the vertex fires in.
func (v *Vertex) Phase() SchedulingPhase {
	return v.phase
}

// Rank returns the firing order of the vertex within its phase. Before
// finalization this is the registration order.
func (v *Vertex) Rank() int {
	return v.rank
}

// Successors returns the vertices that this vertex precedes.
func (v *Vertex) Successors() []*Vertex {
	return v.succ
}

// A Precedable is anything that has a vertex in the precedence graph.
type Precedable interface {
	Vertex() *Vertex
}

// A DAG holds the precedes relations between scheduleables. Edges can only be
// added before Finalize. Finalize computes a topological order that breaks
// ties by registration order.
type DAG struct {
	vertices  []*Vertex
	edgeSet   map[[2]int]struct{}
	finalized bool
	reach     map[[2]int]bool
}

// NewDAG creates an empty precedence graph.
func NewDAG() *DAG {
	return &DAG{
		edgeSet: make(map[[2]int]struct{}),
		reach:   make(map[[2]int]bool),
	}
}

// NewVertex registers a vertex.
func (d *DAG) NewVertex(name string, phase SchedulingPhase) *Vertex {
	if !phase.IsValid() {
		panic(fmt.Sprintf("sim: vertex %s has invalid phase %d", name, phase))
	}

	v := &Vertex{
		id:    len(d.vertices),
		name:  name,
		phase: phase,
		rank:  len(d.vertices),
	}
	d.vertices = append(d.vertices, v)

	return v
}

// NumVertices returns the number of registered vertices.
func (d *DAG) NumVertices() int {
	return len(d.vertices)
}

// IsFinalized tells if the graph has been finalized.
func (d *DAG) IsFinalized() bool {
	return d.finalized
}

// Link records that a must fire before b when both are due in the same tick
// and phase. Duplicated edges are ignored. An edge from an earlier phase to a
// later phase always holds and is not stored.
func (d *DAG) Link(a, b *Vertex) error {
	if d.finalized {
		return &ScheduleError{
			Reason: ErrDAGFinalized,
			Detail: fmt.Sprintf("%s -> %s", a.name, b.name),
		}
	}

	if a.phase > b.phase {
		return &ScheduleError{
			Reason: ErrBackwardPrecedence,
			Detail: fmt.Sprintf("%s (%s) -> %s (%s)",
				a.name, a.phase, b.name, b.phase),
		}
	}

	if a.phase < b.phase {
		return nil
	}

	key := [2]int{a.id, b.id}
	if _, found := d.edgeSet[key]; found {
		return nil
	}

	d.edgeSet[key] = struct{}{}
	a.succ = append(a.succ, b)
	clear(d.reach)

	return nil
}

// Finalize orders the vertices. It fails if the edges form a cycle.
func (d *DAG) Finalize() error {
	if d.finalized {
		return nil
	}

	inDegree := make([]int, len(d.vertices))
	for _, v := range d.vertices {
		for _, s := range v.succ {
			inDegree[s.id]++
		}
	}

	ready := &idHeap{}
	for _, v := range d.vertices {
		if inDegree[v.id] == 0 {
			heap.Push(ready, v.id)
		}
	}

	rank := 0
	for ready.Len() > 0 {
		v := d.vertices[heap.Pop(ready).(int)]
		v.rank = rank
		rank++

		for _, s := range v.succ {
			inDegree[s.id]--
			if inDegree[s.id] == 0 {
				heap.Push(ready, s.id)
			}
		}
	}

	if rank != len(d.vertices) {
		return &ScheduleError{
			Reason: ErrPrecedenceCycle,
			Detail: d.describeCycle(inDegree),
		}
	}

	d.finalized = true

	return nil
}

// describeCycle walks the vertices that were never freed by the topological
// sort until a vertex repeats.
func (d *DAG) describeCycle(inDegree []int) string {
	var start *Vertex
	for _, v := range d.vertices {
		if inDegree[v.id] > 0 {
			start = v
			break
		}
	}

	seen := make(map[int]int)
	path := []*Vertex{}
	v := start

	for v != nil {
		if pos, found := seen[v.id]; found {
			names := make([]string, 0, len(path)-pos+1)
			for _, p := range path[pos:] {
				names = append(names, p.name)
			}
			names = append(names, v.name)

			return strings.Join(names, " -> ")
		}

		seen[v.id] = len(path)
		path = append(path, v)

		var next *Vertex
		for _, s := range v.succ {
			if inDegree[s.id] > 0 {
				next = s
				break
			}
		}
		v = next
	}

	return start.name
}

// Reaches tells if there is a path of precedes edges from a to b.
func (d *DAG) Reaches(a, b *Vertex) bool {
	if a == b {
		return false
	}

	key := [2]int{a.id, b.id}
	if r, found := d.reach[key]; found {
		return r
	}

	visited := map[int]bool{a.id: true}
	stack := []*Vertex{a}
	result := false

	for len(stack) > 0 && !result {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, s := range v.succ {
			if s == b {
				result = true
				break
			}

			if !visited[s.id] {
				visited[s.id] = true
				stack = append(stack, s)
			}
		}
	}

	d.reach[key] = result

	return result
}

type idHeap []int

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *idHeap) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}
