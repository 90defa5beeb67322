package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrCycle is wrapped by BuildLevels when the graph is not acyclic.
	ErrCycle = errors.New("dag: cycle detected")
	// ErrUnknownNode is wrapped when an edge names a node that was never declared.
	ErrUnknownNode = errors.New("dag: edge references unknown node")
	// ErrDuplicateNode is wrapped when a node is declared twice.
	ErrDuplicateNode = errors.New("dag: duplicate node")
)

// Graph declares nodes and edges (dependency relationships).
type Graph struct {
	// Nodes in declaration order.
	Nodes []string
	Edges []Edge
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// index maps node names to declaration positions and rejects duplicates.
func (g *Graph) index() (map[string]int, error) {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateNode, n)
		}
		idx[n] = i
	}
	return idx, nil
}

// Prerequisites returns, per node, the nodes it depends on.
func (g *Graph) Prerequisites() map[string][]string {
	out := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.To] = append(out[e.To], e.From)
	}
	return out
}

// Dependents returns, per node, the nodes that depend on it.
func (g *Graph) Dependents() map[string][]string {
	out := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Nodes within the same level have no dependency on each other. Within a
// level nodes keep their declaration order.
func BuildLevels(g *Graph) ([][]string, error) {
	idx, err := g.index()
	if err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string)
	for _, e := range g.Edges {
		if _, ok := idx[e.From]; !ok {
			return nil, fmt.Errorf("%w %q (required by %q)", ErrUnknownNode, e.From, e.To)
		}
		if _, ok := idx[e.To]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownNode, e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		slices.SortFunc(next, func(a, b string) int { return idx[a] - idx[b] })
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(FindCycle(g), " -> "))
	}
	return levels, nil
}

// TopoOrder flattens BuildLevels into a single dependency-respecting order.
func TopoOrder(g *Graph) ([]string, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(g.Nodes))
	for _, l := range levels {
		order = append(order, l...)
	}
	return order, nil
}

// FindCycle returns one cycle as a closed path (first node repeated at the
// end), or nil when the graph is acyclic. Edges to unknown nodes are ignored.
func FindCycle(g *Graph) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		color[n] = white
	}
	dependents := g.Dependents()

	var stack []string
	var cycle []string
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range dependents[n] {
			c, known := color[next]
			if !known {
				continue
			}
			if c == grey {
				start := slices.Index(stack, next)
				cycle = append(slices.Clone(stack[start:]), next)
				return true
			}
			if c == white && visit(next) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, n := range g.Nodes {
		if color[n] == white && visit(n) {
			return cycle
		}
	}
	return nil
}
