package dag

import (
	"fmt"
	"sort"
)

// NodeKind classifies operator graph nodes.
type NodeKind string

const (
	KindSource   NodeKind = "source"
	KindOperator NodeKind = "operator"
	KindProcess  NodeKind = "process"
)

// Node is one operator of a dataflow.
type Node struct {
	Name string
	Kind NodeKind
	// Op names the operator type, e.g. "join" or "collect".
	Op string
}

// Graph declares nodes and edges (dependency relationships).
type Graph struct {
	Nodes map[string]Node
	Edges []Edge
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]Node)}
}

// AddNode registers a node. Names must be unique.
func (g *Graph) AddNode(n Node) error {
	if n.Name == "" {
		return fmt.Errorf("dag: node name is required")
	}
	if _, ok := g.Nodes[n.Name]; ok {
		return fmt.Errorf("dag: duplicate node %q", n.Name)
	}
	g.Nodes[n.Name] = n
	return nil
}

// AddEdge records that to consumes the output of from.
func (g *Graph) AddEdge(from, to string) {
	g.Edges = append(g.Edges, Edge{From: from, To: to})
}

// Upstream returns the sorted names of the nodes feeding name.
func (g *Graph) Upstream(name string) []string {
	var ups []string
	for _, e := range g.Edges {
		if e.To == name {
			ups = append(ups, e.From)
		}
	}
	sort.Strings(ups)
	return ups
}

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Nodes within the same level have no path between them. Names inside a
// level are sorted. Returns an error if a cycle is detected.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string) // from -> [to...]

	for name := range g.Nodes {
		inDegree[name] = 0
	}

	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		sort.Strings(queue)
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
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d nodes", visited, len(g.Nodes))
	}

	return levels, nil
}
