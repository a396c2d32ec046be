package dag

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
)

var dotShapes = map[NodeKind]string{
	KindSource:   "invhouse",
	KindOperator: "ellipse",
	KindProcess:  "box",
}

// WriteDOT renders g in Graphviz DOT format, one rank per dependency level.
func WriteDOT(w io.Writer, g *Graph, name string) error {
	levels, err := BuildLevels(g)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(name))
	fmt.Fprintln(bw, "  rankdir=TB;")
	for _, level := range levels {
		fmt.Fprint(bw, "  { rank=same;")
		for _, n := range level {
			fmt.Fprintf(bw, " %s;", strconv.Quote(n))
		}
		fmt.Fprintln(bw, " }")
		for _, n := range level {
			node := g.Nodes[n]
			label := node.Name
			if node.Kind == KindOperator && node.Op != "" {
				label = node.Op
			}
			fmt.Fprintf(bw, "  %s [label=%s, shape=%s];\n",
				strconv.Quote(n), strconv.Quote(label), dotShapes[node.Kind])
		}
	}

	edges := append([]Edge(nil), g.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		fmt.Fprintf(bw, "  %s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To))
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
