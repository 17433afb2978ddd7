// Package network is the static adjacency graph of the stop network.
package network

import (
	"strings"

	"villagelink/internal/domain"
)

// Graph is an immutable, unweighted adjacency graph keyed by lower-case
// node keys. Display names map back to keys case-insensitively.
type Graph struct {
	nodes  map[string]domain.NetworkNode
	byName map[string]string
}

// NewGraph builds a graph from nodes. Keys are normalized to lower case.
func NewGraph(nodes []domain.NetworkNode) *Graph {
	g := &Graph{
		nodes:  make(map[string]domain.NetworkNode, len(nodes)),
		byName: make(map[string]string, len(nodes)),
	}
	for _, n := range nodes {
		key := strings.ToLower(n.Key)
		conns := make([]string, 0, len(n.Connections))
		for _, c := range n.Connections {
			conns = append(conns, strings.ToLower(c))
		}
		n.Key = key
		n.Connections = conns
		g.nodes[key] = n
		g.byName[strings.ToLower(n.Name)] = key
	}
	return g
}

// resolveKey maps a key or display name onto a node key.
func (g *Graph) resolveKey(input string) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(input))
	if _, ok := g.nodes[k]; ok {
		return k, true
	}
	if key, ok := g.byName[k]; ok {
		return key, true
	}
	return "", false
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// ShortestPath runs a breadth-first search between two stops given by key or
// display name and returns display names. ok is false when either endpoint is
// unknown or no path exists. Neighbours are visited in declared order, so the
// result is deterministic.
func (g *Graph) ShortestPath(from, to string) (path []string, ok bool) {
	start, ok := g.resolveKey(from)
	if !ok {
		return nil, false
	}
	end, ok := g.resolveKey(to)
	if !ok {
		return nil, false
	}
	if start == end {
		return []string{g.nodes[start].Name}, true
	}

	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == end {
			break
		}
		for _, next := range g.nodes[cur].Connections {
			if _, seen := parent[next]; seen {
				continue
			}
			if _, exists := g.nodes[next]; !exists {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}

	if _, reached := parent[end]; !reached {
		return nil, false
	}

	var keys []string
	for k := end; k != ""; k = parent[k] {
		keys = append(keys, k)
	}
	path = make([]string, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		path = append(path, g.nodes[keys[i]].Name)
	}
	return path, true
}
