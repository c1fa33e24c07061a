package orchestrator

import blackerr "blackship/errors"

// dependencyGraph is a directed graph of jail names: an edge from dep
// to name means name depends on dep and must start after it.
//
// No graph library appears among the example dependencies, so this is
// a small hand-rolled Kahn's-algorithm toposort rather than a pulled
// dependency that would be unexercised everywhere else in the module.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string // dep -> []dependents
	index map[string]int
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{edges: make(map[string][]string), index: make(map[string]int)}
}

func (g *dependencyGraph) addNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

func (g *dependencyGraph) addEdge(dep, name string) {
	g.edges[dep] = append(g.edges[dep], name)
}

// topoSort returns nodes in dependency order (a dep before anything
// that depends on it). It fails on a cycle, naming one of the jails
// involved.
func (g *dependencyGraph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = 0
	}
	for _, dependents := range g.edges {
		for _, n := range dependents {
			inDegree[n]++
		}
	}

	var queue []string
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, dependent := range g.edges[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				return nil, blackerr.New(blackerr.ErrConfigValidation, "resolve dependency order",
					"cyclic dependency detected involving jail '"+n+"'")
			}
		}
	}

	return order, nil
}

// topoLevels groups nodes into dependency waves: every node in a wave
// has all of its dependencies satisfied by an earlier wave, so the
// nodes within one wave may start concurrently.
func (g *dependencyGraph) topoLevels() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = 0
	}
	for _, dependents := range g.edges {
		for _, n := range dependents {
			inDegree[n]++
		}
	}

	var wave []string
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			wave = append(wave, n)
		}
	}

	var levels [][]string
	visited := 0
	for len(wave) > 0 {
		levels = append(levels, wave)
		visited += len(wave)

		var next []string
		for _, n := range wave {
			for _, dependent := range g.edges[n] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		wave = next
	}

	if visited != len(g.nodes) {
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				return nil, blackerr.New(blackerr.ErrConfigValidation, "resolve dependency order",
					"cyclic dependency detected involving jail '"+n+"'")
			}
		}
	}

	return levels, nil
}
