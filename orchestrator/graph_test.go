package orchestrator

import "testing"

func buildGraph(edges map[string][]string, nodes ...string) *dependencyGraph {
	g := newDependencyGraph()
	for _, n := range nodes {
		g.addNode(n)
	}
	for dep, dependents := range edges {
		for _, n := range dependents {
			g.addEdge(dep, n)
		}
	}
	return g
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	// web depends on db, db depends on nothing, cache depends on nothing.
	g := buildGraph(map[string][]string{
		"db": {"web"},
	}, "db", "web", "cache")

	order, err := g.topoSort()
	if err != nil {
		t.Fatalf("topoSort() error = %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("topoSort() returned %d nodes, want 3", len(order))
	}

	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	if pos["db"] >= pos["web"] {
		t.Errorf("db (%d) must come before web (%d)", pos["db"], pos["web"])
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	g := buildGraph(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, "a", "b")

	if _, err := g.topoSort(); err == nil {
		t.Fatal("topoSort() error = nil, want cycle error")
	}
}

func TestTopoSortIndependentNodes(t *testing.T) {
	g := buildGraph(nil, "a", "b", "c")

	order, err := g.topoSort()
	if err != nil {
		t.Fatalf("topoSort() error = %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("topoSort() returned %d nodes, want 3", len(order))
	}
}

func TestTopoLevelsGroupsIndependentNodesTogether(t *testing.T) {
	// web and cache both depend only on db, so they belong in the same wave.
	g := buildGraph(map[string][]string{
		"db": {"web", "cache"},
	}, "db", "web", "cache")

	levels, err := g.topoLevels()
	if err != nil {
		t.Fatalf("topoLevels() error = %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("topoLevels() returned %d waves, want 2", len(levels))
	}
	if len(levels[0]) != 1 || levels[0][0] != "db" {
		t.Errorf("topoLevels()[0] = %v, want [db]", levels[0])
	}
	if len(levels[1]) != 2 {
		t.Errorf("topoLevels()[1] = %v, want web and cache together", levels[1])
	}
}

func TestTopoLevelsDetectsCycle(t *testing.T) {
	g := buildGraph(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, "a", "b")

	if _, err := g.topoLevels(); err == nil {
		t.Fatal("topoLevels() error = nil, want cycle error")
	}
}
