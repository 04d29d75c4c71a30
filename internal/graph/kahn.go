package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/metaport/internal/schema"
)

// CycleInfo describes why topological ordering could not complete.
type CycleInfo struct {
	TotalKinds       int           // Number of kinds in the graph
	ProcessedKinds   int           // Kinds successfully ordered before the algorithm stalled
	UnprocessedKinds []schema.Kind // Kinds that could not be ordered (in or blocked by a cycle)
	CycleMembers     []schema.Kind // Kinds that actually form a cycle (subset of UnprocessedKinds)
	CyclePath        []schema.Kind // One concrete cycle, first kind repeated at the end
}

// CycleError is returned when the reference graph between entity kinds
// contains a cycle. It is always fatal: no remote write may happen after it.
type CycleError struct {
	Info *CycleInfo
}

// Error names the kinds forming the cycle and any kinds blocked behind it.
func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cyclic dependency between entity kinds: %d of %d kinds cannot be ordered",
		len(e.Info.UnprocessedKinds), e.Info.TotalKinds)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle: %s", joinKinds(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleMembers) > 0 {
		msg += fmt.Sprintf("\nKinds in cycle: %s", joinKinds(e.Info.CycleMembers, ", "))
	}

	if len(e.Info.UnprocessedKinds) > len(e.Info.CycleMembers) {
		members := make(map[schema.Kind]bool)
		for _, m := range e.Info.CycleMembers {
			members[m] = true
		}
		var blocked []schema.Kind
		for _, k := range e.Info.UnprocessedKinds {
			if !members[k] {
				blocked = append(blocked, k)
			}
		}
		if len(blocked) > 0 {
			msg += fmt.Sprintf("\nKinds blocked by cycle: %s", joinKinds(blocked, ", "))
		}
	}

	return msg
}

func joinKinds(kinds []schema.Kind, sep string) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, sep)
}

// CalculateInDegrees computes the number of unresolved dependencies for each
// kind. This is the first step of Kahn's algorithm.
func (g *Graph) CalculateInDegrees() map[schema.Kind]int {
	inDegree := make(map[schema.Kind]int)
	for kind := range g.Nodes {
		inDegree[kind] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// readyQueue holds kinds whose dependencies are all satisfied. Kinds are
// dequeued in registry declaration order so the resulting sequence is
// reproducible for identical inputs.
type readyQueue struct {
	graph *Graph
	kinds []schema.Kind
}

func (q *readyQueue) push(kind schema.Kind) {
	q.kinds = append(q.kinds, kind)
	sort.Slice(q.kinds, func(i, j int) bool {
		return q.graph.Nodes[q.kinds[i]].Index < q.graph.Nodes[q.kinds[j]].Index
	})
}

func (q *readyQueue) pop() (schema.Kind, bool) {
	if len(q.kinds) == 0 {
		return "", false
	}
	kind := q.kinds[0]
	q.kinds = q.kinds[1:]
	return kind, true
}

// TopologicalSort orders the kinds so that every referenced kind precedes
// every referencing kind, breaking ties by registry declaration order.
// Returns a CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]schema.Kind, error) {
	inDegree := g.CalculateInDegrees()

	queue := &readyQueue{graph: g}
	for kind, degree := range inDegree {
		if degree == 0 {
			queue.push(kind)
		}
	}

	var result []schema.Kind
	for {
		kind, ok := queue.pop()
		if !ok {
			break
		}
		result = append(result, kind)
		for _, child := range g.GetChildren(kind) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.push(child)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		return nil, &CycleError{Info: g.detectCycle(result)}
	}
	return result, nil
}

// Validate checks the graph for cycles without producing an ordering.
// Called once at startup so runs fail fast before any remote write.
func (g *Graph) Validate() error {
	_, err := g.TopologicalSort()
	return err
}

// HasCycle returns true if the graph cannot be topologically ordered.
func (g *Graph) HasCycle() bool {
	return g.Validate() != nil
}

// detectCycle builds diagnostic information after an incomplete sort.
// processed is the partial ordering Kahn's algorithm managed to produce.
func (g *Graph) detectCycle(processed []schema.Kind) *CycleInfo {
	done := make(map[schema.Kind]bool, len(processed))
	for _, k := range processed {
		done[k] = true
	}

	var unprocessed []schema.Kind
	for kind := range g.Nodes {
		if !done[kind] {
			unprocessed = append(unprocessed, kind)
		}
	}
	sort.Slice(unprocessed, func(i, j int) bool {
		return g.Nodes[unprocessed[i]].Index < g.Nodes[unprocessed[j]].Index
	})

	unprocessedSet := make(map[schema.Kind]bool, len(unprocessed))
	for _, k := range unprocessed {
		unprocessedSet[k] = true
	}

	// A kind is a cycle member if it can reach itself inside the
	// unprocessed subgraph; the rest are merely blocked behind the cycle.
	var members []schema.Kind
	for _, kind := range unprocessed {
		if g.canReachSelf(kind, unprocessedSet) {
			members = append(members, kind)
		}
	}

	var path []schema.Kind
	if len(members) > 0 {
		path = g.findCyclePath(members[0], unprocessedSet)
	}

	return &CycleInfo{
		TotalKinds:       len(g.Nodes),
		ProcessedKinds:   len(processed),
		UnprocessedKinds: unprocessed,
		CycleMembers:     members,
		CyclePath:        path,
	}
}

// findCyclePath returns one concrete path from start back to itself within
// the allowed subgraph, with start repeated at both ends.
func (g *Graph) findCyclePath(start schema.Kind, allowed map[schema.Kind]bool) []schema.Kind {
	visited := make(map[schema.Kind]bool)
	path := []schema.Kind{start}
	if g.dfsFindPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target schema.Kind, visited, allowed map[schema.Kind]bool, path *[]schema.Kind) bool {
	for _, child := range g.GetChildren(current) {
		if !allowed[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}
		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowed, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

// canReachSelf checks whether start participates in a cycle within the
// allowed subgraph.
func (g *Graph) canReachSelf(start schema.Kind, allowed map[schema.Kind]bool) bool {
	visited := make(map[schema.Kind]bool)
	return g.dfsCanReach(start, start, visited, allowed, true)
}

func (g *Graph) dfsCanReach(current, target schema.Kind, visited, allowed map[schema.Kind]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowed[current] {
		return false
	}
	visited[current] = true
	for _, child := range g.GetChildren(current) {
		if g.dfsCanReach(child, target, visited, allowed, false) {
			return true
		}
	}
	return false
}
