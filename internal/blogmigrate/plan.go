package blogmigrate

import (
	"fmt"
	"slices"
	"strings"
)

// dependencies lists, per entity, the entity types its rows reference.
// Self references (directory parents) are resolved row by row instead.
var dependencies = map[Entity][]Entity{
	Blogs:     {Categories},
	BlogTags:  {Blogs, Tags},
	Documents: {Directories},
}

// Plan orders entities so each comes after every entity it depends on.
// Ties keep the canonical AllEntities order, so the result is stable.
func Plan(entities []Entity) ([]Entity, error) {
	return order(entities, dependencies)
}

func order(entities []Entity, deps map[Entity][]Entity) ([]Entity, error) {
	rank := make(map[Entity]int, len(AllEntities))
	for i, e := range AllEntities {
		rank[e] = i
	}

	want := make(map[Entity]bool, len(entities))
	for _, e := range entities {
		want[e] = true
	}

	// Only count dependencies that are part of this run.
	indegree := make(map[Entity]int, len(entities))
	dependents := make(map[Entity][]Entity)
	for e := range want {
		indegree[e] = 0
	}
	for e := range want {
		for _, d := range deps[e] {
			if want[d] && d != e {
				indegree[e]++
				dependents[d] = append(dependents[d], e)
			}
		}
	}

	out := make([]Entity, 0, len(want))
	for len(out) < len(want) {
		next, found := Entity(""), false
		for e, n := range indegree {
			if n != 0 {
				continue
			}
			if !found || rank[e] < rank[next] {
				next, found = e, true
			}
		}
		if !found {
			var stuck []string
			for e := range indegree {
				stuck = append(stuck, string(e))
			}
			slices.SortFunc(stuck, func(a, b string) int { return rank[Entity(a)] - rank[Entity(b)] })
			return nil, fmt.Errorf("dependency cycle between %s", strings.Join(stuck, ", "))
		}
		out = append(out, next)
		delete(indegree, next)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return out, nil
}

// resolveHierarchy attempts self-referencing rows parent first. Pass 0
// attempts the roots; every later pass attempts the rows whose parent
// succeeded in an earlier pass. It stops when a pass attempts nothing and
// returns the rows that were never attempted: their parent failed, is
// missing from the source, or is part of a cycle.
func resolveHierarchy[T any](rows []T, id func(T) int64, parent func(T) *int64, attempt func(T) bool) []T {
	doneIn := make(map[int64]int)
	pending := rows
	for pass := 0; ; pass++ {
		var waiting []T
		for _, r := range pending {
			if p := parent(r); p != nil {
				if at, ok := doneIn[*p]; !ok || at >= pass {
					waiting = append(waiting, r)
					continue
				}
			}
			if attempt(r) {
				doneIn[id(r)] = pass
			}
		}
		if len(waiting) == len(pending) {
			return waiting
		}
		pending = waiting
	}
}
