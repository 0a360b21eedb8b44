package domain

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// HierarchyLister is the slice of PlaceIndex the aggregator needs.
type HierarchyLister interface {
	Children(ctx context.Context, parentID uuid.UUID, atLevel int) ([]Place, error)
	Get(ctx context.Context, id uuid.UUID) (*Place, error)
}

// Aggregate collapses a flat candidate set into the minimal covering set:
// whenever every child of a parent at some level is present, the whole group
// is replaced by a single candidate for the parent. Replacement repeats one
// level up until a pass changes nothing, so no result ever lists all N
// children of a place the place itself could stand for.
//
// The loop is an iterative fixed point rather than recursion; the hierarchy
// is only four levels deep but the iteration bounds stack depth regardless.
// Idempotent: aggregating an already-aggregated set is a no-op. Input order
// is preserved, with a promoted parent taking the position of its first
// replaced child.
func Aggregate(ctx context.Context, cands []Candidate, idx HierarchyLister) ([]Candidate, error) {
	cands = DedupeCandidates(cands)

	for {
		replaced, err := aggregateOnce(ctx, cands, idx)
		if err != nil {
			return nil, err
		}
		if replaced == nil {
			return cands, nil
		}
		cands = replaced
	}
}

// aggregateOnce runs a single promotion pass. Returns nil when the pass made
// no replacement.
func aggregateOnce(ctx context.Context, cands []Candidate, idx HierarchyLister) ([]Candidate, error) {
	present := make(map[uuid.UUID]bool, len(cands))
	for _, c := range cands {
		present[c.Place.ID] = true
	}

	// Group candidate positions by (parent, level). The level is part of the
	// key to guard against dirty data where same-parent candidates sit at
	// different levels.
	type groupKey struct {
		parent uuid.UUID
		level  int
	}
	groups := make(map[groupKey][]int)
	for i, c := range cands {
		if c.Place.ParentID == nil {
			continue
		}
		k := groupKey{parent: *c.Place.ParentID, level: c.Place.Level}
		groups[k] = append(groups[k], i)
	}

	// Deterministic group visiting order: by first candidate position.
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return groups[keys[i]][0] < groups[keys[j]][0]
	})

	promote := make(map[int]Candidate) // first-child position → parent candidate
	drop := make(map[int]bool)

	for _, k := range keys {
		positions := groups[k]
		siblings, err := idx.Children(ctx, k.parent, k.level)
		if err != nil {
			return nil, fmt.Errorf("aggregate: list children of %s: %w", k.parent, err)
		}
		if len(siblings) == 0 || !allPresent(siblings, present) {
			continue
		}

		parent, err := idx.Get(ctx, k.parent)
		if err != nil {
			return nil, fmt.Errorf("aggregate: load parent %s: %w", k.parent, err)
		}
		if parent == nil {
			continue
		}

		group := make([]Candidate, len(positions))
		for i, pos := range positions {
			group[i] = cands[pos]
			drop[pos] = true
		}
		promote[positions[0]] = Candidate{
			Place:      *parent,
			Method:     dominantMethod(group),
			Confidence: minConfidence(group),
		}
	}

	if len(promote) == 0 {
		return nil, nil
	}

	out := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		if p, ok := promote[i]; ok {
			out = append(out, p)
			continue
		}
		if !drop[i] {
			out = append(out, c)
		}
	}
	return DedupeCandidates(out), nil
}

func allPresent(siblings []Place, present map[uuid.UUID]bool) bool {
	for _, s := range siblings {
		if !present[s.ID] {
			return false
		}
	}
	return true
}

// dominantMethod picks the most frequent match method among replaced
// children, breaking ties toward directional_intersection.
func dominantMethod(group []Candidate) MatchMethod {
	counts := make(map[MatchMethod]int, len(group))
	for _, c := range group {
		counts[c.Method]++
	}
	best := MatchDirectional
	bestCount := counts[MatchDirectional]
	for _, m := range []MatchMethod{MatchExactName, MatchFuzzyName, MatchPointInPoly} {
		if counts[m] > bestCount {
			best, bestCount = m, counts[m]
		}
	}
	return best
}

// minConfidence returns the minimum child confidence, or nil if any child
// carried no score (a promoted parent is only as certain as its least
// certain child).
func minConfidence(group []Candidate) *float64 {
	var minVal float64
	for i, c := range group {
		if c.Confidence == nil {
			return nil
		}
		if i == 0 || *c.Confidence < minVal {
			minVal = *c.Confidence
		}
	}
	return Conf(minVal)
}
