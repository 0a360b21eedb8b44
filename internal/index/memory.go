// Package index provides PlaceIndex implementations. The in-memory index
// serves file-backed deployments and tests; the production Postgres index
// lives in internal/adapter/postgres.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/xrash/smetrics"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/geom"
)

// Memory is an in-memory PlaceIndex over a places snapshot.
type Memory struct {
	places   []domain.Place
	byID     map[uuid.UUID]int
	byName   map[string][]int
	children map[uuid.UUID][]int
}

// NewMemory builds an index over the given places, validating the hierarchy
// invariants the resolution engine relies on: unique IDs, every parent
// reference resolving to a place exactly one level up.
func NewMemory(places []domain.Place) (*Memory, error) {
	m := &Memory{
		places:   places,
		byID:     make(map[uuid.UUID]int, len(places)),
		byName:   make(map[string][]int, len(places)),
		children: make(map[uuid.UUID][]int),
	}

	for i, p := range places {
		if _, dup := m.byID[p.ID]; dup {
			return nil, fmt.Errorf("index: duplicate place id %s", p.ID)
		}
		m.byID[p.ID] = i
		key := normalize(p.Name)
		m.byName[key] = append(m.byName[key], i)
	}

	for i, p := range places {
		if p.ParentID == nil {
			continue
		}
		j, ok := m.byID[*p.ParentID]
		if !ok {
			return nil, fmt.Errorf("index: place %q references missing parent %s", p.Name, *p.ParentID)
		}
		if places[j].Level != p.Level-1 {
			return nil, fmt.Errorf("index: place %q at level %d has parent %q at level %d",
				p.Name, p.Level, places[j].Name, places[j].Level)
		}
		m.children[*p.ParentID] = append(m.children[*p.ParentID], i)
	}

	return m, nil
}

// Len returns the number of indexed places.
func (m *Memory) Len() int { return len(m.places) }

func (m *Memory) FindByExactName(_ context.Context, name string) ([]domain.Place, error) {
	var out []domain.Place
	for _, i := range m.byName[normalize(name)] {
		out = append(out, m.places[i])
	}
	return out, nil
}

func (m *Memory) FindByFuzzyName(_ context.Context, name string, threshold float64) ([]domain.FuzzyMatch, error) {
	query := normalize(name)
	if query == "" {
		return nil, nil
	}

	var out []domain.FuzzyMatch
	for _, p := range m.places {
		score := Similarity(query, normalize(p.Name))
		if score >= threshold {
			out = append(out, domain.FuzzyMatch{Place: p, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Place.Name < out[j].Place.Name
	})
	return out, nil
}

func (m *Memory) FindContaining(_ context.Context, pt orb.Point) (*domain.Place, error) {
	var best *domain.Place
	var bestArea float64
	for i := range m.places {
		p := &m.places[i]
		if !p.HasGeometry() || !geom.ContainsPoint(p.Geometry, pt) {
			continue
		}
		area := geom.Area(p.Geometry)
		if best == nil || p.Level > best.Level || (p.Level == best.Level && area < bestArea) {
			best, bestArea = p, area
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *Memory) FindIntersecting(_ context.Context, poly orb.Polygon) ([]domain.Place, error) {
	var out []domain.Place
	for _, p := range m.places {
		if p.HasGeometry() && geom.IntersectsPolygon(p.Geometry, poly) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Children(_ context.Context, parentID uuid.UUID, atLevel int) ([]domain.Place, error) {
	var out []domain.Place
	for _, i := range m.children[parentID] {
		if m.places[i].Level == atLevel {
			out = append(out, m.places[i])
		}
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*domain.Place, error) {
	i, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := m.places[i]
	return &cp, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Similarity scores two normalized names in [0,1]. It takes the better of
// Levenshtein-based edit similarity and Jaro-Winkler, which tolerates both
// transpositions ("Khairpur"/"Khiarpur") and truncated prefixes. The
// Postgres index delegates the same job to pg_trgm instead.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := max(len(a), len(b))
	edit := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	return max(edit, jw)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
