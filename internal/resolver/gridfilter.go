package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/geom"
)

// SpatialGridFilter narrows a set of named base regions to the places lying
// in one directional portion of them: the combined bounding box is cut into
// a 3×3 grid, the direction selects a block of cells, and the index is
// queried for boundaries intersecting that block.
type SpatialGridFilter struct {
	index  domain.PlaceIndex
	logger *slog.Logger
}

// NewSpatialGridFilter builds a grid filter over the given index.
func NewSpatialGridFilter(index domain.PlaceIndex, logger *slog.Logger) *SpatialGridFilter {
	return &SpatialGridFilter{index: index, logger: logger}
}

// Filter returns candidates one hierarchy level below the base regions whose
// boundaries intersect both the directional selection and at least one base
// region: the grid narrows a named region, it never escapes it. Touching
// counts as intersecting. Fails with EmptyGeometry when no base region has a
// usable boundary; callers recover with name-only matching.
func (f *SpatialGridFilter) Filter(ctx context.Context, dir domain.Direction, base []domain.Place) ([]domain.Candidate, error) {
	geoms := make([]orb.MultiPolygon, 0, len(base))
	maxLevel := 0
	for _, b := range base {
		if b.HasGeometry() {
			geoms = append(geoms, b.Geometry)
		}
		if b.Level > maxLevel {
			maxLevel = b.Level
		}
	}

	bound := geom.UnionBound(geoms)
	if len(geoms) == 0 || geom.Degenerate(bound) {
		return nil, domain.EmptyGeometry(baseNames(base))
	}

	selection, err := geom.SelectionBound(dir, bound)
	if err != nil {
		return nil, err
	}

	places, err := f.index.FindIntersecting(ctx, selection.ToPolygon())
	if err != nil {
		return nil, err
	}

	// Results come back at every level; keep the level directly under the
	// base regions (districts under provinces) so the answer enumerates
	// subdivisions, not the regions themselves. Deeper levels are left to
	// hierarchical aggregation semantics: all-children promotion would just
	// reproduce this level anyway.
	targetLevel := min(maxLevel+1, domain.LevelTehsil)

	var out []domain.Candidate
	for _, p := range places {
		if p.Level != targetLevel {
			continue
		}
		if !intersectsAny(p.Geometry, geoms) {
			continue
		}
		out = append(out, domain.Candidate{Place: p, Method: domain.MatchDirectional})
	}
	return out, nil
}

func intersectsAny(g orb.MultiPolygon, bases []orb.MultiPolygon) bool {
	for _, b := range bases {
		if geom.Intersects(g, b) {
			return true
		}
	}
	return false
}

func baseNames(base []domain.Place) string {
	names := make([]string, len(base))
	for i, b := range base {
		names[i] = b.Name
	}
	return strings.Join(names, ", ")
}
