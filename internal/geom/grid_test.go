package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterwatch/geocoder/internal/domain"
)

func TestUnionBound(t *testing.T) {
	t.Run("combines boxes", func(t *testing.T) {
		b := UnionBound([]orb.MultiPolygon{
			rect(60, 24, 66, 30),
			rect(66, 24, 72, 28),
		})
		assert.Equal(t, orb.Point{60, 24}, b.Min)
		assert.Equal(t, orb.Point{72, 30}, b.Max)
	})

	t.Run("skips empty geometries", func(t *testing.T) {
		b := UnionBound([]orb.MultiPolygon{nil, rect(0, 0, 1, 1), nil})
		assert.Equal(t, orb.Point{0, 0}, b.Min)
		assert.Equal(t, orb.Point{1, 1}, b.Max)
	})

	t.Run("all empty is degenerate", func(t *testing.T) {
		assert.True(t, Degenerate(UnionBound(nil)))
		assert.True(t, Degenerate(UnionBound([]orb.MultiPolygon{nil})))
	})
}

func TestDegenerate(t *testing.T) {
	assert.False(t, Degenerate(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}))
	assert.True(t, Degenerate(orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{1, 1}}), "zero lon span")
	assert.True(t, Degenerate(orb.Bound{Min: orb.Point{0, 1}, Max: orb.Point{1, 1}}), "zero lat span")
}

func TestSelectionBound(t *testing.T) {
	// A 9×9 base bound divides into 3×3 cells of exactly 3 units each.
	base := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{9, 9}}

	tests := []struct {
		dir      domain.Direction
		min, max orb.Point
	}{
		{domain.DirNorth, orb.Point{0, 6}, orb.Point{9, 9}},
		{domain.DirSouth, orb.Point{0, 0}, orb.Point{9, 3}},
		{domain.DirEast, orb.Point{6, 0}, orb.Point{9, 9}},
		{domain.DirWest, orb.Point{0, 0}, orb.Point{3, 9}},
		{domain.DirCentral, orb.Point{3, 0}, orb.Point{6, 9}},
		{domain.DirNorthEast, orb.Point{6, 6}, orb.Point{9, 9}},
		{domain.DirNorthWest, orb.Point{0, 6}, orb.Point{3, 9}},
		{domain.DirSouthEast, orb.Point{6, 0}, orb.Point{9, 3}},
		{domain.DirSouthWest, orb.Point{0, 0}, orb.Point{3, 3}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			sel, err := SelectionBound(tt.dir, base)
			require.NoError(t, err)
			assert.Equal(t, tt.min, sel.Min)
			assert.Equal(t, tt.max, sel.Max)
		})
	}

	t.Run("selection stays within base", func(t *testing.T) {
		for _, tt := range tests {
			sel, err := SelectionBound(tt.dir, base)
			require.NoError(t, err)
			assert.True(t, base.Contains(sel.Min), "%s min outside base", tt.dir)
			assert.True(t, base.Contains(sel.Max), "%s max outside base", tt.dir)
		}
	})

	t.Run("no direction is an error", func(t *testing.T) {
		_, err := SelectionBound(domain.DirNone, base)
		assert.Error(t, err)
	})
}
