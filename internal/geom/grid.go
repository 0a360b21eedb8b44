package geom

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/disasterwatch/geocoder/internal/domain"
)

// UnionBound returns the combined axis-aligned bounding box of the given
// geometries, skipping empty ones.
func UnionBound(geoms []orb.MultiPolygon) orb.Bound {
	var b orb.Bound
	first := true
	for _, g := range geoms {
		if len(g) == 0 {
			continue
		}
		if first {
			b = g.Bound()
			first = false
			continue
		}
		b = b.Union(g.Bound())
	}
	return b
}

// Degenerate reports whether a bound has zero longitude or latitude span and
// therefore cannot be subdivided into a grid.
func Degenerate(b orb.Bound) bool {
	return b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1]
}

// SelectionBound partitions the bound into a 3×3 grid of equal lon/lat cells
// and returns the sub-bound the direction selects:
//
//	North/South  → top/bottom row
//	East/West    → right/left column
//	Central      → middle column, all rows
//	diagonals    → the single corner cell
//
// Each selection is a contiguous block of cells, so the union of selected
// cells is always one rectangle.
func SelectionBound(dir domain.Direction, b orb.Bound) (orb.Bound, error) {
	lonStep := (b.Max[0] - b.Min[0]) / 3
	latStep := (b.Max[1] - b.Min[1]) / 3

	// cell(col, row) with col 0 = west and row 0 = south.
	cell := func(col, row int) orb.Bound {
		return orb.Bound{
			Min: orb.Point{b.Min[0] + float64(col)*lonStep, b.Min[1] + float64(row)*latStep},
			Max: orb.Point{b.Min[0] + float64(col+1)*lonStep, b.Min[1] + float64(row+1)*latStep},
		}
	}

	switch dir {
	case domain.DirNorth:
		return cell(0, 2).Union(cell(2, 2)), nil
	case domain.DirSouth:
		return cell(0, 0).Union(cell(2, 0)), nil
	case domain.DirEast:
		return cell(2, 0).Union(cell(2, 2)), nil
	case domain.DirWest:
		return cell(0, 0).Union(cell(0, 2)), nil
	case domain.DirCentral:
		return cell(1, 0).Union(cell(1, 2)), nil
	case domain.DirNorthEast:
		return cell(2, 2), nil
	case domain.DirNorthWest:
		return cell(0, 2), nil
	case domain.DirSouthEast:
		return cell(2, 0), nil
	case domain.DirSouthWest:
		return cell(0, 0), nil
	default:
		return orb.Bound{}, fmt.Errorf("no grid selection for direction %q", dir)
	}
}
