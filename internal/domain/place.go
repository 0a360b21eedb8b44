package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Hierarchy levels of the places dataset, root to leaf.
const (
	LevelCountry  = 0
	LevelProvince = 1
	LevelDistrict = 2
	LevelTehsil   = 3
)

// Place is one administrative-boundary record. Geometry is nil when no
// boundary polygon is available for the place.
type Place struct {
	ID         uuid.UUID
	Name       string
	ParentID   *uuid.UUID
	ParentName string
	Level      int
	Geometry   orb.MultiPolygon
}

// HasGeometry reports whether the place carries a usable boundary polygon.
func (p Place) HasGeometry() bool {
	return len(p.Geometry) > 0
}

// FuzzyMatch pairs a place with its name-similarity score against a query.
type FuzzyMatch struct {
	Place Place
	Score float64
}

// PlaceIndex is the query surface over the places hierarchy. Implemented by
// the Postgres/PostGIS store in production and an in-memory index for tests
// and file-backed deployments.
type PlaceIndex interface {
	// FindByExactName returns all places whose name equals the query
	// case-insensitively. Several places at different levels may share a name.
	FindByExactName(ctx context.Context, name string) ([]Place, error)

	// FindByFuzzyName returns places whose name similarity to the query is at
	// least threshold, highest score first.
	FindByFuzzyName(ctx context.Context, name string, threshold float64) ([]FuzzyMatch, error)

	// FindContaining returns the place whose boundary contains the point,
	// preferring the most specific level and breaking ties by smallest area.
	// Returns nil when no boundary contains the point.
	FindContaining(ctx context.Context, pt orb.Point) (*Place, error)

	// FindIntersecting returns all places whose boundary intersects the
	// polygon. Touching counts as intersecting.
	FindIntersecting(ctx context.Context, poly orb.Polygon) ([]Place, error)

	// Children returns all places directly under parentID at the given level.
	Children(ctx context.Context, parentID uuid.UUID, atLevel int) ([]Place, error)

	// Get returns the place with the given ID, or nil if absent.
	Get(ctx context.Context, id uuid.UUID) (*Place, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Coordinate is one result from the external geocoding oracle. Quality is
// the provider's relevance score in [0,1], or 0 when the provider reports
// none.
type Coordinate struct {
	Lon     float64
	Lat     float64
	Quality float64
}

// Point returns the coordinate as an orb lon/lat point.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Oracle is the external geocoding service, abstracted so the engine can be
// tested with a fake and never depends on a provider's response shape.
// Results are ordered by provider rank, best first.
type Oracle interface {
	Geocode(ctx context.Context, name string) ([]Coordinate, error)
}
