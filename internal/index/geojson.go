package index

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/disasterwatch/geocoder/internal/domain"
)

// LoadGeoJSON reads a places snapshot from a GeoJSON feature collection.
// Each feature carries the places-table columns as properties:
//
//	id (uuid), name, parent_id (uuid or null), parent_name (or null),
//	hierarchy_level (0–3)
//
// and a Polygon or MultiPolygon geometry, which may be null for places with
// no boundary data.
func LoadGeoJSON(path string) ([]domain.Place, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read places file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse places file: %w", err)
	}

	places := make([]domain.Place, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, err := placeFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		places = append(places, p)
	}
	return places, nil
}

func placeFromFeature(f *geojson.Feature) (domain.Place, error) {
	id, err := propUUID(f, "id")
	if err != nil {
		return domain.Place{}, err
	}

	name, _ := f.Properties["name"].(string)
	if name == "" {
		return domain.Place{}, fmt.Errorf("place %s has no name", id)
	}

	level, ok := propInt(f, "hierarchy_level")
	if !ok || level < domain.LevelCountry || level > domain.LevelTehsil {
		return domain.Place{}, fmt.Errorf("place %q has invalid hierarchy_level", name)
	}

	p := domain.Place{ID: id, Name: name, Level: level}

	if raw, present := f.Properties["parent_id"]; present && raw != nil {
		parentID, err := propUUID(f, "parent_id")
		if err != nil {
			return domain.Place{}, fmt.Errorf("place %q: %w", name, err)
		}
		p.ParentID = &parentID
		p.ParentName, _ = f.Properties["parent_name"].(string)
	}

	switch g := f.Geometry.(type) {
	case orb.Polygon:
		p.Geometry = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		p.Geometry = g
	case nil:
		// No boundary data; name matching only.
	default:
		return domain.Place{}, fmt.Errorf("place %q has unsupported geometry %T", name, g)
	}

	return p, nil
}

func propUUID(f *geojson.Feature, key string) (uuid.UUID, error) {
	s, _ := f.Properties[key].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return id, nil
}

func propInt(f *geojson.Feature, key string) (int, bool) {
	switch v := f.Properties[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
