package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterwatch/geocoder/internal/domain"
)

func writePlacesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "places.geojson")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadGeoJSON(t *testing.T) {
	const countryID = "1b671a64-40d5-491e-99b0-da01ff1f3341"
	const provinceID = "2b671a64-40d5-491e-99b0-da01ff1f3341"

	t.Run("loads hierarchy with mixed geometry", func(t *testing.T) {
		path := writePlacesFile(t, fmt.Sprintf(`{
			"type": "FeatureCollection",
			"features": [
				{
					"type": "Feature",
					"properties": {"id": %q, "name": "Pakistan", "parent_id": null, "parent_name": null, "hierarchy_level": 0},
					"geometry": {"type": "Polygon", "coordinates": [[[60,23],[78,23],[78,38],[60,38],[60,23]]]}
				},
				{
					"type": "Feature",
					"properties": {"id": %q, "name": "Sindh", "parent_id": %q, "parent_name": "Pakistan", "hierarchy_level": 1},
					"geometry": null
				}
			]
		}`, countryID, provinceID, countryID))

		places, err := LoadGeoJSON(path)
		require.NoError(t, err)
		require.Len(t, places, 2)

		pakistan, sindh := places[0], places[1]
		assert.Equal(t, "Pakistan", pakistan.Name)
		assert.Equal(t, domain.LevelCountry, pakistan.Level)
		assert.Nil(t, pakistan.ParentID)
		assert.True(t, pakistan.HasGeometry())

		assert.Equal(t, "Sindh", sindh.Name)
		require.NotNil(t, sindh.ParentID)
		assert.Equal(t, pakistan.ID, *sindh.ParentID)
		assert.Equal(t, "Pakistan", sindh.ParentName)
		assert.False(t, sindh.HasGeometry())
	})

	t.Run("rejects invalid id", func(t *testing.T) {
		path := writePlacesFile(t, `{
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"properties": {"id": "not-a-uuid", "name": "Sindh", "hierarchy_level": 1},
				"geometry": null
			}]
		}`)

		_, err := LoadGeoJSON(path)
		assert.ErrorContains(t, err, "invalid id")
	})

	t.Run("rejects missing name", func(t *testing.T) {
		path := writePlacesFile(t, fmt.Sprintf(`{
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"properties": {"id": %q, "hierarchy_level": 1},
				"geometry": null
			}]
		}`, countryID))

		_, err := LoadGeoJSON(path)
		assert.ErrorContains(t, err, "no name")
	})

	t.Run("rejects out of range level", func(t *testing.T) {
		path := writePlacesFile(t, fmt.Sprintf(`{
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"properties": {"id": %q, "name": "Sindh", "hierarchy_level": 7},
				"geometry": null
			}]
		}`, countryID))

		_, err := LoadGeoJSON(path)
		assert.ErrorContains(t, err, "hierarchy_level")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGeoJSON(filepath.Join(t.TempDir(), "absent.geojson"))
		assert.Error(t, err)
	})
}
