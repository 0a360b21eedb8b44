package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/index"
)

func rect(minLon, minLat, maxLon, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

// newTestIndex builds rectangular slices of Pakistan's hierarchy:
//
//	Sindh        lon 66–72, lat 24–30, districts Jamshoro / Khairpur / Sukkur
//	Balochistan  lon 60–66, lat 24–30, districts Kharan / Kalat
//
// District boundaries are inset by 0.1 degree so neighboring rectangles do
// not share edges.
func newTestIndex(t *testing.T) (*index.Memory, map[string]domain.Place) {
	t.Helper()

	byName := map[string]domain.Place{}
	var places []domain.Place
	add := func(name string, level int, parent *domain.Place, g orb.MultiPolygon) domain.Place {
		p := domain.Place{ID: uuid.New(), Name: name, Level: level, Geometry: g}
		if parent != nil {
			p.ParentID = &parent.ID
			p.ParentName = parent.Name
		}
		byName[name] = p
		places = append(places, p)
		return p
	}

	pakistan := add("Pakistan", domain.LevelCountry, nil, rect(60, 23, 78, 38))
	sindh := add("Sindh", domain.LevelProvince, &pakistan, rect(66, 24, 72, 30))
	balochistan := add("Balochistan", domain.LevelProvince, &pakistan, rect(60, 24, 66, 30))
	khairpur := add("Khairpur", domain.LevelDistrict, &sindh, rect(68.1, 24.1, 69.9, 29.9))
	add("Jamshoro", domain.LevelDistrict, &sindh, rect(66.1, 24.1, 67.9, 29.9))
	add("Sukkur", domain.LevelDistrict, &sindh, rect(70.1, 24.1, 71.9, 29.9))
	add("Kharan", domain.LevelDistrict, &balochistan, rect(60.1, 24.1, 62.9, 29.9))
	add("Kalat", domain.LevelDistrict, &balochistan, rect(63.1, 24.1, 65.9, 29.9))
	add("Gambat", domain.LevelTehsil, &khairpur, rect(68.2, 24.2, 68.8, 25.0))

	idx, err := index.NewMemory(places)
	require.NoError(t, err)
	return idx, byName
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{FuzzyThreshold: 0.85, SimilarityTolerance: 0.05, SuggestionThreshold: 0.5}
}

// fakeOracle serves canned coordinates keyed by name.
type fakeOracle struct {
	coords map[string][]domain.Coordinate
	err    error
	calls  int
}

func (o *fakeOracle) Geocode(_ context.Context, name string) ([]domain.Coordinate, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.coords[name], nil
}

func TestResolveLocal(t *testing.T) {
	idx, fixture := newTestIndex(t)
	ctx := context.Background()
	r := NewNameResolver(idx, nil, testConfig(), testLogger())

	t.Run("exact match", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Khairpur", domain.DefaultOptions())
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, fixture["Khairpur"].ID, cands[0].Place.ID)
		assert.Equal(t, domain.MatchExactName, cands[0].Method)
		require.NotNil(t, cands[0].Confidence)
		assert.InDelta(t, 1.0, *cands[0].Confidence, 1e-9)
	})

	t.Run("fuzzy match on transposition", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Khiarpur", domain.DefaultOptions())
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, fixture["Khairpur"].ID, cands[0].Place.ID)
		assert.Equal(t, domain.MatchFuzzyName, cands[0].Method)
		require.NotNil(t, cands[0].Confidence)
		assert.GreaterOrEqual(t, *cands[0].Confidence, 0.85)
		assert.Less(t, *cands[0].Confidence, 1.0)
	})

	t.Run("exhausted stages return empty", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Reykjavik", domain.DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, cands)
	})
}

func TestResolveLocal_AmbiguousExactName(t *testing.T) {
	// The same name at two hierarchy levels, like a district sharing its
	// name with its headquarters tehsil.
	country := domain.Place{ID: uuid.New(), Name: "Pakistan", Level: domain.LevelCountry}
	province := domain.Place{ID: uuid.New(), Name: "Sindh", Level: domain.LevelProvince, ParentID: &country.ID}
	district := domain.Place{ID: uuid.New(), Name: "Sukkur", Level: domain.LevelDistrict, ParentID: &province.ID}
	tehsil := domain.Place{ID: uuid.New(), Name: "Sukkur", Level: domain.LevelTehsil, ParentID: &district.ID}

	idx, err := index.NewMemory([]domain.Place{country, province, district, tehsil})
	require.NoError(t, err)
	r := NewNameResolver(idx, nil, testConfig(), testLogger())
	ctx := context.Background()

	t.Run("prefer lower admin levels", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Sukkur", domain.Options{PreferLowerAdminLevels: true})
		require.NoError(t, err)
		require.Len(t, cands, 2)
		assert.Equal(t, tehsil.ID, cands[0].Place.ID)
		assert.Equal(t, district.ID, cands[1].Place.ID)
	})

	t.Run("prefer broader places", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Sukkur", domain.Options{PreferLowerAdminLevels: false})
		require.NoError(t, err)
		require.Len(t, cands, 2)
		assert.Equal(t, district.ID, cands[0].Place.ID)
	})
}

func TestResolveLocal_FuzzyTieBreak(t *testing.T) {
	// "Kotly" sits at edit distance 1 from both names, so the scores tie
	// and the admin-level preference decides.
	root := domain.Place{ID: uuid.New(), Name: "Kotli", Level: domain.LevelCountry}
	child := domain.Place{ID: uuid.New(), Name: "Kotla", Level: domain.LevelProvince, ParentID: &root.ID}

	idx, err := index.NewMemory([]domain.Place{root, child})
	require.NoError(t, err)
	r := NewNameResolver(idx, nil, testConfig(), testLogger())
	ctx := context.Background()

	t.Run("prefer lower admin levels", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Kotly", domain.Options{PreferLowerAdminLevels: true})
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, child.ID, cands[0].Place.ID)
	})

	t.Run("prefer broader places", func(t *testing.T) {
		cands, err := r.ResolveLocal(ctx, "Kotly", domain.Options{PreferLowerAdminLevels: false})
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, root.ID, cands[0].Place.ID)
	})
}

func TestResolveOracle(t *testing.T) {
	ctx := context.Background()

	t.Run("point in polygon fallback", func(t *testing.T) {
		idx, fixture := newTestIndex(t)
		oracle := &fakeOracle{coords: map[string][]domain.Coordinate{
			"Manchar Lake": {{Lon: 67.0, Lat: 26.0, Quality: 0.8}},
		}}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		cands, err := r.Resolve(ctx, "Manchar Lake", domain.DefaultOptions(), nil)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, fixture["Jamshoro"].ID, cands[0].Place.ID)
		assert.Equal(t, domain.MatchPointInPoly, cands[0].Method)
		require.NotNil(t, cands[0].Confidence)
		assert.InDelta(t, 0.8, *cands[0].Confidence, 1e-9)
	})

	t.Run("default confidence without quality signal", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		oracle := &fakeOracle{coords: map[string][]domain.Coordinate{
			"Manchar Lake": {{Lon: 67.0, Lat: 26.0}},
		}}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		cands, err := r.Resolve(ctx, "Manchar Lake", domain.DefaultOptions(), nil)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		require.NotNil(t, cands[0].Confidence)
		assert.InDelta(t, 0.5, *cands[0].Confidence, 1e-9)
	})

	t.Run("batch context disambiguates", func(t *testing.T) {
		idx, fixture := newTestIndex(t)
		oracle := &fakeOracle{coords: map[string][]domain.Coordinate{
			// Two plausible readings, one in Jamshoro and one in Sukkur.
			"Rohri": {
				{Lon: 67.0, Lat: 26.0},
				{Lon: 70.5, Lat: 27.5},
			},
		}}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		// The rest of the batch resolved near Sukkur.
		nearby := []orb.Point{{70.8, 27.0}, {71.0, 28.0}}
		cands, err := r.Resolve(ctx, "Rohri", domain.DefaultOptions(), nearby)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, fixture["Sukkur"].ID, cands[0].Place.ID)
	})

	t.Run("no context takes top ranked result", func(t *testing.T) {
		idx, fixture := newTestIndex(t)
		oracle := &fakeOracle{coords: map[string][]domain.Coordinate{
			"Rohri": {
				{Lon: 67.0, Lat: 26.0},
				{Lon: 70.5, Lat: 27.5},
			},
		}}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		cands, err := r.Resolve(ctx, "Rohri", domain.DefaultOptions(), nil)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, fixture["Jamshoro"].ID, cands[0].Place.ID)
	})

	t.Run("oracle failure counts as zero results", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		oracle := &fakeOracle{err: errors.New("rate limited")}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		_, err := r.Resolve(ctx, "Manchar Lake", domain.DefaultOptions(), nil)
		assert.True(t, domain.IsNoMatch(err))
	})

	t.Run("coordinate outside boundaries", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		oracle := &fakeOracle{coords: map[string][]domain.Coordinate{
			"Muscat": {{Lon: 58.4, Lat: 23.6}},
		}}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		_, err := r.Resolve(ctx, "Muscat", domain.DefaultOptions(), nil)
		assert.True(t, domain.IsNoMatch(err))
	})

	t.Run("nil oracle skips the stage", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		r := NewNameResolver(idx, nil, testConfig(), testLogger())

		_, err := r.Resolve(ctx, "Manchar Lake", domain.DefaultOptions(), nil)
		assert.True(t, domain.IsNoMatch(err))
	})

	t.Run("local match never reaches the oracle", func(t *testing.T) {
		idx, _ := newTestIndex(t)
		oracle := &fakeOracle{}
		r := NewNameResolver(idx, oracle, testConfig(), testLogger())

		_, err := r.Resolve(ctx, "Khairpur", domain.DefaultOptions(), nil)
		require.NoError(t, err)
		assert.Zero(t, oracle.calls)
	})
}

func TestSuggestion(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	// A threshold above any realistic score forces the fuzzy stage to fail
	// while the suggestion floor still finds the near-miss.
	cfg := Config{FuzzyThreshold: 0.99, SimilarityTolerance: 0.05, SuggestionThreshold: 0.5}
	r := NewNameResolver(idx, nil, cfg, testLogger())

	t.Run("near miss carries a suggestion", func(t *testing.T) {
		_, err := r.Resolve(ctx, "Khiarpur", domain.DefaultOptions(), nil)
		var resErr *domain.ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, domain.ReasonNoMatch, resErr.Reason)
		assert.Equal(t, "Khairpur", resErr.Suggestion)
	})

	t.Run("gibberish has no suggestion", func(t *testing.T) {
		_, err := r.Resolve(ctx, "Zqwxv", domain.DefaultOptions(), nil)
		var resErr *domain.ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Empty(t, resErr.Suggestion)
	})
}
