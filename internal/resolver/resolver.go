// Package resolver turns single place-name tokens into candidate places and
// applies directional grid filtering. The resolution chain short-circuits at
// the first stage that produces a candidate: exact name, fuzzy name, then
// the external oracle plus point-in-polygon containment.
package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"

	"github.com/disasterwatch/geocoder/internal/domain"
)

// Config carries the matching thresholds.
type Config struct {
	// FuzzyThreshold is the minimum similarity for a fuzzy match (0.85 in
	// production).
	FuzzyThreshold float64

	// SimilarityTolerance is the score window within which the admin-level
	// preference outranks raw similarity.
	SimilarityTolerance float64

	// SuggestionThreshold is the looser floor used to find "did you mean"
	// near-misses for error messages.
	SuggestionThreshold float64
}

// NameResolver resolves one place-name token to candidate places.
type NameResolver struct {
	index  domain.PlaceIndex
	oracle domain.Oracle // nil disables the external fallback
	cfg    Config
	logger *slog.Logger
}

// NewNameResolver builds a resolver over the given index and oracle. Pass a
// nil oracle to run without the external fallback stage.
func NewNameResolver(index domain.PlaceIndex, oracle domain.Oracle, cfg Config, logger *slog.Logger) *NameResolver {
	return &NameResolver{index: index, oracle: oracle, cfg: cfg, logger: logger}
}

// Resolve runs the full chain. batchContext holds representative coordinates
// of other already-resolved items in the same batch, used to disambiguate
// multi-result oracle answers. Fails with a NoMatch resolution error only
// when every stage exhausts.
func (r *NameResolver) Resolve(ctx context.Context, name string, opts domain.Options, batchContext []orb.Point) ([]domain.Candidate, error) {
	cands, err := r.ResolveLocal(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		return cands, nil
	}
	return r.ResolveOracle(ctx, name, batchContext)
}

// ResolveLocal runs the exact and fuzzy stages only. An empty result with a
// nil error means the local stages exhausted; infrastructure failures are
// returned as errors.
func (r *NameResolver) ResolveLocal(ctx context.Context, name string, opts domain.Options) ([]domain.Candidate, error) {
	exact, err := r.index.FindByExactName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exactCandidates(exact, opts), nil
	}

	matches, err := r.index.FindByFuzzyName(ctx, name, r.cfg.FuzzyThreshold)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := r.selectBest(matches, opts)
	return []domain.Candidate{{
		Place:      best.Place,
		Method:     domain.MatchFuzzyName,
		Confidence: domain.Conf(best.Score),
	}}, nil
}

// ResolveOracle runs the external fallback: geocode the name, pick one
// coordinate (spatial-context disambiguation when the batch offers any),
// then find the most specific place containing it. Oracle failures and
// timeouts count as zero results.
func (r *NameResolver) ResolveOracle(ctx context.Context, name string, batchContext []orb.Point) ([]domain.Candidate, error) {
	if r.oracle == nil {
		return nil, r.noMatch(ctx, name)
	}

	coords, err := r.oracle.Geocode(ctx, name)
	if err != nil {
		r.logger.Warn("oracle unavailable, treating as zero results", "name", name, "error", err)
		return nil, r.noMatch(ctx, name)
	}
	if len(coords) == 0 {
		return nil, r.noMatch(ctx, name)
	}

	chosen := disambiguate(coords, batchContext)

	place, err := r.index.FindContaining(ctx, chosen.Point())
	if err != nil {
		return nil, err
	}
	if place == nil {
		r.logger.Warn("oracle coordinate outside known boundaries",
			"name", name, "lon", chosen.Lon, "lat", chosen.Lat)
		return nil, r.noMatch(ctx, name)
	}

	confidence := chosen.Quality
	if confidence == 0 {
		confidence = 0.5
	}
	return []domain.Candidate{{
		Place:      *place,
		Method:     domain.MatchPointInPoly,
		Confidence: domain.Conf(confidence),
	}}, nil
}

// Suggestion returns the closest below-threshold fuzzy match for a name, or
// empty when nothing comes close.
func (r *NameResolver) Suggestion(ctx context.Context, name string) string {
	matches, err := r.index.FindByFuzzyName(ctx, name, r.cfg.SuggestionThreshold)
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0].Place.Name
}

func (r *NameResolver) noMatch(ctx context.Context, name string) error {
	return domain.NoMatch(name, r.Suggestion(ctx, name))
}

// exactCandidates converts exact matches, ordered by the admin-level
// preference so the first candidate is the preferred reading of an
// ambiguous name.
func exactCandidates(places []domain.Place, opts domain.Options) []domain.Candidate {
	sorted := make([]domain.Place, len(places))
	copy(sorted, places)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			if opts.PreferLowerAdminLevels {
				return sorted[i].Level > sorted[j].Level
			}
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].Name < sorted[j].Name
	})

	out := make([]domain.Candidate, len(sorted))
	for i, p := range sorted {
		out[i] = domain.Candidate{Place: p, Method: domain.MatchExactName, Confidence: domain.Conf(1.0)}
	}
	return out
}

// selectBest picks one fuzzy match: within SimilarityTolerance of the top
// score, the admin-level preference decides; raw score breaks remaining
// ties. Matches arrive sorted best-first.
func (r *NameResolver) selectBest(matches []domain.FuzzyMatch, opts domain.Options) domain.FuzzyMatch {
	top := matches[0].Score

	best := matches[0]
	for _, m := range matches[1:] {
		if top-m.Score > r.cfg.SimilarityTolerance {
			break
		}
		if opts.PreferLowerAdminLevels && m.Place.Level > best.Place.Level {
			best = m
		}
		if !opts.PreferLowerAdminLevels && m.Place.Level < best.Place.Level {
			best = m
		}
	}
	return best
}

// disambiguate picks the oracle result closest to the centroid of the batch
// context, falling back to the provider's top-ranked result when the batch
// offers no context. Squared Euclidean distance on lon/lat; bulletins
// cluster tightly enough that projection error is irrelevant.
func disambiguate(coords []domain.Coordinate, batchContext []orb.Point) domain.Coordinate {
	if len(coords) == 1 || len(batchContext) == 0 {
		return coords[0]
	}

	var cLon, cLat float64
	for _, p := range batchContext {
		cLon += p[0]
		cLat += p[1]
	}
	cLon /= float64(len(batchContext))
	cLat /= float64(len(batchContext))

	best := coords[0]
	bestDist := sqDist(best, cLon, cLat)
	for _, c := range coords[1:] {
		if d := sqDist(c, cLon, cLat); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(c domain.Coordinate, lon, lat float64) float64 {
	dLon := c.Lon - lon
	dLat := c.Lat - lat
	return dLon*dLon + dLat*dLat
}
