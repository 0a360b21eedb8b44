// Package geocoder orchestrates batch resolution of location strings:
// directional parsing, name resolution, spatial grid filtering, and
// hierarchical aggregation, with per-item error isolation.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/geom"
	"github.com/disasterwatch/geocoder/internal/observability"
	"github.com/disasterwatch/geocoder/internal/resolver"
)

// Service is the top-level geocoding engine.
//
// Batches run in two passes. The first pass parses every item and runs the
// local (exact/fuzzy) resolution stages concurrently. The second pass runs
// sequentially over items that still need the external oracle or directional
// filtering, so spatial-context disambiguation sees the complete first-pass
// results of the whole batch. Output is deterministic for a fixed input
// order and preserves it.
type Service struct {
	index    domain.PlaceIndex
	resolver *resolver.NameResolver
	grid     *resolver.SpatialGridFilter
	strict   bool
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Service. strict enables rejection of near-miss direction
// words instead of treating them as name text.
func New(index domain.PlaceIndex, r *resolver.NameResolver, g *resolver.SpatialGridFilter, strict bool, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{index: index, resolver: r, grid: g, strict: strict, logger: logger, metrics: metrics}
}

// CheckReadiness reports whether the place index is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.index.Ping(ctx)
}

// item tracks one input string through both passes.
type item struct {
	input  string
	parsed domain.ParsedLocation

	// tokenCands holds first-pass local candidates per token; an empty slot
	// means that token needs the oracle in pass two.
	tokenCands [][]domain.Candidate

	resErr *domain.ResolutionError
	fatal  error
}

// Geocode resolves a batch of location strings. Every input lands in exactly
// one of results or errors. A non-nil error is returned only for
// infrastructure failure (place index unreachable), which aborts the batch.
func (s *Service) Geocode(ctx context.Context, locations []string, opts domain.Options) (domain.GeocodeResponse, error) {
	start := time.Now()
	s.metrics.GeocodeRequests.Inc()
	s.metrics.BatchSize.Observe(float64(len(locations)))
	defer func() {
		s.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	items := make([]item, len(locations))

	// Pass one: parse and resolve local stages, concurrently per item.
	var wg sync.WaitGroup
	for i, input := range locations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items[i] = s.passOne(ctx, input, opts)
		}()
	}
	wg.Wait()

	for i := range items {
		if items[i].fatal != nil {
			return domain.GeocodeResponse{}, fmt.Errorf("geocode batch: %w", items[i].fatal)
		}
	}

	// Representative coordinates per item, for oracle disambiguation.
	points := make([][]orb.Point, len(items))
	for i := range items {
		points[i] = itemPoints(items[i])
	}

	// Pass two: oracle fallback, directional filtering, aggregation.
	resp := domain.GeocodeResponse{Results: []domain.GeocodeResult{}, Errors: []domain.GeocodeError{}}
	for i := range items {
		result, err := s.passTwo(ctx, &items[i], opts, contextFor(points, i))

		var resErr *domain.ResolutionError
		switch {
		case err == nil:
			s.metrics.LocationsMatched.WithLabelValues(firstMethod(result)).Inc()
			resp.Results = append(resp.Results, result)
		case errors.As(err, &resErr):
			s.metrics.LocationsFailed.WithLabelValues(resErr.Stage).Inc()
			resp.Errors = append(resp.Errors, domain.GeocodeError{
				Input:      items[i].input,
				Reason:     resErr.Reason,
				Stage:      resErr.Stage,
				Suggestion: resErr.Suggestion,
			})
		default:
			return domain.GeocodeResponse{}, fmt.Errorf("geocode batch: %w", err)
		}
	}
	return resp, nil
}

func (s *Service) passOne(ctx context.Context, input string, opts domain.Options) item {
	it := item{input: input}

	if s.strict {
		parsed, err := domain.ParseLocationStrict(input)
		var resErr *domain.ResolutionError
		if errors.As(err, &resErr) {
			it.resErr = resErr
			return it
		}
		it.parsed = parsed
	} else {
		it.parsed = domain.ParseLocation(input)
	}

	if len(it.parsed.Tokens) == 0 {
		it.resErr = &domain.ResolutionError{
			Stage:  domain.StageParser,
			Reason: domain.ReasonNoMatch,
			Input:  input,
		}
		return it
	}

	it.tokenCands = make([][]domain.Candidate, len(it.parsed.Tokens))
	for t, token := range it.parsed.Tokens {
		cands, err := s.resolver.ResolveLocal(ctx, token, opts)
		if err != nil {
			it.fatal = err
			return it
		}
		it.tokenCands[t] = cands
	}
	return it
}

func (s *Service) passTwo(ctx context.Context, it *item, opts domain.Options, batchContext []orb.Point) (domain.GeocodeResult, error) {
	if it.resErr != nil {
		return domain.GeocodeResult{}, it.resErr
	}
	if it.parsed.Direction == domain.DirNone {
		return s.resolveSimple(ctx, it, opts, batchContext)
	}
	return s.resolveDirectional(ctx, it, opts, batchContext)
}

// resolveSimple finishes a non-directional item: oracle fallback for tokens
// the local stages missed, then aggregation. The item fails only when no
// token resolved at all.
func (s *Service) resolveSimple(ctx context.Context, it *item, opts domain.Options, batchContext []orb.Point) (domain.GeocodeResult, error) {
	var all []domain.Candidate
	var firstErr *domain.ResolutionError

	for t, token := range it.parsed.Tokens {
		cands := it.tokenCands[t]
		if len(cands) == 0 {
			oracleCands, err := s.resolver.ResolveOracle(ctx, token, batchContext)
			var resErr *domain.ResolutionError
			if errors.As(err, &resErr) {
				if firstErr == nil {
					firstErr = resErr
				}
				s.logger.Warn("token unresolved", "input", it.input, "token", token, "reason", resErr.Reason)
				continue
			}
			if err != nil {
				return domain.GeocodeResult{}, err
			}
			cands = oracleCands
		}
		all = append(all, cands...)
	}

	if len(all) == 0 {
		if firstErr != nil {
			firstErr.Input = it.input
			return domain.GeocodeResult{}, firstErr
		}
		return domain.GeocodeResult{}, domain.NoMatch(it.input, "")
	}

	aggregated, err := domain.Aggregate(ctx, all, s.index)
	if err != nil {
		return domain.GeocodeResult{}, err
	}

	return domain.GeocodeResult{
		Input:         it.input,
		MatchedPlaces: toMatched(aggregated, opts),
	}, nil
}

// resolveDirectional finishes a directional item: each token resolves to a
// base region, the grid filter narrows the combined region, and the result
// aggregates. Degenerate base geometry falls back to name-only matching on
// the base tokens.
func (s *Service) resolveDirectional(ctx context.Context, it *item, opts domain.Options, batchContext []orb.Point) (domain.GeocodeResult, error) {
	var base []domain.Place
	var baseCands []domain.Candidate
	var regions []string

	for t, token := range it.parsed.Tokens {
		cands := it.tokenCands[t]
		if len(cands) == 0 {
			oracleCands, err := s.resolver.ResolveOracle(ctx, token, batchContext)
			var resErr *domain.ResolutionError
			if errors.As(err, &resErr) {
				s.logger.Warn("base region unresolved", "input", it.input, "token", token, "reason", resErr.Reason)
				continue
			}
			if err != nil {
				return domain.GeocodeResult{}, err
			}
			cands = oracleCands
		}
		base = append(base, cands[0].Place)
		baseCands = append(baseCands, cands[0])
		regions = append(regions, cands[0].Place.Name)
	}

	if len(base) == 0 {
		return domain.GeocodeResult{}, &domain.ResolutionError{
			Stage:      domain.StageNameResolver,
			Reason:     domain.ReasonNoMatch,
			Input:      it.input,
			Suggestion: s.resolver.Suggestion(ctx, it.parsed.Tokens[0]),
		}
	}

	cands, err := s.grid.Filter(ctx, it.parsed.Direction, base)
	if domain.IsEmptyGeometry(err) {
		s.logger.Warn("degenerate base geometry, falling back to name-only matching",
			"input", it.input, "direction", it.parsed.Direction)
		cands = baseCands
	} else if err != nil {
		return domain.GeocodeResult{}, err
	}

	if len(cands) == 0 {
		return domain.GeocodeResult{}, &domain.ResolutionError{
			Stage:  domain.StageGridFilter,
			Reason: domain.ReasonNoMatch,
			Input:  it.input,
		}
	}

	aggregated, err := domain.Aggregate(ctx, cands, s.index)
	if err != nil {
		return domain.GeocodeResult{}, err
	}

	return domain.GeocodeResult{
		Input:            it.input,
		MatchedPlaces:    toMatched(aggregated, opts),
		RegionsProcessed: regions,
		Direction:        string(it.parsed.Direction),
	}, nil
}

// itemPoints extracts representative coordinates from an item's first-pass
// candidates: the centroid of each resolved token's best candidate boundary.
func itemPoints(it item) []orb.Point {
	var pts []orb.Point
	for _, cands := range it.tokenCands {
		if len(cands) > 0 && cands[0].Place.HasGeometry() {
			pts = append(pts, geom.Centroid(cands[0].Place.Geometry))
		}
	}
	return pts
}

// contextFor gathers every other item's points; an item never disambiguates
// against itself.
func contextFor(points [][]orb.Point, exclude int) []orb.Point {
	var out []orb.Point
	for i, pts := range points {
		if i != exclude {
			out = append(out, pts...)
		}
	}
	return out
}

func toMatched(cands []domain.Candidate, opts domain.Options) []domain.MatchedPlace {
	out := make([]domain.MatchedPlace, len(cands))
	for i, c := range cands {
		out[i] = domain.ToMatchedPlace(c, opts.IncludeConfidenceScores)
	}
	return out
}

func firstMethod(r domain.GeocodeResult) string {
	if len(r.MatchedPlaces) == 0 {
		return "none"
	}
	return string(r.MatchedPlaces[0].MatchMethod)
}
