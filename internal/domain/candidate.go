package domain

import (
	"sort"

	"github.com/google/uuid"
)

// MatchMethod records how a candidate place was resolved.
type MatchMethod string

const (
	MatchExactName     MatchMethod = "exact_name"
	MatchFuzzyName     MatchMethod = "fuzzy_name"
	MatchPointInPoly   MatchMethod = "point_in_polygon"
	MatchDirectional   MatchMethod = "directional_intersection"
)

// methodRank orders match methods by trustworthiness, used when deduplicating
// candidates that matched the same place through different routes.
func methodRank(m MatchMethod) int {
	switch m {
	case MatchExactName:
		return 3
	case MatchFuzzyName:
		return 2
	case MatchPointInPoly:
		return 1
	default:
		return 0
	}
}

// Candidate is one matched place plus how it was matched. Confidence is nil
// for boolean matches (directional intersection) and for point-in-polygon
// matches without a provider quality signal.
type Candidate struct {
	Place      Place
	Method     MatchMethod
	Confidence *float64
}

// Conf builds a confidence pointer.
func Conf(v float64) *float64 { return &v }

// DedupeCandidates removes duplicate places from a candidate set, keeping
// for each place the candidate with the higher confidence, then the more
// trusted match method. Input order is preserved for the survivors.
func DedupeCandidates(cands []Candidate) []Candidate {
	best := make(map[uuid.UUID]int, len(cands))
	for i, c := range cands {
		j, seen := best[c.Place.ID]
		if !seen || better(c, cands[j]) {
			best[c.Place.ID] = i
		}
	}

	keep := make([]int, 0, len(best))
	for _, i := range best {
		keep = append(keep, i)
	}
	sort.Ints(keep)

	out := make([]Candidate, 0, len(keep))
	for _, i := range keep {
		out = append(out, cands[i])
	}
	return out
}

func better(a, b Candidate) bool {
	ac, bc := confOrZero(a), confOrZero(b)
	if ac != bc {
		return ac > bc
	}
	return methodRank(a.Method) > methodRank(b.Method)
}

func confOrZero(c Candidate) float64 {
	if c.Confidence == nil {
		return 0
	}
	return *c.Confidence
}

// Options control per-request resolution behavior.
type Options struct {
	// PreferLowerAdminLevels breaks fuzzy-match score ties toward more
	// specific places (higher level numbers). When false, broader places win.
	PreferLowerAdminLevels bool

	// IncludeConfidenceScores populates confidence fields in the response.
	IncludeConfidenceScores bool
}

// DefaultOptions mirror the API defaults.
func DefaultOptions() Options {
	return Options{PreferLowerAdminLevels: true, IncludeConfidenceScores: false}
}

// MatchedPlace is the response form of a candidate.
type MatchedPlace struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	HierarchyLevel int         `json:"hierarchy_level"`
	MatchMethod    MatchMethod `json:"match_method"`
	Confidence     *float64    `json:"confidence,omitempty"`
}

// GeocodeResult is the outcome for one input string that resolved.
type GeocodeResult struct {
	Input            string         `json:"input"`
	MatchedPlaces    []MatchedPlace `json:"matched_places"`
	RegionsProcessed []string       `json:"regions_processed,omitempty"`
	Direction        string         `json:"direction,omitempty"`
}

// GeocodeError is the outcome for one input string that failed. Suggestion
// carries the closest fuzzy near-miss when one exists ("did you mean").
type GeocodeError struct {
	Input      string `json:"input"`
	Reason     string `json:"reason"`
	Stage      string `json:"stage"`
	Suggestion string `json:"suggestion,omitempty"`
}

// GeocodeResponse is the full batch outcome. Every input appears in exactly
// one of Results or Errors, and Results preserves input order.
type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
	Errors  []GeocodeError  `json:"errors"`
}

// ToMatchedPlace converts a candidate for the response, stripping the
// confidence score unless the request asked for it.
func ToMatchedPlace(c Candidate, includeConfidence bool) MatchedPlace {
	mp := MatchedPlace{
		ID:             c.Place.ID,
		Name:           c.Place.Name,
		HierarchyLevel: c.Place.Level,
		MatchMethod:    c.Method,
	}
	if includeConfidence && c.Confidence != nil {
		mp.Confidence = c.Confidence
	}
	return mp
}
