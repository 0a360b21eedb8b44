// Package domain models Pakistan's administrative-boundary hierarchy and the
// resolution of free-text location references against it.
//
// # Places
//
// The places dataset is a four-level hierarchy:
//
//	0 country   → Pakistan (single root)
//	1 province  → e.g. Sindh, Balochistan, Khyber Pakhtunkhwa
//	2 district  → e.g. Karachi, Quetta
//	3 tehsil    → sub-district units
//
// Every place except the root carries a parent_id pointing one level up.
// Boundary polygons are WGS-84 lon/lat multipolygons; a place may lack
// geometry entirely (boundary data is incomplete for some tehsils), which
// excludes it from spatial queries but not from name matching. Places are
// read-only here; they are owned by the boundary data loader.
//
// # Location strings
//
// Inputs come from scraped disaster bulletins and follow a loose grammar:
//
//	"<direction?> <place> (and|or|,) <place> ..."
//	e.g. "Central Sindh and Balochistan", "North-Eastern KPK", "Islamabad"
//
// The direction vocabulary is closed: North, South, East, West, Central and
// the four compound diagonals. "Northern" normalizes to North, "middle" to
// Central, and compound forms accept space or hyphen separators. Anything
// that merely resembles a direction word (misspellings included) is treated
// as part of the place name: a false directional parse selects the wrong
// grid cells, which is a far worse failure than a fuzzy name lookup.
//
// # Match methods
//
// Each resolved place records how it matched:
//
//	exact_name               case-insensitive equality, confidence 1.0
//	fuzzy_name               similarity ≥ threshold, confidence = score
//	point_in_polygon         external oracle coordinate contained in boundary
//	directional_intersection boundary intersects a directional grid selection
//
// Confidence is a match-quality score, not a probability. Directional
// intersection is a boolean membership test and carries no score.
package domain
