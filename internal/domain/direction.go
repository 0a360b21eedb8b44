package domain

import "regexp"

// Direction is a normalized directional qualifier from the closed vocabulary.
// The zero value means no qualifier was present.
type Direction string

const (
	DirNone      Direction = ""
	DirNorth     Direction = "North"
	DirSouth     Direction = "South"
	DirEast      Direction = "East"
	DirWest      Direction = "West"
	DirCentral   Direction = "Central"
	DirNorthEast Direction = "North-Eastern"
	DirNorthWest Direction = "North-Western"
	DirSouthEast Direction = "South-Eastern"
	DirSouthWest Direction = "South-Western"
)

// directionPatterns map vocabulary variants to their canonical direction.
// Order matters: compound directions are checked before simple ones so that
// "North-Eastern KPK" does not half-match as North.
var directionPatterns = []struct {
	dir Direction
	re  *regexp.Regexp
}{
	{DirNorthEast, regexp.MustCompile(`(?i)\b(north[\s-]?east(?:ern)?)\b`)},
	{DirNorthWest, regexp.MustCompile(`(?i)\b(north[\s-]?west(?:ern)?)\b`)},
	{DirSouthEast, regexp.MustCompile(`(?i)\b(south[\s-]?east(?:ern)?)\b`)},
	{DirSouthWest, regexp.MustCompile(`(?i)\b(south[\s-]?west(?:ern)?)\b`)},
	{DirNorth, regexp.MustCompile(`(?i)\b(north(?:ern)?)\b`)},
	{DirSouth, regexp.MustCompile(`(?i)\b(south(?:ern)?)\b`)},
	{DirEast, regexp.MustCompile(`(?i)\b(east(?:ern)?)\b`)},
	{DirWest, regexp.MustCompile(`(?i)\b(west(?:ern)?)\b`)},
	{DirCentral, regexp.MustCompile(`(?i)\b(central|middle)\b`)},
}

// vocabulary holds every spelled form accepted by the parser, used by strict
// mode to measure how close an unrecognized token came to a real direction.
var vocabulary = []string{
	"north", "northern", "south", "southern", "east", "eastern",
	"west", "western", "central", "middle",
	"north-east", "north-eastern", "northeast", "northeastern",
	"north-west", "north-western", "northwest", "northwestern",
	"south-east", "south-eastern", "southeast", "southeastern",
	"south-west", "south-western", "southwest", "southwestern",
}
