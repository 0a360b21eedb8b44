// Command placecheck performs integrity checks over a places GeoJSON
// snapshot before it is served: hierarchy invariants (single root, parent
// references one level up), name presence and duplicates, and boundary
// geometry sanity (closed rings, non-degenerate area, plausible extent).
//
// Usage:
//
//	go run ./cmd/placecheck -places data/places.geojson
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/geom"
	"github.com/disasterwatch/geocoder/internal/index"
)

// Pakistan's bounding region with slack; boundaries far outside it indicate
// swapped lon/lat or a wrong dataset.
const (
	minLon, maxLon = 60.0, 78.0
	minLat, maxLat = 23.0, 38.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	placesPath := flag.String("places", "", "path to places GeoJSON snapshot")
	flag.Parse()

	if *placesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*placesPath); code != 0 {
		os.Exit(code)
	}
}

func run(placesPath string) int {
	places, err := index.LoadGeoJSON(placesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load places: %v\n", err)
		return 1
	}
	fmt.Printf("loaded %d places from %s\n\n", len(places), placesPath)

	phases := []*phase{
		checkHierarchy(places),
		checkNames(places),
		checkGeometry(places),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d phases failed\n", failed, len(phases))
		return 1
	}
	fmt.Printf("\nall %d phases passed\n", len(phases))
	return 0
}

func checkHierarchy(places []domain.Place) *phase {
	p := &phase{name: "hierarchy"}

	byID := make(map[uuid.UUID]domain.Place, len(places))
	for _, pl := range places {
		if _, dup := byID[pl.ID]; dup {
			p.errorf("duplicate id %s (%q)", pl.ID, pl.Name)
		}
		byID[pl.ID] = pl
	}

	roots := 0
	for _, pl := range places {
		if pl.ParentID == nil {
			roots++
			if pl.Level != domain.LevelCountry {
				p.errorf("%q has no parent but level %d", pl.Name, pl.Level)
			}
			continue
		}
		parent, ok := byID[*pl.ParentID]
		if !ok {
			p.errorf("%q references missing parent %s", pl.Name, *pl.ParentID)
			continue
		}
		if parent.Level != pl.Level-1 {
			p.errorf("%q (level %d) has parent %q at level %d", pl.Name, pl.Level, parent.Name, parent.Level)
		}
		if pl.ParentName != "" && pl.ParentName != parent.Name {
			p.errorf("%q carries parent_name %q but parent is %q", pl.Name, pl.ParentName, parent.Name)
		}
	}
	if roots != 1 {
		p.errorf("expected exactly 1 root place, found %d", roots)
	}
	return p
}

func checkNames(places []domain.Place) *phase {
	p := &phase{name: "names"}

	seen := make(map[string][]string)
	for _, pl := range places {
		if pl.Name == "" {
			p.errorf("place %s has an empty name", pl.ID)
			continue
		}
		key := fmt.Sprintf("%s/%d", pl.Name, pl.Level)
		seen[key] = append(seen[key], pl.ID.String())
	}
	for key, ids := range seen {
		if len(ids) > 1 {
			p.errorf("name/level %s shared by %d places; exact lookups will be ambiguous", key, len(ids))
		}
	}
	return p
}

func checkGeometry(places []domain.Place) *phase {
	p := &phase{name: "geometry"}

	withGeometry := 0
	for _, pl := range places {
		if !pl.HasGeometry() {
			continue
		}
		withGeometry++

		for _, poly := range pl.Geometry {
			for _, ring := range poly {
				if len(ring) < 4 {
					p.errorf("%q has a ring with %d points", pl.Name, len(ring))
				} else if ring[0] != ring[len(ring)-1] {
					p.errorf("%q has an unclosed ring", pl.Name)
				}
			}
		}

		if geom.Area(pl.Geometry) <= 0 {
			p.errorf("%q has zero or negative boundary area", pl.Name)
		}

		b := pl.Geometry.Bound()
		if b.Min[0] < minLon || b.Max[0] > maxLon || b.Min[1] < minLat || b.Max[1] > maxLat {
			p.errorf("%q extends outside the expected region: bound %v", pl.Name, b)
		}
	}

	if withGeometry == 0 {
		p.errorf("no place carries boundary geometry; directional queries would always fail")
	}
	return p
}
