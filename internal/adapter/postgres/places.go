// Package postgres implements PlaceIndex over a Postgres/PostGIS places
// table. Fuzzy matching is delegated to pg_trgm's similarity() with its GIN
// index; containment and intersection run as ST_Contains / ST_Intersects so
// the database's spatial index does the narrowing.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/disasterwatch/geocoder/internal/domain"
)

const placeColumns = `id, name, parent_id, COALESCE(parent_name, ''), hierarchy_level, ST_AsGeoJSON(polygon)`

// Store is a Postgres-backed PlaceIndex.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) FindByExactName(ctx context.Context, name string) ([]domain.Place, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+placeColumns+` FROM places WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return nil, fmt.Errorf("exact name query: %w", err)
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func (s *Store) FindByFuzzyName(ctx context.Context, name string, threshold float64) ([]domain.FuzzyMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+placeColumns+`, similarity(name, $1) AS score
		 FROM places
		 WHERE similarity(name, $1) >= $2
		 ORDER BY score DESC, name ASC`, name, threshold)
	if err != nil {
		return nil, fmt.Errorf("fuzzy name query: %w", err)
	}
	defer rows.Close()

	var out []domain.FuzzyMatch
	for rows.Next() {
		var m domain.FuzzyMatch
		var parentID sql.NullString
		var geomJSON sql.NullString
		if err := rows.Scan(&m.Place.ID, &m.Place.Name, &parentID, &m.Place.ParentName,
			&m.Place.Level, &geomJSON, &m.Score); err != nil {
			return nil, fmt.Errorf("scan fuzzy match: %w", err)
		}
		if err := fillPlace(&m.Place, parentID, geomJSON); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) FindContaining(ctx context.Context, pt orb.Point) (*domain.Place, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+placeColumns+`
		 FROM places
		 WHERE polygon IS NOT NULL
		   AND ST_Contains(polygon, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		 ORDER BY hierarchy_level DESC, ST_Area(polygon) ASC
		 LIMIT 1`, pt[0], pt[1])

	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("containment query: %w", err)
	}
	return p, nil
}

func (s *Store) FindIntersecting(ctx context.Context, poly orb.Polygon) ([]domain.Place, error) {
	raw, err := geojson.NewGeometry(poly).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode query polygon: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+placeColumns+`
		 FROM places
		 WHERE polygon IS NOT NULL
		   AND ST_Intersects(polygon, ST_SetSRID(ST_GeomFromGeoJSON($1), 4326))`, string(raw))
	if err != nil {
		return nil, fmt.Errorf("intersection query: %w", err)
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func (s *Store) Children(ctx context.Context, parentID uuid.UUID, atLevel int) ([]domain.Place, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+placeColumns+` FROM places WHERE parent_id = $1 AND hierarchy_level = $2`,
		parentID, atLevel)
	if err != nil {
		return nil, fmt.Errorf("children query: %w", err)
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Place, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+placeColumns+` FROM places WHERE id = $1`, id)

	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(r rowScanner) (*domain.Place, error) {
	var p domain.Place
	var parentID sql.NullString
	var geomJSON sql.NullString
	if err := r.Scan(&p.ID, &p.Name, &parentID, &p.ParentName, &p.Level, &geomJSON); err != nil {
		return nil, err
	}
	if err := fillPlace(&p, parentID, geomJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPlaces(rows *sql.Rows) ([]domain.Place, error) {
	var out []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func fillPlace(p *domain.Place, parentID, geomJSON sql.NullString) error {
	if parentID.Valid {
		id, err := uuid.Parse(parentID.String)
		if err != nil {
			return fmt.Errorf("place %q: bad parent_id: %w", p.Name, err)
		}
		p.ParentID = &id
	}
	if !geomJSON.Valid || geomJSON.String == "" {
		return nil
	}

	g, err := geojson.UnmarshalGeometry([]byte(geomJSON.String))
	if err != nil {
		return fmt.Errorf("place %q: bad geometry: %w", p.Name, err)
	}
	switch geo := g.Geometry().(type) {
	case orb.Polygon:
		p.Geometry = orb.MultiPolygon{geo}
	case orb.MultiPolygon:
		p.Geometry = geo
	default:
		return fmt.Errorf("place %q: unsupported geometry %T", p.Name, geo)
	}
	return nil
}
