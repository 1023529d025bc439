// Package store is the spatial query layer: bounded, read-only PostGIS
// queries that surface candidate stops, patterns and transfer pairs for
// the planner. All distances are geography-cast meters (SRID 4326) and
// inactive lines are never returned.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
)

// Store runs spatial queries against the transit schema
type Store struct {
	db *pgxpool.Pool
}

// New creates a store over an existing connection pool
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// NearbyStops returns active stops within radiusM meters of the point,
// closest first.
func (s *Store) NearbyStops(ctx context.Context, lat, lon, radiusM float64, limit int) ([]models.NearbyStop, error) {
	query := `
		SELECT p.id_parada, p.nombre_parada, p.latitud, p.longitud,
		       ST_Distance(
		           p.geom::geography,
		           ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		       ) AS distance
		FROM transporte.paradas p
		WHERE ST_DWithin(
		    p.geom::geography,
		    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
		    $3
		)
		AND p.activa = true
		ORDER BY distance ASC
		LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, lon, lat, radiusM, limit)
	if err != nil {
		return nil, fmt.Errorf("nearby stops query: %w", err)
	}
	defer rows.Close()

	var stops []models.NearbyStop
	for rows.Next() {
		var st models.NearbyStop
		if err := rows.Scan(&st.ID, &st.Name, &st.Lat, &st.Lon, &st.DistanceM); err != nil {
			continue
		}
		st.Active = true
		stops = append(stops, st)
	}

	return stops, rows.Err()
}

// RoutesThroughBoth returns patterns whose polyline passes within radiusM
// of both the origin and the destination, ordered by combined approach
// distance then route length.
func (s *Store) RoutesThroughBoth(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM float64) ([]models.GeometryCandidate, error) {
	query := `
		WITH near_origin AS (
			SELECT p.id AS pattern_id,
			       p.id_linea,
			       p.sentido,
			       ST_Distance(
			           p.geometry::geography,
			           ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			       ) AS dist_from_origin,
			       ST_Length(p.geometry::geography) AS route_length
			FROM transporte.patterns p
			WHERE p.geometry IS NOT NULL
			AND ST_DWithin(
			    p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			    $5
			)
		),
		near_dest AS (
			SELECT p.id AS pattern_id,
			       ST_Distance(
			           p.geometry::geography,
			           ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography
			       ) AS dist_to_dest
			FROM transporte.patterns p
			WHERE p.geometry IS NOT NULL
			AND ST_DWithin(
			    p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
			    $5
			)
		)
		SELECT no.pattern_id,
		       l.nombre,
		       COALESCE(l.short_name, l.nombre),
		       COALESCE(l.long_name, l.nombre),
		       COALESCE(l.color, '0088FF'),
		       COALESCE(l.text_color, 'FFFFFF'),
		       no.sentido,
		       no.dist_from_origin,
		       nd.dist_to_dest,
		       no.route_length,
		       (no.dist_from_origin + nd.dist_to_dest) AS total_walk
		FROM near_origin no
		JOIN near_dest nd ON no.pattern_id = nd.pattern_id
		JOIN transporte.lineas l ON no.id_linea = l.id_linea
		WHERE l.activa = true
		ORDER BY total_walk ASC, no.route_length ASC
		LIMIT 200
	`

	rows, err := s.db.Query(ctx, query, fromLon, fromLat, toLon, toLat, radiusM)
	if err != nil {
		return nil, fmt.Errorf("routes through both query: %w", err)
	}
	defer rows.Close()

	var candidates []models.GeometryCandidate
	for rows.Next() {
		var c models.GeometryCandidate
		if err := rows.Scan(&c.Line.PatternID, &c.Line.Name, &c.Line.ShortName, &c.Line.LongName,
			&c.Line.Color, &c.Line.TextColor, &c.Sense,
			&c.DistFromOrigin, &c.DistToDest, &c.RouteLengthM, &c.TotalWalkM); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// DirectStopRoutes returns patterns serving one of the origin stops at a
// sequence strictly before one of the destination stops, shortest span
// first, de-duplicated by pattern.
func (s *Store) DirectStopRoutes(ctx context.Context, originStopIDs, destStopIDs []int64) ([]models.StopCandidate, error) {
	if len(originStopIDs) == 0 || len(destStopIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT p.id,
		       l.nombre,
		       COALESCE(l.short_name, l.nombre),
		       COALESCE(l.long_name, l.nombre),
		       COALESCE(l.color, '0088FF'),
		       COALESCE(l.text_color, 'FFFFFF'),
		       ps1.id_parada,
		       ps2.id_parada,
		       ps1.sequence,
		       ps2.sequence
		FROM transporte.patterns p
		JOIN transporte.lineas l ON p.id_linea = l.id_linea
		JOIN transporte.pattern_stops ps1 ON p.id = ps1.pattern_id
		JOIN transporte.pattern_stops ps2 ON p.id = ps2.pattern_id
		WHERE ps1.id_parada = ANY($1)
		AND ps2.id_parada = ANY($2)
		AND ps1.sequence < ps2.sequence
		AND l.activa = true
		ORDER BY (ps2.sequence - ps1.sequence) ASC
		LIMIT 50
	`

	rows, err := s.db.Query(ctx, query, originStopIDs, destStopIDs)
	if err != nil {
		return nil, fmt.Errorf("direct stop routes query: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var candidates []models.StopCandidate
	for rows.Next() {
		var c models.StopCandidate
		if err := rows.Scan(&c.Line.PatternID, &c.Line.Name, &c.Line.ShortName, &c.Line.LongName,
			&c.Line.Color, &c.Line.TextColor,
			&c.OriginStopID, &c.DestStopID, &c.SeqStart, &c.SeqEnd); err != nil {
			continue
		}
		if seen[c.Line.PatternID] {
			continue
		}
		seen[c.Line.PatternID] = true
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// TransferCandidates returns pairs of patterns from different lines where
// the first passes near the origin, the second near the destination, and
// the two polylines approach within interPatternM of each other. The
// transfer point is the closest point on the first polyline to the second.
func (s *Store) TransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.TransferCandidate, error) {
	query := `
		WITH near_origin AS (
			SELECT DISTINCT p.id AS pattern1_id,
			       p.id_linea AS linea1_id,
			       l1.nombre AS nombre1,
			       COALESCE(l1.short_name, l1.nombre) AS short_name1,
			       COALESCE(l1.long_name, l1.nombre) AS long_name1,
			       COALESCE(l1.color, '0088FF') AS color1,
			       COALESCE(l1.text_color, 'FFFFFF') AS text_color1,
			       ST_Distance(
			           p.geometry::geography,
			           ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			       ) AS dist_from_origin
			FROM transporte.patterns p
			JOIN transporte.lineas l1 ON p.id_linea = l1.id_linea
			WHERE p.geometry IS NOT NULL
			AND l1.activa = true
			AND ST_DWithin(
			    p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			    $5
			)
		),
		near_dest AS (
			SELECT DISTINCT p.id AS pattern2_id,
			       p.id_linea AS linea2_id,
			       l2.nombre AS nombre2,
			       COALESCE(l2.short_name, l2.nombre) AS short_name2,
			       COALESCE(l2.long_name, l2.nombre) AS long_name2,
			       COALESCE(l2.color, 'FF5722') AS color2,
			       COALESCE(l2.text_color, 'FFFFFF') AS text_color2,
			       ST_Distance(
			           p.geometry::geography,
			           ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography
			       ) AS dist_to_dest
			FROM transporte.patterns p
			JOIN transporte.lineas l2 ON p.id_linea = l2.id_linea
			WHERE p.geometry IS NOT NULL
			AND l2.activa = true
			AND ST_DWithin(
			    p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
			    $5
			)
		),
		crossing AS (
			SELECT no.pattern1_id, no.nombre1, no.short_name1, no.long_name1,
			       no.color1, no.text_color1, no.dist_from_origin,
			       nd.pattern2_id, nd.nombre2, nd.short_name2, nd.long_name2,
			       nd.color2, nd.text_color2, nd.dist_to_dest,
			       ST_Distance(
			           p1.geometry::geography,
			           p2.geometry::geography
			       ) AS routes_distance,
			       ST_ClosestPoint(p1.geometry, p2.geometry) AS transfer_point
			FROM near_origin no
			JOIN near_dest nd ON no.linea1_id != nd.linea2_id
			JOIN transporte.patterns p1 ON no.pattern1_id = p1.id
			JOIN transporte.patterns p2 ON nd.pattern2_id = p2.id
			WHERE ST_DWithin(
			    p1.geometry::geography,
			    p2.geometry::geography,
			    $6
			)
		)
		SELECT c.pattern1_id, c.nombre1, c.short_name1, c.long_name1,
		       c.color1, c.text_color1, c.dist_from_origin,
		       c.pattern2_id, c.nombre2, c.short_name2, c.long_name2,
		       c.color2, c.text_color2, c.dist_to_dest,
		       c.routes_distance,
		       ST_Y(c.transfer_point) AS transfer_lat,
		       ST_X(c.transfer_point) AS transfer_lon,
		       (c.dist_from_origin + c.dist_to_dest + c.routes_distance) AS total_walk
		FROM crossing c
		ORDER BY total_walk ASC
		LIMIT 100
	`

	rows, err := s.db.Query(ctx, query, fromLon, fromLat, toLon, toLat, radiusM, interPatternM)
	if err != nil {
		return nil, fmt.Errorf("transfer candidates query: %w", err)
	}
	defer rows.Close()

	var candidates []models.TransferCandidate
	for rows.Next() {
		var c models.TransferCandidate
		if err := rows.Scan(
			&c.First.PatternID, &c.First.Name, &c.First.ShortName, &c.First.LongName,
			&c.First.Color, &c.First.TextColor, &c.DistFromOrigin,
			&c.Second.PatternID, &c.Second.Name, &c.Second.ShortName, &c.Second.LongName,
			&c.Second.Color, &c.Second.TextColor, &c.DistToDest,
			&c.RoutesDistM, &c.TransferLat, &c.TransferLon, &c.TotalWalkEstM,
		); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// TripleTransferCandidates returns chains of three patterns of pairwise
// distinct lines linked by closest-point transfers: the first near the
// origin, the third near the destination, the middle bridging both.
func (s *Store) TripleTransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.TripleTransferCandidate, error) {
	query := `
		WITH near_origin AS (
			SELECT DISTINCT p.id AS pattern1_id, p.id_linea AS linea1_id,
			       l1.nombre AS nombre1,
			       COALESCE(l1.short_name, l1.nombre) AS short_name1,
			       COALESCE(l1.long_name, l1.nombre) AS long_name1,
			       COALESCE(l1.color, '0088FF') AS color1,
			       COALESCE(l1.text_color, 'FFFFFF') AS text_color1
			FROM transporte.patterns p
			JOIN transporte.lineas l1 ON p.id_linea = l1.id_linea
			WHERE p.geometry IS NOT NULL AND l1.activa = true
			AND ST_DWithin(p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $5)
		),
		near_dest AS (
			SELECT DISTINCT p.id AS pattern3_id, p.id_linea AS linea3_id,
			       l3.nombre AS nombre3,
			       COALESCE(l3.short_name, l3.nombre) AS short_name3,
			       COALESCE(l3.long_name, l3.nombre) AS long_name3,
			       COALESCE(l3.color, '4CAF50') AS color3,
			       COALESCE(l3.text_color, 'FFFFFF') AS text_color3
			FROM transporte.patterns p
			JOIN transporte.lineas l3 ON p.id_linea = l3.id_linea
			WHERE p.geometry IS NOT NULL AND l3.activa = true
			AND ST_DWithin(p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5)
		),
		middle AS (
			SELECT DISTINCT p.id AS pattern2_id, p.id_linea AS linea2_id,
			       l2.nombre AS nombre2,
			       COALESCE(l2.short_name, l2.nombre) AS short_name2,
			       COALESCE(l2.long_name, l2.nombre) AS long_name2,
			       COALESCE(l2.color, 'FF5722') AS color2,
			       COALESCE(l2.text_color, 'FFFFFF') AS text_color2
			FROM transporte.patterns p
			JOIN transporte.lineas l2 ON p.id_linea = l2.id_linea
			WHERE p.geometry IS NOT NULL AND l2.activa = true
		)
		SELECT no.pattern1_id, no.nombre1, no.short_name1, no.long_name1, no.color1, no.text_color1,
		       m.pattern2_id, m.nombre2, m.short_name2, m.long_name2, m.color2, m.text_color2,
		       nd.pattern3_id, nd.nombre3, nd.short_name3, nd.long_name3, nd.color3, nd.text_color3,
		       ST_Y(ST_ClosestPoint(p1.geometry, p2.geometry)) AS transfer1_lat,
		       ST_X(ST_ClosestPoint(p1.geometry, p2.geometry)) AS transfer1_lon,
		       ST_Y(ST_ClosestPoint(p2.geometry, p3.geometry)) AS transfer2_lat,
		       ST_X(ST_ClosestPoint(p2.geometry, p3.geometry)) AS transfer2_lon
		FROM near_origin no
		JOIN middle m ON no.linea1_id != m.linea2_id
		JOIN near_dest nd ON m.linea2_id != nd.linea3_id AND no.linea1_id != nd.linea3_id
		JOIN transporte.patterns p1 ON no.pattern1_id = p1.id
		JOIN transporte.patterns p2 ON m.pattern2_id = p2.id
		JOIN transporte.patterns p3 ON nd.pattern3_id = p3.id
		WHERE ST_DWithin(p1.geometry::geography, p2.geometry::geography, $6)
		AND ST_DWithin(p2.geometry::geography, p3.geometry::geography, $6)
		LIMIT 50
	`

	rows, err := s.db.Query(ctx, query, fromLon, fromLat, toLon, toLat, radiusM, interPatternM)
	if err != nil {
		return nil, fmt.Errorf("triple transfer candidates query: %w", err)
	}
	defer rows.Close()

	var candidates []models.TripleTransferCandidate
	for rows.Next() {
		var c models.TripleTransferCandidate
		if err := rows.Scan(
			&c.First.PatternID, &c.First.Name, &c.First.ShortName, &c.First.LongName, &c.First.Color, &c.First.TextColor,
			&c.Second.PatternID, &c.Second.Name, &c.Second.ShortName, &c.Second.LongName, &c.Second.Color, &c.Second.TextColor,
			&c.Third.PatternID, &c.Third.Name, &c.Third.ShortName, &c.Third.LongName, &c.Third.Color, &c.Third.TextColor,
			&c.Transfer1Lat, &c.Transfer1Lon, &c.Transfer2Lat, &c.Transfer2Lon,
		); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// QuadTransferCandidates returns chains of four patterns of pairwise
// distinct lines linked by three closest-point transfers. The deepest and
// most expensive search, kept to a small result set.
func (s *Store) QuadTransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.QuadTransferCandidate, error) {
	query := `
		WITH near_origin AS (
			SELECT DISTINCT p.id AS pattern1_id, p.id_linea AS linea1_id,
			       l1.nombre AS nombre1,
			       COALESCE(l1.short_name, l1.nombre) AS short_name1,
			       COALESCE(l1.long_name, l1.nombre) AS long_name1,
			       COALESCE(l1.color, '0088FF') AS color1,
			       COALESCE(l1.text_color, 'FFFFFF') AS text_color1
			FROM transporte.patterns p
			JOIN transporte.lineas l1 ON p.id_linea = l1.id_linea
			WHERE p.geometry IS NOT NULL AND l1.activa = true
			AND ST_DWithin(p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $5)
		),
		near_dest AS (
			SELECT DISTINCT p.id AS pattern4_id, p.id_linea AS linea4_id,
			       l4.nombre AS nombre4,
			       COALESCE(l4.short_name, l4.nombre) AS short_name4,
			       COALESCE(l4.long_name, l4.nombre) AS long_name4,
			       COALESCE(l4.color, '9C27B0') AS color4,
			       COALESCE(l4.text_color, 'FFFFFF') AS text_color4
			FROM transporte.patterns p
			JOIN transporte.lineas l4 ON p.id_linea = l4.id_linea
			WHERE p.geometry IS NOT NULL AND l4.activa = true
			AND ST_DWithin(p.geometry::geography,
			    ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5)
		),
		middle AS (
			SELECT DISTINCT p.id AS pattern_id, p.id_linea AS linea_id,
			       l.nombre,
			       COALESCE(l.short_name, l.nombre) AS short_name,
			       COALESCE(l.long_name, l.nombre) AS long_name,
			       COALESCE(l.color, 'FF5722') AS color,
			       COALESCE(l.text_color, 'FFFFFF') AS text_color
			FROM transporte.patterns p
			JOIN transporte.lineas l ON p.id_linea = l.id_linea
			WHERE p.geometry IS NOT NULL AND l.activa = true
		)
		SELECT no.pattern1_id, no.nombre1, no.short_name1, no.long_name1, no.color1, no.text_color1,
		       m2.pattern_id, m2.nombre, m2.short_name, m2.long_name, m2.color, m2.text_color,
		       m3.pattern_id, m3.nombre, m3.short_name, m3.long_name, m3.color, m3.text_color,
		       nd.pattern4_id, nd.nombre4, nd.short_name4, nd.long_name4, nd.color4, nd.text_color4,
		       ST_Y(ST_ClosestPoint(p1.geometry, p2.geometry)) AS transfer1_lat,
		       ST_X(ST_ClosestPoint(p1.geometry, p2.geometry)) AS transfer1_lon,
		       ST_Y(ST_ClosestPoint(p2.geometry, p3.geometry)) AS transfer2_lat,
		       ST_X(ST_ClosestPoint(p2.geometry, p3.geometry)) AS transfer2_lon,
		       ST_Y(ST_ClosestPoint(p3.geometry, p4.geometry)) AS transfer3_lat,
		       ST_X(ST_ClosestPoint(p3.geometry, p4.geometry)) AS transfer3_lon
		FROM near_origin no
		JOIN middle m2 ON no.linea1_id != m2.linea_id
		JOIN middle m3 ON m2.linea_id != m3.linea_id AND no.linea1_id != m3.linea_id
		JOIN near_dest nd ON m3.linea_id != nd.linea4_id
		    AND m2.linea_id != nd.linea4_id AND no.linea1_id != nd.linea4_id
		JOIN transporte.patterns p1 ON no.pattern1_id = p1.id
		JOIN transporte.patterns p2 ON m2.pattern_id = p2.id
		JOIN transporte.patterns p3 ON m3.pattern_id = p3.id
		JOIN transporte.patterns p4 ON nd.pattern4_id = p4.id
		WHERE ST_DWithin(p1.geometry::geography, p2.geometry::geography, $6)
		AND ST_DWithin(p2.geometry::geography, p3.geometry::geography, $6)
		AND ST_DWithin(p3.geometry::geography, p4.geometry::geography, $6)
		LIMIT 20
	`

	rows, err := s.db.Query(ctx, query, fromLon, fromLat, toLon, toLat, radiusM, interPatternM)
	if err != nil {
		return nil, fmt.Errorf("quad transfer candidates query: %w", err)
	}
	defer rows.Close()

	var candidates []models.QuadTransferCandidate
	for rows.Next() {
		var c models.QuadTransferCandidate
		if err := rows.Scan(
			&c.First.PatternID, &c.First.Name, &c.First.ShortName, &c.First.LongName, &c.First.Color, &c.First.TextColor,
			&c.Second.PatternID, &c.Second.Name, &c.Second.ShortName, &c.Second.LongName, &c.Second.Color, &c.Second.TextColor,
			&c.Third.PatternID, &c.Third.Name, &c.Third.ShortName, &c.Third.LongName, &c.Third.Color, &c.Third.TextColor,
			&c.Fourth.PatternID, &c.Fourth.Name, &c.Fourth.ShortName, &c.Fourth.LongName, &c.Fourth.Color, &c.Fourth.TextColor,
			&c.Transfer1Lat, &c.Transfer1Lon, &c.Transfer2Lat, &c.Transfer2Lon, &c.Transfer3Lat, &c.Transfer3Lon,
		); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// StopTransferCandidates returns pairs of patterns connected through a
// shared scheduled stop, with the origin boarded before the transfer stop
// on the first pattern and the transfer stop boarded before the
// destination on the second. Best transfer per pattern pair.
func (s *Store) StopTransferCandidates(ctx context.Context, originStopIDs, destStopIDs []int64) ([]models.StopTransferCandidate, error) {
	if len(originStopIDs) == 0 || len(destStopIDs) == 0 {
		return nil, nil
	}

	query := `
		WITH origin_patterns AS (
			SELECT DISTINCT p.id AS pattern_id, ps.id_parada, ps.sequence,
			       l.nombre, COALESCE(l.short_name, l.nombre) AS short_name,
			       COALESCE(l.long_name, l.nombre) AS long_name,
			       COALESCE(l.color, '0088FF') AS color,
			       COALESCE(l.text_color, 'FFFFFF') AS text_color
			FROM transporte.patterns p
			JOIN transporte.lineas l ON p.id_linea = l.id_linea
			JOIN transporte.pattern_stops ps ON p.id = ps.pattern_id
			WHERE ps.id_parada = ANY($1) AND l.activa = true
		),
		dest_patterns AS (
			SELECT DISTINCT p.id AS pattern_id, ps.id_parada, ps.sequence,
			       l.nombre, COALESCE(l.short_name, l.nombre) AS short_name,
			       COALESCE(l.long_name, l.nombre) AS long_name,
			       COALESCE(l.color, 'FF5722') AS color,
			       COALESCE(l.text_color, 'FFFFFF') AS text_color
			FROM transporte.patterns p
			JOIN transporte.lineas l ON p.id_linea = l.id_linea
			JOIN transporte.pattern_stops ps ON p.id = ps.pattern_id
			WHERE ps.id_parada = ANY($2) AND l.activa = true
		),
		connections AS (
			SELECT DISTINCT
			       op.pattern_id AS pattern1_id,
			       op.nombre AS nombre1, op.short_name AS short_name1,
			       op.long_name AS long_name1, op.color AS color1, op.text_color AS text_color1,
			       op.id_parada AS origin_stop, op.sequence AS origin_seq,
			       ps1.id_parada AS transfer_stop, ps1.sequence AS transfer_seq1,
			       dp.pattern_id AS pattern2_id,
			       dp.nombre AS nombre2, dp.short_name AS short_name2,
			       dp.long_name AS long_name2, dp.color AS color2, dp.text_color AS text_color2,
			       ps2.sequence AS transfer_seq2,
			       dp.id_parada AS dest_stop, dp.sequence AS dest_seq
			FROM origin_patterns op
			JOIN transporte.pattern_stops ps1 ON op.pattern_id = ps1.pattern_id
			JOIN transporte.pattern_stops ps2 ON ps1.id_parada = ps2.id_parada
			JOIN dest_patterns dp ON ps2.pattern_id = dp.pattern_id
			WHERE op.pattern_id != dp.pattern_id
			AND op.sequence < ps1.sequence
			AND ps2.sequence < dp.sequence
		)
		SELECT DISTINCT ON (c.pattern1_id, c.pattern2_id)
		       c.pattern1_id, c.nombre1, c.short_name1, c.long_name1, c.color1, c.text_color1,
		       c.pattern2_id, c.nombre2, c.short_name2, c.long_name2, c.color2, c.text_color2,
		       c.origin_stop, c.transfer_stop, c.dest_stop,
		       par.latitud, par.longitud, par.nombre_parada
		FROM connections c
		JOIN transporte.paradas par ON c.transfer_stop = par.id_parada
		ORDER BY c.pattern1_id, c.pattern2_id,
		         (c.transfer_seq1 - c.origin_seq) + (c.dest_seq - c.transfer_seq2)
		LIMIT 60
	`

	rows, err := s.db.Query(ctx, query, originStopIDs, destStopIDs)
	if err != nil {
		return nil, fmt.Errorf("stop transfer candidates query: %w", err)
	}
	defer rows.Close()

	var candidates []models.StopTransferCandidate
	for rows.Next() {
		var c models.StopTransferCandidate
		if err := rows.Scan(
			&c.First.PatternID, &c.First.Name, &c.First.ShortName, &c.First.LongName, &c.First.Color, &c.First.TextColor,
			&c.Second.PatternID, &c.Second.Name, &c.Second.ShortName, &c.Second.LongName, &c.Second.Color, &c.Second.TextColor,
			&c.OriginStopID, &c.TransferStopID, &c.DestStopID,
			&c.TransferLat, &c.TransferLon, &c.TransferName,
		); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// PatternGeometry returns the ordered vertices of a pattern polyline in
// its authored direction.
func (s *Store) PatternGeometry(ctx context.Context, patternID string) ([]geo.LatLng, error) {
	query := `
		SELECT ST_Y((dp).geom) AS lat,
		       ST_X((dp).geom) AS lon
		FROM (
			SELECT ST_DumpPoints(geometry) AS dp
			FROM transporte.patterns
			WHERE id = $1
		) sub
		ORDER BY (dp).path[1]
	`

	rows, err := s.db.Query(ctx, query, patternID)
	if err != nil {
		return nil, fmt.Errorf("pattern geometry query: %w", err)
	}
	defer rows.Close()

	var coords []geo.LatLng
	for rows.Next() {
		var p geo.LatLng
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			continue
		}
		coords = append(coords, p)
	}

	return coords, rows.Err()
}

// StopByID returns a stop or nil when it does not exist
func (s *Store) StopByID(ctx context.Context, id int64) (*models.Stop, error) {
	query := `
		SELECT id_parada, nombre_parada, latitud, longitud, activa
		FROM transporte.paradas
		WHERE id_parada = $1
	`

	var st models.Stop
	err := s.db.QueryRow(ctx, query, id).Scan(&st.ID, &st.Name, &st.Lat, &st.Lon, &st.Active)
	if err != nil {
		return nil, fmt.Errorf("stop %d lookup: %w", id, err)
	}

	return &st, nil
}

// ActiveLines lists active lines with their pattern counts
func (s *Store) ActiveLines(ctx context.Context) ([]models.LineInfo, error) {
	query := `
		SELECT l.id_linea,
		       l.nombre,
		       COALESCE(l.short_name, l.nombre),
		       COALESCE(l.long_name, l.nombre),
		       COALESCE(l.color, '0088FF'),
		       COALESCE(l.modo, 'BUS'),
		       COUNT(p.id) AS patterns
		FROM transporte.lineas l
		LEFT JOIN transporte.patterns p ON p.id_linea = l.id_linea
		WHERE l.activa = true
		GROUP BY l.id_linea, l.nombre, l.short_name, l.long_name, l.color, l.modo
		ORDER BY l.id_linea
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("active lines query: %w", err)
	}
	defer rows.Close()

	var lines []models.LineInfo
	for rows.Next() {
		var li models.LineInfo
		if err := rows.Scan(&li.ID, &li.Name, &li.ShortName, &li.LongName, &li.Color, &li.Mode, &li.Patterns); err != nil {
			continue
		}
		lines = append(lines, li)
	}

	return lines, rows.Err()
}
