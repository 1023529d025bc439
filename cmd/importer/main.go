// Command importer loads a network dump (lines, pattern polylines and
// stops) into the transit schema. The dump is the JSON export produced by
// the route mapping team; existing rows are upserted so re-running an
// import is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/db"
)

// NetworkDump is the on-disk import format
type NetworkDump struct {
	Lines []DumpLine `json:"lines"`
	Stops []DumpStop `json:"stops"`
}

// DumpLine is one micro line with its directional patterns
type DumpLine struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	ShortName string        `json:"short_name"`
	LongName  string        `json:"long_name"`
	Color     string        `json:"color"`
	TextColor string        `json:"text_color"`
	Active    *bool         `json:"active"`
	Patterns  []DumpPattern `json:"patterns"`
}

// DumpPattern is one directional traversal. Coordinates are [lon, lat]
// pairs in route order.
type DumpPattern struct {
	Sense       string      `json:"sense"`
	Coordinates [][]float64 `json:"coordinates"`
	Stops       []DumpSeq   `json:"stops"`
}

// DumpSeq places a stop at a sequence position along a pattern
type DumpSeq struct {
	StopID   int64 `json:"stop_id"`
	Sequence int   `json:"sequence"`
}

// DumpStop is one nominal boarding location
type DumpStop struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Active *bool   `json:"active"`
}

func main() {
	dumpPath := flag.String("network", "", "Path to network dump JSON file (required)")
	deactivateMissing := flag.Bool("deactivate-missing", false, "Deactivate lines absent from the dump")

	flag.Parse()

	if *dumpPath == "" {
		fmt.Println("Usage: importer --network=<path.json> [--deactivate-missing]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	data, err := os.ReadFile(*dumpPath)
	if err != nil {
		log.Fatalf("Failed to read network dump: %v", err)
	}

	var dump NetworkDump
	if err := json.Unmarshal(data, &dump); err != nil {
		log.Fatalf("Failed to parse network dump: %v", err)
	}

	log.Println("Starting network import...")
	log.Printf("Dump: %s (%d lines, %d stops)", *dumpPath, len(dump.Lines), len(dump.Stops))

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := runImport(ctx, pool, &dump, *deactivateMissing); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Println("Import completed successfully!")
}

func runImport(ctx context.Context, pool *pgxpool.Pool, dump *NetworkDump, deactivateMissing bool) error {
	startTime := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Step 1/4: Importing stops...")
	if err := importStops(ctx, tx, dump.Stops); err != nil {
		return fmt.Errorf("failed to import stops: %w", err)
	}

	log.Println("Step 2/4: Importing lines...")
	if err := importLines(ctx, tx, dump.Lines); err != nil {
		return fmt.Errorf("failed to import lines: %w", err)
	}

	log.Println("Step 3/4: Importing patterns...")
	patternCount, err := importPatterns(ctx, tx, dump.Lines)
	if err != nil {
		return fmt.Errorf("failed to import patterns: %w", err)
	}

	if deactivateMissing {
		log.Println("Step 4/4: Deactivating lines absent from the dump...")
		if err := deactivateMissingLines(ctx, tx, dump.Lines); err != nil {
			return fmt.Errorf("failed to deactivate missing lines: %w", err)
		}
	} else {
		log.Println("Step 4/4: Skipping deactivation (use --deactivate-missing to enable)")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Imported %d lines, %d patterns, %d stops in %s",
		len(dump.Lines), patternCount, len(dump.Stops), time.Since(startTime))
	return nil
}

func importStops(ctx context.Context, tx pgx.Tx, stops []DumpStop) error {
	batch := &pgx.Batch{}

	for _, stop := range stops {
		active := stop.Active == nil || *stop.Active

		batch.Queue(`
			INSERT INTO transporte.paradas (id_parada, nombre_parada, latitud, longitud, activa, geom)
			VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($4, $3), 4326))
			ON CONFLICT (id_parada) DO UPDATE
			SET nombre_parada = EXCLUDED.nombre_parada,
			    latitud = EXCLUDED.latitud,
			    longitud = EXCLUDED.longitud,
			    activa = EXCLUDED.activa,
			    geom = EXCLUDED.geom
		`, stop.ID, stop.Name, stop.Lat, stop.Lon, active)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert stop %d: %w", i, err)
		}
	}

	log.Printf("Imported %d stops", len(stops))
	return nil
}

func importLines(ctx context.Context, tx pgx.Tx, lines []DumpLine) error {
	batch := &pgx.Batch{}

	for _, line := range lines {
		active := line.Active == nil || *line.Active

		batch.Queue(`
			INSERT INTO transporte.lineas (id_linea, nombre, short_name, long_name, color, text_color, modo, activa)
			VALUES ($1, $2, $3, $4, $5, $6, 'BUS', $7)
			ON CONFLICT (id_linea) DO UPDATE
			SET nombre = EXCLUDED.nombre,
			    short_name = EXCLUDED.short_name,
			    long_name = EXCLUDED.long_name,
			    color = EXCLUDED.color,
			    text_color = EXCLUDED.text_color,
			    activa = EXCLUDED.activa
		`, line.ID, line.Name, line.ShortName, line.LongName, line.Color, line.TextColor, active)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i, err)
		}
	}

	log.Printf("Imported %d lines", len(lines))
	return nil
}

func importPatterns(ctx context.Context, tx pgx.Tx, lines []DumpLine) (int, error) {
	count := 0

	for _, line := range lines {
		senseSeen := make(map[string]int)

		for _, pattern := range line.Patterns {
			if len(pattern.Coordinates) < 2 {
				log.Printf("Skipping pattern of line %d (%s): fewer than two vertices", line.ID, pattern.Sense)
				continue
			}

			patternID := fmt.Sprintf("pattern:%d:%s", line.ID, pattern.Sense)
			senseSeen[pattern.Sense]++
			if n := senseSeen[pattern.Sense]; n > 1 {
				patternID = fmt.Sprintf("%s:%d", patternID, n)
			}

			wkt, err := linestringWKT(pattern.Coordinates)
			if err != nil {
				return count, fmt.Errorf("pattern %s: %w", patternID, err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO transporte.patterns (id, id_linea, sentido, geometry)
				VALUES ($1, $2, $3, ST_GeomFromText($4, 4326))
				ON CONFLICT (id) DO UPDATE
				SET id_linea = EXCLUDED.id_linea,
				    sentido = EXCLUDED.sentido,
				    geometry = EXCLUDED.geometry
			`, patternID, line.ID, pattern.Sense, wkt)
			if err != nil {
				return count, fmt.Errorf("failed to insert pattern %s: %w", patternID, err)
			}

			if err := importPatternStops(ctx, tx, patternID, pattern.Stops); err != nil {
				return count, err
			}

			count++
		}
	}

	log.Printf("Imported %d patterns", count)
	return count, nil
}

func importPatternStops(ctx context.Context, tx pgx.Tx, patternID string, seqs []DumpSeq) error {
	// Stop assignments are replaced wholesale so removed stops disappear
	if _, err := tx.Exec(ctx, `
		DELETE FROM transporte.pattern_stops WHERE pattern_id = $1
	`, patternID); err != nil {
		return fmt.Errorf("failed to clear pattern stops for %s: %w", patternID, err)
	}

	batch := &pgx.Batch{}
	for _, seq := range seqs {
		batch.Queue(`
			INSERT INTO transporte.pattern_stops (pattern_id, id_parada, sequence)
			VALUES ($1, $2, $3)
		`, patternID, seq.StopID, seq.Sequence)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert pattern stop %d of %s: %w", i, patternID, err)
		}
	}

	return nil
}

func deactivateMissingLines(ctx context.Context, tx pgx.Tx, lines []DumpLine) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE transporte.lineas
		SET activa = false
		WHERE NOT (id_linea = ANY($1))
		AND activa = true
	`, ids)
	if err != nil {
		return err
	}

	log.Printf("Deactivated %d lines", tag.RowsAffected())
	return nil
}

// linestringWKT renders [lon, lat] pairs as a WKT LINESTRING
func linestringWKT(coords [][]float64) (string, error) {
	var sb strings.Builder
	sb.WriteString("LINESTRING(")
	for i, c := range coords {
		if len(c) != 2 {
			return "", fmt.Errorf("coordinate %d: expected [lon, lat] pair", i)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%.6f %.6f", c[0], c[1])
	}
	sb.WriteString(")")
	return sb.String(), nil
}
