// Package repository implements the Vessel Repository: the durable,
// MMSI-keyed store of every vessel Vessel Frame has observed. It follows
// the teacher's database.Config/*sql.DB wrapper shape, pointed at an
// embedded sqlite file instead of Postgres, since Vessel Frame's CLI
// takes a single file path rather than host/port credentials.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

// Config configures the repository's storage backend.
type Config struct {
	// Path is the sqlite database file path, e.g. "db.sqlite".
	Path string
}

// Stats summarizes the repository's current contents.
type Stats struct {
	TotalVessels      int
	IdentifiedVessels int
	UnknownVessels    int
	PercentIdentified float64
	OldestFirstSight  time.Time
	NewestLastSight   time.Time
}

// Repository is the sqlite-backed Vessel Repository.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// New opens (creating if necessary) the sqlite database at cfg.Path and
// runs its migrations. Call Start to validate connectivity and Stop to
// release the underlying connection.
func New(cfg Config) (*Repository, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", cfg.Path, err)
	}

	// sqlite allows only one writer at a time; a single connection avoids
	// "database is locked" errors under concurrent access far more
	// reliably than retry logic would.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &Repository{db: db, log: logger.Component("repository")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS vessels (
	mmsi TEXT PRIMARY KEY,
	has_position INTEGER NOT NULL DEFAULT 0,
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	sog REAL NOT NULL DEFAULT 0,
	cog REAL NOT NULL DEFAULT 0,
	heading INTEGER NOT NULL DEFAULT 0,
	nav_status INTEGER NOT NULL DEFAULT 0,
	has_static_data INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL DEFAULT '',
	type INTEGER NOT NULL DEFAULT 0,
	callsign TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	imo INTEGER NOT NULL DEFAULT 0,
	bow INTEGER NOT NULL DEFAULT 0,
	stern INTEGER NOT NULL DEFAULT 0,
	port INTEGER NOT NULL DEFAULT 0,
	starboard INTEGER NOT NULL DEFAULT 0,
	static_data_received DATETIME,
	first_sight DATETIME NOT NULL,
	last_sight DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vessels_last_sight ON vessels (last_sight DESC);
CREATE INDEX IF NOT EXISTS idx_vessels_has_static_data ON vessels (has_static_data);
`)
	if err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

// Start validates the connection is usable. Repository is otherwise
// ready to use immediately after New.
func (r *Repository) Start(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("repository: ping: %w", err)
	}
	r.log.Info().Msg("repository started")
	return nil
}

// Stop releases the underlying database connection. Idempotent.
func (r *Repository) Stop() error {
	return r.db.Close()
}

// UpsertVessel applies message to the stored record for mmsi, inserting
// a new row on first sight. allowStaticUpdate gates whether static
// fields (name, type, call sign, destination, IMO, dimensions) are
// written in this call; has_static_data only ever transitions
// false -> true and is never cleared by a later call with
// allowStaticUpdate false. static_data_received is stamped the first
// time has_static_data becomes true and preserved on every call after.
func (r *Repository) UpsertVessel(ctx context.Context, mmsi string, msg vessel.DecodedMessage, allowStaticUpdate bool) (*vessel.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := queryVessel(ctx, tx, mmsi)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("repository: lookup %s: %w", mmsi, err)
	}

	now := msg.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec vessel.Record
	if err == sql.ErrNoRows {
		rec = vessel.Record{
			MMSI:       mmsi,
			ShipName:   vessel.DefaultShipName,
			CallSign:   vessel.DefaultCallSign,
			ShipType:   vessel.DefaultShipType,
			FirstSight: now,
			LastSight:  now,
		}
	} else {
		rec = *existing
		rec.LastSight = now
	}

	if msg.HasPosition {
		rec.ApplyDynamic(msg)
	}
	if allowStaticUpdate {
		rec.ApplyStatic(msg)
		if rec.StaticDataReceived.IsZero() {
			rec.StaticDataReceived = now
		}
	}

	var staticDataReceived sql.NullTime
	if !rec.StaticDataReceived.IsZero() {
		staticDataReceived = sql.NullTime{Time: rec.StaticDataReceived, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO vessels (
	mmsi, has_position, latitude, longitude, sog, cog, heading, nav_status,
	has_static_data, name, type, callsign, destination, imo, bow, stern, port, starboard,
	static_data_received, first_sight, last_sight
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (mmsi) DO UPDATE SET
	has_position = excluded.has_position,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	sog = excluded.sog,
	cog = excluded.cog,
	heading = excluded.heading,
	nav_status = excluded.nav_status,
	has_static_data = excluded.has_static_data,
	name = excluded.name,
	type = excluded.type,
	callsign = excluded.callsign,
	destination = excluded.destination,
	imo = excluded.imo,
	bow = excluded.bow,
	stern = excluded.stern,
	port = excluded.port,
	starboard = excluded.starboard,
	static_data_received = excluded.static_data_received,
	last_sight = excluded.last_sight
`,
		rec.MMSI, rec.HasPosition, rec.Latitude, rec.Longitude, rec.SOG, rec.COG, rec.Heading, rec.NavStatus,
		rec.HasStaticData, rec.ShipName, rec.ShipType, rec.CallSign, rec.Destination,
		rec.IMO, rec.Bow, rec.Stern, rec.Port, rec.Starboard,
		staticDataReceived, rec.FirstSight, rec.LastSight,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: upsert %s: %w", mmsi, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("repository: commit %s: %w", mmsi, err)
	}

	return &rec, nil
}

// GetVessel returns the stored record for mmsi, or (nil, nil) if no
// record exists.
func (r *Repository) GetVessel(ctx context.Context, mmsi string) (*vessel.Record, error) {
	rec, err := queryVessel(ctx, r.db, mmsi)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get %s: %w", mmsi, err)
	}
	return rec, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryVessel(ctx context.Context, q querier, mmsi string) (*vessel.Record, error) {
	row := q.QueryRowContext(ctx, `
SELECT mmsi, has_position, latitude, longitude, sog, cog, heading, nav_status,
       has_static_data, name, type, callsign, destination, imo, bow, stern, port, starboard,
       static_data_received, first_sight, last_sight
FROM vessels WHERE mmsi = ?`, mmsi)

	var rec vessel.Record
	var staticDataReceived sql.NullTime
	err := row.Scan(
		&rec.MMSI, &rec.HasPosition, &rec.Latitude, &rec.Longitude, &rec.SOG, &rec.COG, &rec.Heading, &rec.NavStatus,
		&rec.HasStaticData, &rec.ShipName, &rec.ShipType, &rec.CallSign, &rec.Destination,
		&rec.IMO, &rec.Bow, &rec.Stern, &rec.Port, &rec.Starboard,
		&staticDataReceived, &rec.FirstSight, &rec.LastSight,
	)
	if err != nil {
		return nil, err
	}
	if staticDataReceived.Valid {
		rec.StaticDataReceived = staticDataReceived.Time
	}
	return &rec, nil
}

// GetVesselStats returns aggregate counts over the whole repository.
func (r *Repository) GetVesselStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var oldest, newest sql.NullTime

	row := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(has_static_data), 0),
	MIN(first_sight),
	MAX(last_sight)
FROM vessels`)

	if err := row.Scan(&stats.TotalVessels, &stats.IdentifiedVessels, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("repository: stats: %w", err)
	}

	stats.UnknownVessels = stats.TotalVessels - stats.IdentifiedVessels
	if stats.TotalVessels > 0 {
		stats.PercentIdentified = float64(stats.IdentifiedVessels) / float64(stats.TotalVessels) * 100
	}
	if oldest.Valid {
		stats.OldestFirstSight = oldest.Time
	}
	if newest.Valid {
		stats.NewestLastSight = newest.Time
	}
	return stats, nil
}
