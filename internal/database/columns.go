package database

import (
	"database/sql"
	"fmt"
)

// activityColumns lists columns added to the activities table after the
// initial schema shipped. Each is applied with ALTER TABLE only when
// missing, so older databases upgrade in place and re-running is a no-op.
// Production paths never drop columns.
var activityColumns = []struct {
	name string
	ddl  string
}{
	{"elevation_load_miles", "REAL NOT NULL DEFAULT 0"},
	{"total_load_miles", "REAL NOT NULL DEFAULT 0"},
	{"time_in_zone1", "REAL NOT NULL DEFAULT 0"},
	{"time_in_zone2", "REAL NOT NULL DEFAULT 0"},
	{"time_in_zone3", "REAL NOT NULL DEFAULT 0"},
	{"time_in_zone4", "REAL NOT NULL DEFAULT 0"},
	{"time_in_zone5", "REAL NOT NULL DEFAULT 0"},
	{"trimp_calculation_method", "TEXT NOT NULL DEFAULT 'average'"},
	{"hr_stream_sample_count", "INTEGER NOT NULL DEFAULT 0"},
	{"trimp_processed_at", "TEXT"},
	{"seven_day_avg_load", "REAL NOT NULL DEFAULT 0"},
	{"twentyeight_day_avg_load", "REAL NOT NULL DEFAULT 0"},
	{"seven_day_avg_trimp", "REAL NOT NULL DEFAULT 0"},
	{"twentyeight_day_avg_trimp", "REAL NOT NULL DEFAULT 0"},
	{"acute_chronic_ratio", "REAL NOT NULL DEFAULT 0"},
	{"trimp_acute_chronic_ratio", "REAL NOT NULL DEFAULT 0"},
	{"normalized_divergence", "REAL NOT NULL DEFAULT 0"},
	{"cycling_equivalent_miles", "REAL NOT NULL DEFAULT 0"},
	{"swimming_equivalent_miles", "REAL NOT NULL DEFAULT 0"},
	{"strength_equivalent_miles", "REAL NOT NULL DEFAULT 0"},
	{"cycling_elevation_factor", "REAL NOT NULL DEFAULT 0"},
	{"average_speed_mph", "REAL NOT NULL DEFAULT 0"},
}

// EnsureActivityColumns adds any missing activities columns. Idempotent:
// existing columns are left untouched.
func EnsureActivityColumns(db *sql.DB) error {
	existing, err := tableColumns(db, "activities")
	if err != nil {
		return err
	}

	for _, col := range activityColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE activities ADD COLUMN %s %s", col.name, col.ddl)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("database: add column %s: %w", col.name, err)
		}
	}

	return nil
}

// tableColumns returns the set of column names currently on a table.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("database: table_info %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("database: scan table_info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
