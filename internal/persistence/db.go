// Package persistence stores run results, per-tick metrics and events in SQLite.
package persistence

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/metrics"
)

// CSVColumns is the column order of aggregated run summaries.
var CSVColumns = []string{
	"run_id", "map", "strategy", "seed", "ticks", "rescued", "deaths",
	"avg_rescue_time", "fires_extinguished", "roads_cleared", "energy_used",
	"tool_calls", "invalid_json", "replans", "hospital_overflow_events",
}

// Run is the summary row of one simulation run.
type Run struct {
	RunID                  string  `db:"run_id"`
	Map                    string  `db:"map"`
	Strategy               string  `db:"strategy"`
	Seed                   int64   `db:"seed"`
	Ticks                  uint64  `db:"ticks"`
	Rescued                int     `db:"rescued"`
	Deaths                 int     `db:"deaths"`
	AvgRescueTime          float64 `db:"avg_rescue_time"`
	FiresExtinguished      int     `db:"fires_extinguished"`
	RoadsCleared           int     `db:"roads_cleared"`
	EnergyUsed             int     `db:"energy_used"`
	ToolCalls              int     `db:"tool_calls"`
	InvalidJSON            int     `db:"invalid_json"`
	Replans                int     `db:"replans"`
	HospitalOverflowEvents int     `db:"hospital_overflow_events"`
	CreatedAt              int64   `db:"created_at"` // unix seconds
}

// NewRun fills a summary row from the final metrics snapshot.
func NewRun(runID, mapName, strategy string, seed int64, snap metrics.Snapshot) Run {
	return Run{
		RunID:                  runID,
		Map:                    mapName,
		Strategy:               strategy,
		Seed:                   seed,
		Ticks:                  snap.Tick,
		Rescued:                snap.Rescued,
		Deaths:                 snap.Deaths,
		AvgRescueTime:          snap.AvgRescueTime,
		FiresExtinguished:      snap.FiresExtinguished,
		RoadsCleared:           snap.RoadsCleared,
		EnergyUsed:             snap.EnergyUsed,
		ToolCalls:              snap.ToolCalls,
		InvalidJSON:            snap.InvalidJSON,
		Replans:                snap.Replans,
		HospitalOverflowEvents: snap.HospitalOverflowEvents,
	}
}

// TickRow is one tick's cumulative metrics.
type TickRow struct {
	RunID                  string  `db:"run_id"`
	Tick                   uint64  `db:"tick"`
	Rescued                int     `db:"rescued"`
	Deaths                 int     `db:"deaths"`
	AvgRescueTime          float64 `db:"avg_rescue_time"`
	FiresExtinguished      int     `db:"fires_extinguished"`
	RoadsCleared           int     `db:"roads_cleared"`
	EnergyUsed             int     `db:"energy_used"`
	HospitalOverflowEvents int     `db:"hospital_overflow_events"`
}

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		map TEXT NOT NULL,
		strategy TEXT NOT NULL,
		seed INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		rescued INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		avg_rescue_time REAL NOT NULL,
		fires_extinguished INTEGER NOT NULL,
		roads_cleared INTEGER NOT NULL,
		energy_used INTEGER NOT NULL,
		tool_calls INTEGER NOT NULL,
		invalid_json INTEGER NOT NULL,
		replans INTEGER NOT NULL,
		hospital_overflow_events INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS tick_metrics (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		rescued INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		avg_rescue_time REAL NOT NULL,
		fires_extinguished INTEGER NOT NULL,
		roads_cleared INTEGER NOT NULL,
		energy_used INTEGER NOT NULL,
		hospital_overflow_events INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes or replaces a run summary. CreatedAt is kept from the first save.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(run_id, map, strategy, seed, ticks, rescued, deaths, avg_rescue_time,
		 fires_extinguished, roads_cleared, energy_used, tool_calls, invalid_json,
		 replans, hospital_overflow_events)
		VALUES (:run_id, :map, :strategy, :seed, :ticks, :rescued, :deaths, :avg_rescue_time,
		 :fires_extinguished, :roads_cleared, :energy_used, :tool_calls, :invalid_json,
		 :replans, :hospital_overflow_events)
		ON CONFLICT(run_id) DO UPDATE SET
		 map = excluded.map, strategy = excluded.strategy, seed = excluded.seed,
		 ticks = excluded.ticks, rescued = excluded.rescued, deaths = excluded.deaths,
		 avg_rescue_time = excluded.avg_rescue_time,
		 fires_extinguished = excluded.fires_extinguished,
		 roads_cleared = excluded.roads_cleared, energy_used = excluded.energy_used,
		 tool_calls = excluded.tool_calls, invalid_json = excluded.invalid_json,
		 replans = excluded.replans,
		 hospital_overflow_events = excluded.hospital_overflow_events`, r)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	return nil
}

// SaveTick records the cumulative metrics after one tick.
func (db *DB) SaveTick(runID string, snap metrics.Snapshot) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO tick_metrics
		(run_id, tick, rescued, deaths, avg_rescue_time, fires_extinguished,
		 roads_cleared, energy_used, hospital_overflow_events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.Tick, snap.Rescued, snap.Deaths, snap.AvgRescueTime,
		snap.FiresExtinguished, snap.RoadsCleared, snap.EnergyUsed, snap.HospitalOverflowEvents,
	)
	if err != nil {
		return fmt.Errorf("save tick %d: %w", snap.Tick, err)
	}
	return nil
}

// SaveEvents appends events for a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.Tick, e.Description, e.Category); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// Run returns one run summary.
func (db *DB) Run(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE run_id = ?", runID)
	return r, err
}

// Runs returns every stored run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at, rowid")
	return runs, err
}

// TickMetrics returns a run's per-tick metrics in tick order.
func (db *DB) TickMetrics(runID string) ([]TickRow, error) {
	var rows []TickRow
	err := db.conn.Select(&rows, "SELECT * FROM tick_metrics WHERE run_id = ? ORDER BY tick", runID)
	return rows, err
}

// RecentEvents returns a run's most recent N events, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// FinishRun stores the final summary and marks the run as the latest.
// Events are saved tick by tick with SaveEvents.
func (db *DB) FinishRun(r Run) error {
	if err := db.SaveRun(r); err != nil {
		return err
	}
	if err := db.SaveMeta("last_run_id", r.RunID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("run saved", "run_id", r.RunID, "ticks", r.Ticks)
	return nil
}

// WriteCSV writes every stored run as CSV with a CSVColumns header.
func (db *DB) WriteCSV(w io.Writer) (int, error) {
	runs, err := db.Runs()
	if err != nil {
		return 0, fmt.Errorf("load runs: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return 0, err
	}
	for _, r := range runs {
		if err := cw.Write(r.record()); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(runs), cw.Error()
}

func (r Run) record() []string {
	itoa := strconv.Itoa
	return []string{
		r.RunID,
		r.Map,
		r.Strategy,
		strconv.FormatInt(r.Seed, 10),
		strconv.FormatUint(r.Ticks, 10),
		itoa(r.Rescued),
		itoa(r.Deaths),
		strconv.FormatFloat(r.AvgRescueTime, 'f', -1, 64),
		itoa(r.FiresExtinguished),
		itoa(r.RoadsCleared),
		itoa(r.EnergyUsed),
		itoa(r.ToolCalls),
		itoa(r.InvalidJSON),
		itoa(r.Replans),
		itoa(r.HospitalOverflowEvents),
	}
}
