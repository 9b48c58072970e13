// Package sqlite provides persistent storage for Tempo: the task journal
// and the append-only disruption/swap audit trail. Uses WAL mode for
// concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/tempohq/tempo/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Task journal — write-through mirror of the in-memory store.
		`CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			type             TEXT NOT NULL DEFAULT 'general',
			priority         INTEGER NOT NULL DEFAULT 2,
			duration_minutes INTEGER NOT NULL,
			energy_cost      INTEGER NOT NULL DEFAULT 3,
			deadline         INTEGER,
			preferred_start  INTEGER,
			status           TEXT NOT NULL,
			delegable        BOOLEAN DEFAULT 0,
			swap_note        TEXT NOT NULL DEFAULT '',
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL,
			admitted_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline)`,

		// Disruption audit trail — append-only.
		`CREATE TABLE IF NOT EXISTS disruptions (
			id            TEXT PRIMARY KEY,
			event_id      TEXT NOT NULL,
			severity      TEXT NOT NULL,
			delta_minutes INTEGER NOT NULL,
			affected      INTEGER NOT NULL,
			cause         TEXT NOT NULL,
			classified_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disruptions_at ON disruptions(classified_at)`,

		// Swap audit/undo log — append-only.
		`CREATE TABLE IF NOT EXISTS swap_ops (
			id       TEXT PRIMARY KEY,
			action   TEXT NOT NULL,
			task_id  TEXT NOT NULL,
			reason   TEXT NOT NULL,
			new_slot INTEGER,
			at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_swaps_at ON swap_ops(at)`,
		`CREATE INDEX IF NOT EXISTS idx_swaps_task ON swap_ops(task_id)`,

		// Latest user-reported energy (single row, key = 'user_reported').
		`CREATE TABLE IF NOT EXISTS energy_reports (
			key         TEXT PRIMARY KEY,
			level       INTEGER NOT NULL,
			confidence  REAL NOT NULL,
			provenance  TEXT NOT NULL,
			observed_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Task Journal ───────────────────────────────────────────────────────────

// SaveTask inserts or updates a journaled task. Implements store.Journal.
func (d *DB) SaveTask(t domain.Task) error {
	_, err := d.db.Exec(
		`INSERT INTO tasks (id, title, description, type, priority, duration_minutes,
			energy_cost, deadline, preferred_start, status, delegable, swap_note,
			created_at, updated_at, admitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			type=excluded.type,
			priority=excluded.priority,
			duration_minutes=excluded.duration_minutes,
			energy_cost=excluded.energy_cost,
			deadline=excluded.deadline,
			preferred_start=excluded.preferred_start,
			status=excluded.status,
			delegable=excluded.delegable,
			swap_note=excluded.swap_note,
			updated_at=excluded.updated_at,
			admitted_at=excluded.admitted_at`,
		t.ID, t.Title, t.Description, t.Type, int(t.Priority), t.DurationMinutes,
		t.EnergyCost, nullableUnix(t.Deadline), nullableUnix(t.PreferredStart),
		string(t.Status), t.Delegable, t.SwapNote,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(), nullableUnix(t.AdmittedAt),
	)
	return err
}

// LoadTasks returns every journaled task, ordered by creation time.
func (d *DB) LoadTasks() ([]domain.Task, error) {
	rows, err := d.db.Query(
		`SELECT id, title, description, type, priority, duration_minutes,
			energy_cost, deadline, preferred_start, status, delegable, swap_note,
			created_at, updated_at, admitted_at
		 FROM tasks ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ─── Audit Trail ────────────────────────────────────────────────────────────

// AppendDisruption records a classified disruption. Append-only.
func (d *DB) AppendDisruption(ev domain.DisruptionEvent) error {
	_, err := d.db.Exec(
		`INSERT INTO disruptions (id, event_id, severity, delta_minutes, affected, cause, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EventID, ev.Severity.String(), ev.DeltaMinutes,
		len(ev.AffectedTaskIDs), ev.Cause, ev.ClassifiedAt.Unix(),
	)
	return err
}

// AppendSwap records a swap operation. Append-only.
func (d *DB) AppendSwap(op domain.SwapOperation) error {
	_, err := d.db.Exec(
		`INSERT INTO swap_ops (id, action, task_id, reason, new_slot, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Action), op.TaskID, op.Reason,
		nullableUnix(op.NewSlot), op.At.Unix(),
	)
	return err
}

// RecentSwaps returns the latest n swap operations, newest first.
func (d *DB) RecentSwaps(n int) ([]domain.SwapOperation, error) {
	rows, err := d.db.Query(
		`SELECT id, action, task_id, reason, new_slot, at
		 FROM swap_ops ORDER BY at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []domain.SwapOperation
	for rows.Next() {
		var op domain.SwapOperation
		var action string
		var newSlot sql.NullInt64
		var at int64
		if err := rows.Scan(&op.ID, &action, &op.TaskID, &op.Reason, &newSlot, &at); err != nil {
			return nil, err
		}
		op.Action = domain.SwapAction(action)
		if newSlot.Valid {
			op.NewSlot = time.Unix(newSlot.Int64, 0)
		}
		op.At = time.Unix(at, 0)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// ─── Energy ─────────────────────────────────────────────────────────────────

// SaveEnergyReport stores the latest user-reported energy reading.
func (d *DB) SaveEnergyReport(e domain.EnergyLevel) error {
	_, err := d.db.Exec(
		`INSERT INTO energy_reports (key, level, confidence, provenance, observed_at)
		 VALUES ('user_reported', ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			level=excluded.level,
			confidence=excluded.confidence,
			provenance=excluded.provenance,
			observed_at=excluded.observed_at`,
		e.Level, e.Confidence, string(e.Provenance), e.ObservedAt.Unix(),
	)
	return err
}

// LatestEnergyReport returns the stored user report, or nil if none.
func (d *DB) LatestEnergyReport() (*domain.EnergyLevel, error) {
	row := d.db.QueryRow(
		`SELECT level, confidence, provenance, observed_at
		 FROM energy_reports WHERE key = 'user_reported'`,
	)
	var e domain.EnergyLevel
	var provenance string
	var observed int64
	err := row.Scan(&e.Level, &e.Confidence, &provenance, &observed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Provenance = domain.EnergyProvenance(provenance)
	e.ObservedAt = time.Unix(observed, 0)
	return &e, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var priority int
	var status string
	var deadline, preferred, admitted sql.NullInt64
	var created, updated int64

	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Type, &priority,
		&t.DurationMinutes, &t.EnergyCost, &deadline, &preferred,
		&status, &t.Delegable, &t.SwapNote, &created, &updated, &admitted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	if deadline.Valid {
		t.Deadline = time.Unix(deadline.Int64, 0)
	}
	if preferred.Valid {
		t.PreferredStart = time.Unix(preferred.Int64, 0)
	}
	if admitted.Valid {
		t.AdmittedAt = time.Unix(admitted.Int64, 0)
	}
	t.CreatedAt = time.Unix(created, 0)
	t.UpdatedAt = time.Unix(updated, 0)
	return &t, nil
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
