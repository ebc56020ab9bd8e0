// Package sqlite persists station inventory in a SQLite database via
// database/sql. Transactions map one-to-one onto store.Runner units of work.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evswap/stationd/core/model"
	"github.com/evswap/stationd/core/store"
)

// Store wraps a SQLite database implementing store.Runner.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases coherent and serializes
	// writers, matching SQLite's own locking model.
	db.SetMaxOpenConns(1)
	schema := `
CREATE TABLE IF NOT EXISTS bookings (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    station_id TEXT NOT NULL,
    battery_type TEXT NOT NULL,
    battery_count INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS batteries (
    id TEXT PRIMARY KEY,
    station_id TEXT NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS dock_slots (
    id TEXT PRIMARY KEY,
    dock_id TEXT NOT NULL DEFAULT '',
    dock_name TEXT NOT NULL,
    station_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    status TEXT NOT NULL,
    battery_id TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS swaps (
    id TEXT PRIMARY KEY,
    booking_id TEXT NOT NULL,
    battery_in_id TEXT NOT NULL,
    battery_out_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS staff_assignments (
    station_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (station_id, user_id)
);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("ensure schema: %v (close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// WithTransaction runs fn inside a sql transaction. The error returned by fn
// is passed through unchanged so the engine's taxonomy survives the boundary.
func (s *Store) WithTransaction(ctx context.Context, fn func(store.Stores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txStores{ctx: ctx, tx: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Seed helpers insert records outside a unit of work, for bootstrapping and
// tests.

func (s *Store) InsertBooking(ctx context.Context, b model.Booking) error {
	return s.WithTransaction(ctx, func(st store.Stores) error { return st.Bookings().Save(ctx, b) })
}

func (s *Store) InsertBattery(ctx context.Context, b model.Battery) error {
	return s.WithTransaction(ctx, func(st store.Stores) error { return st.Batteries().Save(ctx, b) })
}

func (s *Store) InsertSlot(ctx context.Context, sl model.DockSlot) error {
	return s.WithTransaction(ctx, func(st store.Stores) error { return st.Slots().Save(ctx, sl) })
}

// AssignStaff registers a staff user at a station. Assigning twice is a no-op.
func (s *Store) AssignStaff(ctx context.Context, stationID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO staff_assignments (station_id, user_id) VALUES (?, ?)`,
		stationID, userID)
	return err
}

type txStores struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *txStores) Bookings() store.BookingStore  { return bookingStore{t.tx} }
func (t *txStores) Batteries() store.BatteryStore { return batteryStore{t.tx} }
func (t *txStores) Slots() store.SlotStore        { return slotStore{t.tx} }
func (t *txStores) Swaps() store.SwapStore        { return swapStore{t.tx} }
func (t *txStores) Staff() store.StaffDirectory   { return staffDirectory{t.tx} }

type bookingStore struct{ tx *sql.Tx }

func (s bookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	const q = `SELECT id, user_id, station_id, battery_type, battery_count, status, created_at, updated_at
               FROM bookings WHERE id = ?`
	var (
		b                model.Booking
		created, updated int64
	)
	err := s.tx.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.StationID, &b.BatteryType, &b.BatteryCount, &b.Status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.UpdatedAt = time.Unix(updated, 0).UTC()
	return b, nil
}

func (s bookingStore) Save(ctx context.Context, b model.Booking) error {
	const q = `INSERT OR REPLACE INTO bookings (id, user_id, station_id, battery_type, battery_count, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.tx.ExecContext(ctx, q,
		b.ID, b.UserID, b.StationID, b.BatteryType, b.BatteryCount, string(b.Status), b.CreatedAt.Unix(), b.UpdatedAt.Unix())
	return err
}

type batteryStore struct{ tx *sql.Tx }

func (s batteryStore) Get(ctx context.Context, id string) (model.Battery, error) {
	const q = `SELECT id, station_id, type, status, active, updated_at FROM batteries WHERE id = ?`
	var (
		b       model.Battery
		active  int
		updated int64
	)
	err := s.tx.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.StationID, &b.Type, &b.Status, &active, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Battery{}, store.ErrNotFound
	}
	if err != nil {
		return model.Battery{}, err
	}
	b.Active = active != 0
	b.UpdatedAt = time.Unix(updated, 0).UTC()
	return b, nil
}

func (s batteryStore) Save(ctx context.Context, b model.Battery) error {
	const q = `INSERT OR REPLACE INTO batteries (id, station_id, type, status, active, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	active := 0
	if b.Active {
		active = 1
	}
	_, err := s.tx.ExecContext(ctx, q, b.ID, b.StationID, b.Type, string(b.Status), active, b.UpdatedAt.Unix())
	return err
}

func (s batteryStore) CountAvailable(ctx context.Context, stationID, batteryType string) (int, error) {
	const q = `SELECT COUNT(*) FROM batteries
               WHERE station_id = ? AND type = ? AND active = 1 AND status = ?`
	var n int
	err := s.tx.QueryRowContext(ctx, q, stationID, batteryType, string(model.BatteryAvailable)).Scan(&n)
	return n, err
}

func (s batteryStore) ListByStation(ctx context.Context, stationID string) ([]model.Battery, error) {
	const q = `SELECT id, station_id, type, status, active, updated_at FROM batteries
               WHERE station_id = ? ORDER BY id`
	rows, err := s.tx.QueryContext(ctx, q, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Battery
	for rows.Next() {
		var (
			b       model.Battery
			active  int
			updated int64
		)
		if err := rows.Scan(&b.ID, &b.StationID, &b.Type, &b.Status, &active, &updated); err != nil {
			return nil, err
		}
		b.Active = active != 0
		b.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

type slotStore struct{ tx *sql.Tx }

const slotColumns = `id, dock_id, dock_name, station_id, number, status, battery_id, active`

func scanSlot(row *sql.Row) (model.DockSlot, error) {
	var (
		sl     model.DockSlot
		active int
	)
	err := row.Scan(&sl.ID, &sl.DockID, &sl.DockName, &sl.StationID, &sl.Number, &sl.Status, &sl.BatteryID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DockSlot{}, store.ErrNotFound
	}
	if err != nil {
		return model.DockSlot{}, err
	}
	sl.Active = active != 0
	return sl, nil
}

func (s slotStore) Get(ctx context.Context, id string) (model.DockSlot, error) {
	return scanSlot(s.tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM dock_slots WHERE id = ?`, id))
}

func (s slotStore) Save(ctx context.Context, sl model.DockSlot) error {
	const q = `INSERT OR REPLACE INTO dock_slots (id, dock_id, dock_name, station_id, number, status, battery_id, active)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	active := 0
	if sl.Active {
		active = 1
	}
	_, err := s.tx.ExecContext(ctx, q,
		sl.ID, sl.DockID, sl.DockName, sl.StationID, sl.Number, string(sl.Status), sl.BatteryID, active)
	return err
}

func (s slotStore) ByBattery(ctx context.Context, batteryID string) (model.DockSlot, error) {
	if batteryID == "" {
		return model.DockSlot{}, store.ErrNotFound
	}
	return scanSlot(s.tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM dock_slots WHERE battery_id = ?`, batteryID))
}

func (s slotStore) FirstCharged(ctx context.Context, stationID string) (model.DockSlot, error) {
	const q = `SELECT s.id, s.dock_id, s.dock_name, s.station_id, s.number, s.status, s.battery_id, s.active
               FROM dock_slots s
               JOIN batteries b ON b.id = s.battery_id
               WHERE s.station_id = ? AND s.status = ? AND b.active = 1 AND b.status = ?
               ORDER BY s.dock_name, s.number, s.id
               LIMIT 1`
	return scanSlot(s.tx.QueryRowContext(ctx, q,
		stationID, string(model.SlotOccupied), string(model.BatteryAvailable)))
}

func (s slotStore) FirstEmpty(ctx context.Context, stationID string) (model.DockSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM dock_slots
               WHERE station_id = ? AND active = 1 AND status = ?
               ORDER BY dock_name, number, id
               LIMIT 1`
	return scanSlot(s.tx.QueryRowContext(ctx, q, stationID, string(model.SlotEmpty)))
}

func (s slotStore) ListByStation(ctx context.Context, stationID string) ([]model.DockSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM dock_slots
               WHERE station_id = ?
               ORDER BY dock_name, number, id`
	rows, err := s.tx.QueryContext(ctx, q, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DockSlot
	for rows.Next() {
		var (
			sl     model.DockSlot
			active int
		)
		if err := rows.Scan(&sl.ID, &sl.DockID, &sl.DockName, &sl.StationID, &sl.Number, &sl.Status, &sl.BatteryID, &active); err != nil {
			return nil, err
		}
		sl.Active = active != 0
		out = append(out, sl)
	}
	return out, rows.Err()
}

type swapStore struct{ tx *sql.Tx }

func (s swapStore) Get(ctx context.Context, id string) (model.Swap, error) {
	const q = `SELECT id, booking_id, battery_in_id, battery_out_id, status, created_at, updated_at
               FROM swaps WHERE id = ?`
	var (
		sw               model.Swap
		created, updated int64
	)
	err := s.tx.QueryRowContext(ctx, q, id).Scan(
		&sw.ID, &sw.BookingID, &sw.BatteryInID, &sw.BatteryOutID, &sw.Status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Swap{}, store.ErrNotFound
	}
	if err != nil {
		return model.Swap{}, err
	}
	sw.CreatedAt = time.Unix(created, 0).UTC()
	sw.UpdatedAt = time.Unix(updated, 0).UTC()
	return sw, nil
}

func (s swapStore) Create(ctx context.Context, sw model.Swap) error {
	const q = `INSERT INTO swaps (id, booking_id, battery_in_id, battery_out_id, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.tx.ExecContext(ctx, q,
		sw.ID, sw.BookingID, sw.BatteryInID, sw.BatteryOutID, string(sw.Status), sw.CreatedAt.Unix(), sw.UpdatedAt.Unix())
	return err
}

func (s swapStore) Save(ctx context.Context, sw model.Swap) error {
	const q = `UPDATE swaps SET booking_id = ?, battery_in_id = ?, battery_out_id = ?, status = ?, updated_at = ?
               WHERE id = ?`
	_, err := s.tx.ExecContext(ctx, q,
		sw.BookingID, sw.BatteryInID, sw.BatteryOutID, string(sw.Status), sw.UpdatedAt.Unix(), sw.ID)
	return err
}

type staffDirectory struct{ tx *sql.Tx }

func (s staffDirectory) IsAssigned(ctx context.Context, stationID, userID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM staff_assignments WHERE station_id = ? AND user_id = ?`
	var n int
	if err := s.tx.QueryRowContext(ctx, q, stationID, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
