// Package history persists counted crossings in SQLite so totals outlive a counting session.
package history

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/viam-modules/people-counting/counter"
)

const schema = `
CREATE TABLE IF NOT EXISTS crossings (
	crossing_id   TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	track_id      INTEGER NOT NULL,
	direction     TEXT NOT NULL,
	x             INTEGER NOT NULL,
	y             INTEGER NOT NULL,
	created_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crossings_session ON crossings (session_id, created_at_ns);
`

// Record is one persisted crossing.
type Record struct {
	CrossingID  string            `json:"crossing_id"`
	SessionID   string            `json:"session_id"`
	TrackID     int               `json:"track_id"`
	Direction   counter.Direction `json:"direction"`
	X           int               `json:"x"`
	Y           int               `json:"y"`
	CreatedAtNs int64             `json:"created_at_ns"`
}

// RecordFromEvent converts a counted crossing to a Record.
func RecordFromEvent(ev counter.Event) Record {
	return Record{
		SessionID:   ev.SessionID,
		TrackID:     ev.TrackID,
		Direction:   ev.Direction,
		X:           ev.Point.X,
		Y:           ev.Point.Y,
		CreatedAtNs: ev.Time.UnixNano(),
	}
}

// Store provides persistence for crossings.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open history database %v", path)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "unable to create history schema in %v", path)
	}
	return &Store{db: db}, nil
}

// Insert persists a crossing. Missing IDs and timestamps are filled in.
func (s *Store) Insert(rec *Record) error {
	if rec.CrossingID == "" {
		rec.CrossingID = uuid.New().String()
	}
	if rec.CreatedAtNs == 0 {
		rec.CreatedAtNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO crossings (crossing_id, session_id, track_id, direction, x, y, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CrossingID, rec.SessionID, rec.TrackID, string(rec.Direction), rec.X, rec.Y, rec.CreatedAtNs,
	)
	if err != nil {
		return errors.Wrapf(err, "insert crossing %v", rec.CrossingID)
	}
	return nil
}

// List returns the crossings of a session, oldest first. An empty sessionID lists every session.
func (s *Store) List(sessionID string) ([]Record, error) {
	query := `SELECT crossing_id, session_id, track_id, direction, x, y, created_at_ns FROM crossings`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at_ns, crossing_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list crossings")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var dir string
		if err := rows.Scan(&rec.CrossingID, &rec.SessionID, &rec.TrackID, &dir, &rec.X, &rec.Y, &rec.CreatedAtNs); err != nil {
			return nil, errors.Wrap(err, "scan crossing")
		}
		rec.Direction = counter.Direction(dir)
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate crossings")
}

// Totals returns the number of entering and exiting crossings of a session, or of every session
// when sessionID is empty.
func (s *Store) Totals(sessionID string) (entering, exiting int, err error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0)
		FROM crossings`
	args := []interface{}{string(counter.Entering), string(counter.Exiting)}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	if err := s.db.QueryRow(query, args...).Scan(&entering, &exiting); err != nil {
		return 0, 0, errors.Wrap(err, "count crossings")
	}
	return entering, exiting, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
