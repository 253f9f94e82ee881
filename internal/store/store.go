// Package store implements the persistent session store backed by SQLite.
// It is the single source of truth: the reconciler, the importer and the
// coach all read and write through it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nbouchiba/allure/internal/plan"
)

// Store provides database operations over training sessions, the athlete
// profile and the conversation log. Mutations are serialized behind a
// single-writer lock; data volumes are tens to low hundreds of records.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode allows readers while the single writer holds the lock.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT PRIMARY KEY,
		date_unix    INTEGER NOT NULL,
		discipline   TEXT NOT NULL,
		sport        TEXT NOT NULL,
		duration_min INTEGER NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		intensity    TEXT NOT NULL,
		status       TEXT NOT NULL,
		source       TEXT NOT NULL,
		batch_id     TEXT,
		distance_km  REAL,
		avg_hr       INTEGER,
		effort       INTEGER,
		comment      TEXT NOT NULL DEFAULT '',
		external_id  TEXT
	);

	CREATE TABLE IF NOT EXISTS profile (
		id   INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		author     TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date_unix);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_batch ON sessions(batch_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_external ON sessions(external_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const sessionColumns = `id, date_unix, discipline, sport, duration_min, description, intensity, status, source, batch_id, distance_km, avg_hr, effort, comment, external_id`

func scanSession(scan func(dest ...any) error) (plan.TrainingSession, error) {
	var (
		ts         plan.TrainingSession
		dateUnix   int64
		batchID    sql.NullString
		distanceKm sql.NullFloat64
		avgHR      sql.NullInt64
		effort     sql.NullInt64
		externalID sql.NullString
	)
	err := scan(&ts.ID, &dateUnix, &ts.Discipline, &ts.Sport, &ts.DurationMin, &ts.Description,
		&ts.Intensity, &ts.Status, &ts.Source, &batchID, &distanceKm, &avgHR, &effort, &ts.Comment, &externalID)
	if err != nil {
		return ts, err
	}
	ts.Date = time.Unix(dateUnix, 0)
	if batchID.Valid {
		ts.BatchID = batchID.String
	}
	if distanceKm.Valid {
		v := distanceKm.Float64
		ts.DistanceKm = &v
	}
	if avgHR.Valid {
		v := int(avgHR.Int64)
		ts.AvgHR = &v
	}
	if effort.Valid {
		v := int(effort.Int64)
		ts.Effort = &v
	}
	if externalID.Valid {
		ts.ExternalID = externalID.String
	}
	return ts, nil
}

func sessionArgs(ts *plan.TrainingSession) []any {
	var batchID, externalID any
	if ts.BatchID != "" {
		batchID = ts.BatchID
	}
	if ts.ExternalID != "" {
		externalID = ts.ExternalID
	}
	var distanceKm, avgHR, effort any
	if ts.DistanceKm != nil {
		distanceKm = *ts.DistanceKm
	}
	if ts.AvgHR != nil {
		avgHR = *ts.AvgHR
	}
	if ts.Effort != nil {
		effort = *ts.Effort
	}
	return []any{
		ts.ID, ts.Date.Unix(), string(ts.Discipline), ts.Sport, ts.DurationMin, ts.Description,
		string(ts.Intensity), string(ts.Status), string(ts.Source), batchID, distanceKm, avgHR, effort,
		ts.Comment, externalID,
	}
}

const insertSessionSQL = `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertSession inserts a new training session.
func (s *Store) InsertSession(ctx context.Context, ts *plan.TrainingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, insertSessionSQL, sessionArgs(ts)...); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// UpdateSession rewrites all mutable fields of an existing session.
func (s *Store) UpdateSession(ctx context.Context, ts *plan.TrainingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE sessions SET date_unix = ?, discipline = ?, sport = ?, duration_min = ?,
			description = ?, intensity = ?, status = ?, source = ?, batch_id = ?,
			distance_km = ?, avg_hr = ?, effort = ?, comment = ?, external_id = ?
		WHERE id = ?
	`
	args := sessionArgs(ts)
	args = append(args[1:], args[0]) // move id to the WHERE position
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteSessions removes the sessions with the given IDs.
func (s *Store) DeleteSessions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// ReplaceBatch deletes the sessions in deleteIDs and inserts the given
// sessions as a single transaction, so a reader never observes the
// deleted-but-not-replaced gap.
func (s *Store) ReplaceBatch(ctx context.Context, deleteIDs []string, inserts []plan.TrainingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range deleteIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
	}
	for i := range inserts {
		if _, err := tx.ExecContext(ctx, insertSessionSQL, sessionArgs(&inserts[i])...); err != nil {
			return fmt.Errorf("failed to insert replacement session: %w", err)
		}
	}

	return tx.Commit()
}

// GetSession retrieves a single session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*plan.TrainingSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	ts, err := scanSession(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &ts, nil
}

// ListSessions returns every session, sorted by date ascending.
func (s *Store) ListSessions(ctx context.Context) ([]plan.TrainingSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY date_unix`)
}

// CompletedSessions returns the most recent completed sessions, newest
// first, capped at limit.
func (s *Store) CompletedSessions(ctx context.Context, limit int) ([]plan.TrainingSession, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = ? ORDER BY date_unix DESC LIMIT ?`,
		string(plan.StatusCompleted), limit)
}

// PlannedFrom returns planned sessions dated at or after the given time,
// sorted by date ascending.
func (s *Store) PlannedFrom(ctx context.Context, from time.Time) ([]plan.TrainingSession, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = ? AND date_unix >= ? ORDER BY date_unix`,
		string(plan.StatusPlanned), from.Unix())
}

// HasExternalID reports whether any session carries the given external
// activity identifier.
func (s *Store) HasExternalID(ctx context.Context, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE external_id = ?`, externalID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check external id: %w", err)
	}
	return n > 0, nil
}

// HasSessionAtMinute reports whether any session's date falls within the
// minute containing t. Used as the importer's fallback duplicate test.
func (s *Store) HasSessionAtMinute(ctx context.Context, t time.Time) (bool, error) {
	minute := t.Truncate(time.Minute)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE date_unix >= ? AND date_unix < ?`,
		minute.Unix(), minute.Add(time.Minute).Unix()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check session at minute: %w", err)
	}
	return n > 0, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]plan.TrainingSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []plan.TrainingSession
	for rows.Next() {
		ts, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// SaveProfile persists the athlete profile singleton.
func (s *Store) SaveProfile(ctx context.Context, p *plan.AthleteProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	query := `
		INSERT INTO profile (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`
	if _, err := s.db.ExecContext(ctx, query, string(data)); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// LoadProfile returns the athlete profile, or nil when none has been saved.
func (s *Store) LoadProfile(ctx context.Context) (*plan.AthleteProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profile WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var p plan.AthleteProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

// AppendMessage appends a conversation message and returns its assigned ID.
func (s *Store) AppendMessage(ctx context.Context, author plan.MessageAuthor, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (author, content, created_at) VALUES (?, ?, ?)`,
		string(author), content, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	return res.LastInsertId()
}

// RecentMessages returns the last n conversation messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, n int) ([]plan.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, content, created_at FROM (
			SELECT id, author, content, created_at FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []plan.ConversationMessage
	for rows.Next() {
		var m plan.ConversationMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Author, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearConversation deletes the entire conversation log.
func (s *Store) ClearConversation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}
