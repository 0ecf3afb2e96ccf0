// Package sqlite provides the SQLite-backed session store implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/gridlock/internal/game"
	sqlitemigrate "github.com/louisbranch/gridlock/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/gridlock/internal/storage"
	"github.com/louisbranch/gridlock/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists sessions, moves and messages in SQLite. It is safe for use
// from multiple processes at once: session writes are guarded by the version
// column and everything else is append-only.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CurrentPointer returns the canonical current-session identity.
func (s *Store) CurrentPointer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}

	var sessionID string
	row := s.sqlDB.QueryRowContext(ctx, `SELECT session_id FROM current_session WHERE id = 1`)
	if err := row.Scan(&sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("read current pointer: %w", err)
	}
	return sessionID, nil
}

// SetCurrentPointer repoints the canonical pointer at the given session.
func (s *Store) SetCurrentPointer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	// A single fixed-id row keeps exactly one pointer per store.
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO current_session (id, session_id) VALUES (1, ?)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("set current pointer: %w", err)
	}
	return nil
}

// GetSession loads one session snapshot. The grid is rebuilt from the move
// log so a session that violates the replay invariant fails to load.
func (s *Store) GetSession(ctx context.Context, id string) (game.Session, error) {
	if err := ctx.Err(); err != nil {
		return game.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return game.Session{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return game.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, human_player, agent_player, current_turn, status, version, created_at, updated_at
		   FROM sessions
		  WHERE id = ?`,
		id,
	)

	var sess game.Session
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&sess.ID,
		&sess.HumanPlayer,
		&sess.AgentPlayer,
		&sess.CurrentTurn,
		&sess.Status,
		&sess.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Session{}, storage.ErrNotFound
		}
		return game.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)

	moves, err := s.ListMoves(ctx, id)
	if err != nil {
		return game.Session{}, err
	}
	grid, err := game.Replay(moves)
	if err != nil {
		return game.Session{}, fmt.Errorf("rebuild grid for session %s: %w", id, err)
	}
	sess.Grid = grid
	if _, won := sess.Status.Winner(); won {
		if _, line := game.Evaluate(grid); line != nil {
			sess.WinningLine = line
		}
	}
	return sess, nil
}

// PutSessionIfVersion writes a snapshot guarded by the stored version. An
// expected version of zero inserts a fresh row at version one.
func (s *Store) PutSessionIfVersion(ctx context.Context, sess game.Session, expected int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(sess.ID)
	if id == "" {
		return 0, fmt.Errorf("session id is required")
	}
	if !sess.HumanPlayer.Valid() || !sess.AgentPlayer.Valid() || !sess.CurrentTurn.Valid() {
		return 0, fmt.Errorf("session players are invalid")
	}
	if expected < 0 {
		return 0, fmt.Errorf("expected version must not be negative")
	}

	return putSession(ctx, s.sqlDB, sess, expected)
}

// PutSessionWithMove applies the guarded snapshot write and the move append
// in one transaction so a crash between them cannot strand the snapshot
// ahead of its move log.
func (s *Store) PutSessionWithMove(ctx context.Context, sess game.Session, expected int64, m game.Move) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(sess.ID)
	if id == "" {
		return 0, fmt.Errorf("session id is required")
	}
	if !sess.HumanPlayer.Valid() || !sess.AgentPlayer.Valid() || !sess.CurrentTurn.Valid() {
		return 0, fmt.Errorf("session players are invalid")
	}
	if expected < 0 {
		return 0, fmt.Errorf("expected version must not be negative")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return 0, fmt.Errorf("move session id is required")
	}
	if !m.Player.Valid() {
		return 0, fmt.Errorf("move player is invalid")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin session write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, err := putSession(ctx, tx, sess, expected)
	if err != nil {
		return 0, err
	}
	if err := appendMove(ctx, tx, m); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit session write: %w", err)
	}
	return version, nil
}

// execer is the slice of *sql.DB and *sql.Tx the write helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func putSession(ctx context.Context, q execer, sess game.Session, expected int64) (int64, error) {
	id := strings.TrimSpace(sess.ID)

	if expected == 0 {
		createdAt := sess.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		updatedAt := sess.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err := q.ExecContext(
			ctx,
			`INSERT INTO sessions (id, human_player, agent_player, current_turn, status, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			id,
			string(sess.HumanPlayer),
			string(sess.AgentPlayer),
			string(sess.CurrentTurn),
			string(sess.Status),
			toMillis(createdAt),
			toMillis(updatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, storage.ErrVersionConflict
			}
			return 0, fmt.Errorf("insert session: %w", err)
		}
		return 1, nil
	}

	res, err := q.ExecContext(
		ctx,
		`UPDATE sessions
		    SET current_turn = ?, status = ?, updated_at = ?, version = version + 1
		  WHERE id = ? AND version = ?`,
		string(sess.CurrentTurn),
		string(sess.Status),
		toMillis(sess.UpdatedAt),
		id,
		expected,
	)
	if err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		var exists int
		row := q.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return 0, storage.ErrNotFound
			}
			return 0, fmt.Errorf("update session: %w", scanErr)
		}
		return 0, storage.ErrVersionConflict
	}
	return expected + 1, nil
}

// SessionVersion reads only the stored version for one session.
func (s *Store) SessionVersion(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, fmt.Errorf("session id is required")
	}

	var version int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT version FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("read session version: %w", err)
	}
	return version, nil
}

// AppendMove appends one move record to the log.
func (s *Store) AppendMove(ctx context.Context, m game.Move) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(m.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if !m.Player.Valid() {
		return fmt.Errorf("move player is invalid")
	}

	return appendMove(ctx, s.sqlDB, m)
}

func appendMove(ctx context.Context, q execer, m game.Move) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO moves (session_id, player, row, col, timestamp, origin) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(m.SessionID),
		string(m.Player),
		m.Row,
		m.Col,
		toMillis(m.Timestamp),
		nullableOrigin(m.Origin),
	)
	if err != nil {
		return fmt.Errorf("append move: %w", err)
	}
	return nil
}

// ListMoves returns the full move log for a session in total order.
func (s *Store) ListMoves(ctx context.Context, sessionID string) ([]game.Move, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, player, row, col, timestamp, origin
		   FROM moves
		  WHERE session_id = ?
		  ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var moves []game.Move
	for rows.Next() {
		var m game.Move
		var timestamp int64
		var origin sql.NullString
		if err := rows.Scan(&m.SessionID, &m.Player, &m.Row, &m.Col, &timestamp, &origin); err != nil {
			return nil, fmt.Errorf("list moves: %w", err)
		}
		m.Timestamp = fromMillis(timestamp)
		if origin.Valid {
			m.Origin = game.Origin(origin.String)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	return moves, nil
}

// AppendMessage appends one side-channel message to the log.
func (s *Store) AppendMessage(ctx context.Context, m game.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(m.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("message body is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (session_id, body, timestamp, origin) VALUES (?, ?, ?, ?)`,
		sessionID,
		m.Body,
		toMillis(m.Timestamp),
		nullableOrigin(m.Origin),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the full message log for a session in order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]game.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, body, timestamp, origin
		   FROM messages
		  WHERE session_id = ?
		  ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []game.Message
	for rows.Next() {
		var m game.Message
		var timestamp int64
		var origin sql.NullString
		if err := rows.Scan(&m.SessionID, &m.Body, &timestamp, &origin); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		m.Timestamp = fromMillis(timestamp)
		if origin.Valid {
			m.Origin = game.Origin(origin.String)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func nullableOrigin(origin game.Origin) any {
	if origin == "" {
		return nil
	}
	return string(origin)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
