package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/gridlock/internal/game"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict indicates a compare-and-set write lost a race: the
// stored version moved between read and write. The stored row is untouched.
var ErrVersionConflict = errors.New("session version conflict")

// SessionStore persists session snapshots with compare-and-set semantics and
// resolves the canonical current-session pointer.
type SessionStore interface {
	// CurrentPointer returns the identity of the current session, or
	// ErrNotFound when no session has been created yet.
	CurrentPointer(ctx context.Context) (string, error)

	// SetCurrentPointer repoints the canonical pointer. Restart only.
	SetCurrentPointer(ctx context.Context, id string) error

	// GetSession loads a session snapshot. The grid is rebuilt from the move
	// log, so a stored session always satisfies the replay invariant or
	// fails to load.
	GetSession(ctx context.Context, id string) (game.Session, error)

	// PutSessionIfVersion writes a snapshot only when the stored version
	// still equals expected, returning the new version. An expected version
	// of zero inserts a fresh row. Returns ErrVersionConflict when another
	// writer got there first.
	PutSessionIfVersion(ctx context.Context, s game.Session, expected int64) (int64, error)

	// PutSessionWithMove writes a snapshot under the same version guard as
	// PutSessionIfVersion and appends the move that produced it in one
	// transaction. No reader ever observes the advanced snapshot without
	// its move.
	PutSessionWithMove(ctx context.Context, s game.Session, expected int64, m game.Move) (int64, error)

	// SessionVersion reads only the stored version. Cheap probe for the
	// reconciliation loop.
	SessionVersion(ctx context.Context, id string) (int64, error)
}

// MoveStore persists the append-only move log.
type MoveStore interface {
	AppendMove(ctx context.Context, m game.Move) error
	ListMoves(ctx context.Context, sessionID string) ([]game.Move, error)
}

// MessageStore persists the append-only side-channel message log.
type MessageStore interface {
	AppendMessage(ctx context.Context, m game.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]game.Message, error)
}

// Store is the full durable store contract.
type Store interface {
	SessionStore
	MoveStore
	MessageStore
}
