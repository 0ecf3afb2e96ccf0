// Package coordinator serializes game mutations over the durable store. It
// combines an in-process mutex with versioned compare-and-set writes so
// concurrent callers in this process and writers in other processes both
// resolve to one total order of moves.
package coordinator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/louisbranch/gridlock/internal/errors"
	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
	"github.com/louisbranch/gridlock/internal/storage"
)

var tracer = otel.Tracer("github.com/louisbranch/gridlock/internal/coordinator")

const (
	// casAttempts bounds the compare-and-set retry loop for one mutation.
	casAttempts = 3

	// MaxMessageBytes caps a side-channel message body.
	MaxMessageBytes = 280
)

// Coordinator owns the current session lifecycle: lazy bootstrap, move
// application, restarts and the side-channel message log.
type Coordinator struct {
	store    storage.Store
	notifier *notifier.Notifier
	now      func() time.Time

	mu sync.Mutex
}

// New builds a coordinator over the given store and change notifier.
func New(store storage.Store, n *notifier.Notifier) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: n,
		now:      time.Now,
	}
}

// CurrentState returns the current session, creating a fresh one on first
// access.
func (c *Coordinator) CurrentState(ctx context.Context) (game.Session, error) {
	if c == nil || c.store == nil {
		return game.Session{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := tracer.Start(ctx, "coordinator.CurrentState")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(ctx)
}

// MakeMove applies one move to the current session. When acting is empty the
// move is played as whoever holds the turn; a non-empty acting player that
// is out of turn is rejected. Lost compare-and-set races are retried against
// the fresh snapshot so the move is re-validated, never blindly replayed.
func (c *Coordinator) MakeMove(ctx context.Context, origin game.Origin, acting game.Player, row, col int) (game.Session, error) {
	if c == nil || c.store == nil {
		return game.Session{}, fmt.Errorf("coordinator is not configured")
	}
	if acting != "" && !acting.Valid() {
		return game.Session{}, errors.New(errors.CodeWrongTurn, "unknown player "+string(acting))
	}
	ctx, span := tracer.Start(ctx, "coordinator.MakeMove")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return game.Session{}, err
		}

		sess, err := c.currentLocked(ctx)
		if err != nil {
			return game.Session{}, err
		}

		actingPlayer := acting
		if actingPlayer == "" {
			actingPlayer = sess.CurrentTurn
		}

		at := c.now().UTC()
		next, err := game.Apply(sess, actingPlayer, row, col, at)
		if err != nil {
			return game.Session{}, err
		}

		move := game.Move{
			SessionID: next.ID,
			Player:    actingPlayer,
			Row:       row,
			Col:       col,
			Timestamp: at,
			Origin:    origin,
		}
		version, err := c.store.PutSessionWithMove(ctx, next, sess.Version, move)
		if err != nil {
			if stderrors.Is(err, storage.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return game.Session{}, errors.Wrap(errors.CodeStoreFailure, "save move", err)
		}
		next.Version = version

		c.notifier.Publish(notifier.Event{Kind: notifier.KindSession, Session: &next})
		return next, nil
	}

	return game.Session{}, errors.Wrap(
		errors.CodeStoreConflict,
		"move lost the write race repeatedly, try again",
		lastErr,
	)
}

// Restart abandons the current session and starts a fresh one. The old
// session's logs are kept; only the current pointer moves.
func (c *Coordinator) Restart(ctx context.Context) (game.Session, error) {
	if c == nil || c.store == nil {
		return game.Session{}, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := tracer.Start(ctx, "coordinator.Restart")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

// PostMessage appends one side-channel message to the current session.
func (c *Coordinator) PostMessage(ctx context.Context, origin game.Origin, body string) (game.Message, error) {
	if c == nil || c.store == nil {
		return game.Message{}, fmt.Errorf("coordinator is not configured")
	}
	if strings.TrimSpace(body) == "" {
		return game.Message{}, errors.New(errors.CodeMessageEmpty, "message must not be empty")
	}
	if len(body) > MaxMessageBytes {
		return game.Message{}, errors.WithMetadata(
			errors.CodeMessageTooLong,
			fmt.Sprintf("message exceeds %d bytes", MaxMessageBytes),
			map[string]string{"max": fmt.Sprintf("%d", MaxMessageBytes)},
		)
	}
	ctx, span := tracer.Start(ctx, "coordinator.PostMessage")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.currentLocked(ctx)
	if err != nil {
		return game.Message{}, err
	}

	msg := game.Message{
		SessionID: sess.ID,
		Body:      body,
		Timestamp: c.now().UTC(),
		Origin:    origin,
	}
	if err := c.store.AppendMessage(ctx, msg); err != nil {
		return game.Message{}, errors.Wrap(errors.CodeStoreFailure, "record message", err)
	}

	c.notifier.Publish(notifier.Event{Kind: notifier.KindMessage, Message: &msg})
	return msg, nil
}

// History returns the current session together with its full move log.
func (c *Coordinator) History(ctx context.Context) (game.Session, []game.Move, error) {
	if c == nil || c.store == nil {
		return game.Session{}, nil, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := tracer.Start(ctx, "coordinator.History")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.currentLocked(ctx)
	if err != nil {
		return game.Session{}, nil, err
	}
	moves, err := c.store.ListMoves(ctx, sess.ID)
	if err != nil {
		return game.Session{}, nil, errors.Wrap(errors.CodeStoreFailure, "load move log", err)
	}
	return sess, moves, nil
}

// Messages returns the current session's side-channel message log.
func (c *Coordinator) Messages(ctx context.Context) ([]game.Message, error) {
	if c == nil || c.store == nil {
		return nil, fmt.Errorf("coordinator is not configured")
	}
	ctx, span := tracer.Start(ctx, "coordinator.Messages")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := c.store.ListMessages(ctx, sess.ID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStoreFailure, "load message log", err)
	}
	return messages, nil
}

// currentLocked resolves the current session, bootstrapping one when the
// pointer is unset. Callers must hold c.mu.
func (c *Coordinator) currentLocked(ctx context.Context) (game.Session, error) {
	id, err := c.store.CurrentPointer(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return c.startLocked(ctx)
		}
		return game.Session{}, errors.Wrap(errors.CodeStoreFailure, "resolve current session", err)
	}

	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return game.Session{}, errors.Wrap(errors.CodeStoreFailure, "load current session", err)
	}
	return sess, nil
}

// startLocked creates a fresh session and repoints the current pointer at
// it. Callers must hold c.mu.
func (c *Coordinator) startLocked(ctx context.Context) (game.Session, error) {
	sess := game.NewSession(uuid.NewString(), c.now())

	version, err := c.store.PutSessionIfVersion(ctx, sess, 0)
	if err != nil {
		return game.Session{}, errors.Wrap(errors.CodeStoreFailure, "create session", err)
	}
	sess.Version = version

	if err := c.store.SetCurrentPointer(ctx, sess.ID); err != nil {
		return game.Session{}, errors.Wrap(errors.CodeStoreFailure, "point at new session", err)
	}

	c.notifier.Publish(notifier.Event{Kind: notifier.KindSession, Session: &sess})
	return sess, nil
}
