package game

import (
	"testing"
	"time"

	"github.com/louisbranch/gridlock/internal/errors"
)

func inProgressSession(turn Player) Session {
	now := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	return Session{
		ID:          "sess-engine",
		CurrentTurn: turn,
		HumanPlayer: PlayerX,
		AgentPlayer: PlayerO,
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestApplyPlacesMarkAndFlipsTurn(t *testing.T) {
	t.Parallel()

	sess := inProgressSession(PlayerX)
	at := sess.CreatedAt.Add(time.Second)

	next, err := Apply(sess, PlayerX, 1, 1, at)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Grid[1][1] != Cell(PlayerX) {
		t.Fatalf("cell = %q, want %q", next.Grid[1][1], PlayerX)
	}
	if next.CurrentTurn != PlayerO {
		t.Fatalf("turn = %q, want %q", next.CurrentTurn, PlayerO)
	}
	if !next.UpdatedAt.Equal(at) {
		t.Fatalf("updated_at = %v, want %v", next.UpdatedAt, at)
	}
	if sess.Grid[1][1] != CellEmpty {
		t.Fatal("input session must not be modified")
	}
}

func TestApplyRejectionOrder(t *testing.T) {
	t.Parallel()

	// A concluded session with an occupied cell: bounds still win.
	sess := inProgressSession(PlayerX)
	sess.Status = StatusWonO
	sess.Grid[0][0] = Cell(PlayerO)

	if _, err := Apply(sess, PlayerO, -1, 0, time.Now()); !errors.HasCode(err, errors.CodeMoveOutOfBounds) {
		t.Fatalf("error = %v, want %s", err, errors.CodeMoveOutOfBounds)
	}
	// Concluded beats wrong turn and occupied.
	if _, err := Apply(sess, PlayerO, 0, 0, time.Now()); !errors.HasCode(err, errors.CodeSessionConcluded) {
		t.Fatalf("error = %v, want %s", err, errors.CodeSessionConcluded)
	}

	sess.Status = StatusInProgress
	// Wrong turn beats occupied.
	if _, err := Apply(sess, PlayerO, 0, 0, time.Now()); !errors.HasCode(err, errors.CodeWrongTurn) {
		t.Fatalf("error = %v, want %s", err, errors.CodeWrongTurn)
	}
	if _, err := Apply(sess, PlayerX, 0, 0, time.Now()); !errors.HasCode(err, errors.CodeCellOccupied) {
		t.Fatalf("error = %v, want %s", err, errors.CodeCellOccupied)
	}
}

func TestApplyOutOfBoundsVariants(t *testing.T) {
	t.Parallel()

	sess := inProgressSession(PlayerX)
	cases := []Coord{{Row: 3, Col: 0}, {Row: 0, Col: 3}, {Row: -1, Col: 1}, {Row: 1, Col: -1}}
	for _, c := range cases {
		if _, err := Apply(sess, PlayerX, c.Row, c.Col, time.Now()); !errors.HasCode(err, errors.CodeMoveOutOfBounds) {
			t.Fatalf("(%d,%d) error = %v, want %s", c.Row, c.Col, err, errors.CodeMoveOutOfBounds)
		}
	}
}

func TestApplyDetectsWinAndKeepsTurn(t *testing.T) {
	t.Parallel()

	sess := inProgressSession(PlayerX)
	sess.Grid[0][0] = Cell(PlayerX)
	sess.Grid[0][1] = Cell(PlayerX)
	sess.Grid[1][0] = Cell(PlayerO)
	sess.Grid[1][1] = Cell(PlayerO)

	next, err := Apply(sess, PlayerX, 0, 2, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Status != StatusWonX {
		t.Fatalf("status = %q, want %q", next.Status, StatusWonX)
	}
	if next.WinningLine == nil {
		t.Fatal("expected winning line")
	}
	want := Line{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}
	if *next.WinningLine != want {
		t.Fatalf("winning line = %v, want %v", *next.WinningLine, want)
	}
	if next.CurrentTurn != PlayerX {
		t.Fatalf("turn flipped after conclusion: %q", next.CurrentTurn)
	}
}

func TestApplyDetectsDraw(t *testing.T) {
	t.Parallel()

	// X O X
	// X O O
	// O X _   with X to move at (2,2)
	sess := inProgressSession(PlayerX)
	layout := [GridSize][GridSize]Cell{
		{"X", "O", "X"},
		{"X", "O", "O"},
		{"O", "X", ""},
	}
	sess.Grid = layout

	next, err := Apply(sess, PlayerX, 2, 2, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Status != StatusDraw {
		t.Fatalf("status = %q, want %q", next.Status, StatusDraw)
	}
	if next.WinningLine != nil {
		t.Fatalf("unexpected winning line: %v", *next.WinningLine)
	}
}

func TestEvaluateAllLines(t *testing.T) {
	t.Parallel()

	for _, line := range winningLines {
		var g Grid
		for _, c := range line {
			g[c.Row][c.Col] = Cell(PlayerO)
		}
		status, got := Evaluate(g)
		if status != StatusWonO {
			t.Fatalf("line %v status = %q, want %q", line, status, StatusWonO)
		}
		if got == nil || *got != line {
			t.Fatalf("line %v detected as %v", line, got)
		}
	}
}

func TestEvaluateEmptyGridInProgress(t *testing.T) {
	t.Parallel()

	status, line := Evaluate(Grid{})
	if status != StatusInProgress {
		t.Fatalf("status = %q, want %q", status, StatusInProgress)
	}
	if line != nil {
		t.Fatalf("unexpected line: %v", *line)
	}
}
