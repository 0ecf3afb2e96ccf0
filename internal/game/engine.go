package game

import (
	"strconv"
	"time"

	"github.com/louisbranch/gridlock/internal/errors"
)

// winningLines enumerates every three-in-a-row: three rows, three columns,
// two diagonals.
var winningLines = [8]Line{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Apply plays one move for the acting player against a session snapshot and
// returns the resulting snapshot. The input session is never modified. A
// rejected move returns a coded domain error and the snapshot is unusable.
//
// Rejections, in evaluation order: coordinates off the grid, session already
// concluded, acting player out of turn, target cell occupied.
func Apply(s Session, acting Player, row, col int, at time.Time) (Session, error) {
	target := Coord{Row: row, Col: col}
	if !target.InBounds() {
		return Session{}, errors.WithMetadata(
			errors.CodeMoveOutOfBounds,
			"move ("+strconv.Itoa(row)+", "+strconv.Itoa(col)+") is out of bounds (must be 0-2)",
			map[string]string{"row": strconv.Itoa(row), "col": strconv.Itoa(col)},
		)
	}
	if s.Status.Concluded() {
		return Session{}, errors.WithMetadata(
			errors.CodeSessionConcluded,
			"session is already over: "+string(s.Status),
			map[string]string{"status": string(s.Status)},
		)
	}
	if acting != s.CurrentTurn {
		return Session{}, errors.WithMetadata(
			errors.CodeWrongTurn,
			"it is not "+string(acting)+"'s turn",
			map[string]string{"player": string(acting)},
		)
	}
	if s.Grid[row][col] != CellEmpty {
		return Session{}, errors.WithMetadata(
			errors.CodeCellOccupied,
			"cell ("+strconv.Itoa(row)+", "+strconv.Itoa(col)+") is already occupied",
			map[string]string{"row": strconv.Itoa(row), "col": strconv.Itoa(col)},
		)
	}

	next := s
	next.Grid[row][col] = Cell(acting)
	next.UpdatedAt = at.UTC()

	status, line := Evaluate(next.Grid)
	next.Status = status
	next.WinningLine = line
	if status == StatusInProgress {
		next.CurrentTurn = acting.Opponent()
	}
	return next, nil
}

// Evaluate determines the status of a grid and, on a win, the winning line.
func Evaluate(g Grid) (Status, *Line) {
	for _, line := range winningLines {
		first := g[line[0].Row][line[0].Col]
		if first == CellEmpty {
			continue
		}
		if g[line[1].Row][line[1].Col] == first && g[line[2].Row][line[2].Col] == first {
			won := line
			return WonBy(Player(first)), &won
		}
	}
	if g.Full() {
		return StatusDraw, nil
	}
	return StatusInProgress, nil
}
