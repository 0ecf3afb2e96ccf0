package game

import (
	"strconv"

	"github.com/louisbranch/gridlock/internal/errors"
)

// Replay folds an ordered move log into a grid. The moves must already be in
// total order; replaying the stored log for a session must reproduce its
// current grid exactly. A move that falls off the grid or lands on an
// occupied cell means the log is corrupt and is rejected rather than
// repaired.
func Replay(moves []Move) (Grid, error) {
	var g Grid
	for i, m := range moves {
		target := Coord{Row: m.Row, Col: m.Col}
		if !target.InBounds() {
			return Grid{}, errors.WithMetadata(
				errors.CodeMoveOutOfBounds,
				"move log entry "+strconv.Itoa(i)+" is out of bounds",
				map[string]string{"row": strconv.Itoa(m.Row), "col": strconv.Itoa(m.Col)},
			)
		}
		if g[m.Row][m.Col] != CellEmpty {
			return Grid{}, errors.WithMetadata(
				errors.CodeCellOccupied,
				"move log entry "+strconv.Itoa(i)+" targets an occupied cell",
				map[string]string{"row": strconv.Itoa(m.Row), "col": strconv.Itoa(m.Col)},
			)
		}
		g[m.Row][m.Col] = Cell(m.Player)
	}
	return g, nil
}
