package game

import "time"

// GridSize is the number of rows and columns on the board.
const GridSize = 3

// Player identifies one of the two parties in a session.
type Player string

const (
	PlayerX Player = "X"
	PlayerO Player = "O"
)

// Opponent returns the other player.
func (p Player) Opponent() Player {
	if p == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// Valid reports whether p is one of the two known players.
func (p Player) Valid() bool {
	return p == PlayerX || p == PlayerO
}

// Cell is one board position. The empty string means unoccupied.
type Cell string

// CellEmpty is the zero value for an unoccupied cell.
const CellEmpty Cell = ""

// Grid is the 3x3 board, indexed [row][col].
type Grid [GridSize][GridSize]Cell

// Full reports whether every cell is occupied.
func (g Grid) Full() bool {
	for _, row := range g {
		for _, cell := range row {
			if cell == CellEmpty {
				return false
			}
		}
	}
	return true
}

// Status is the session lifecycle state. The wire strings match the
// persisted representation.
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusWonX       Status = "Won_X"
	StatusWonO       Status = "Won_O"
	StatusDraw       Status = "Draw"
)

// WonBy returns the won status for the given player.
func WonBy(p Player) Status {
	if p == PlayerX {
		return StatusWonX
	}
	return StatusWonO
}

// Concluded reports whether the session has reached a terminal status.
func (s Status) Concluded() bool {
	return s != StatusInProgress
}

// Winner returns the winning player when the status is a win.
func (s Status) Winner() (Player, bool) {
	switch s {
	case StatusWonX:
		return PlayerX, true
	case StatusWonO:
		return PlayerO, true
	}
	return "", false
}

// Coord addresses one cell on the grid.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the coordinate lies on the grid.
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < GridSize && c.Col >= 0 && c.Col < GridSize
}

// Line is a winning three-in-a-row.
type Line [GridSize]Coord

// Origin records which surface produced a move or message.
type Origin string

const (
	OriginUI    Origin = "ui"
	OriginAgent Origin = "agent"
)

// Session is one logical game instance. Version is assigned by the store on
// every successful write and increases monotonically; it is the token used
// for cross-process compare-and-set.
type Session struct {
	ID          string    `json:"id"`
	Grid        Grid      `json:"board"`
	CurrentTurn Player    `json:"currentTurn"`
	HumanPlayer Player    `json:"humanPlayer"`
	AgentPlayer Player    `json:"agentPlayer"`
	Status      Status    `json:"status"`
	WinningLine *Line     `json:"winningLine,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlayerFor maps an origin to the party it controls.
func (s Session) PlayerFor(origin Origin) Player {
	if origin == OriginAgent {
		return s.AgentPlayer
	}
	return s.HumanPlayer
}

// Move is one append-only move record.
type Move struct {
	SessionID string    `json:"sessionId"`
	Player    Player    `json:"player"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin,omitempty"`
}

// Message is one append-only side-channel message record.
type Message struct {
	SessionID string    `json:"sessionId"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin,omitempty"`
}
