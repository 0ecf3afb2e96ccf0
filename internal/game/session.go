package game

import (
	"math/rand/v2"
	"time"
)

// NewSession creates a fresh in-progress session. The human and agent are
// randomly assigned X or O and a coin flip decides who moves first, so
// neither surface systematically opens the game.
func NewSession(id string, now time.Time) Session {
	human := PlayerX
	if rand.IntN(2) == 0 {
		human = PlayerO
	}
	first := human
	if rand.IntN(2) == 0 {
		first = human.Opponent()
	}

	created := now.UTC()
	return Session{
		ID:          id,
		CurrentTurn: first,
		HumanPlayer: human,
		AgentPlayer: human.Opponent(),
		Status:      StatusInProgress,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
