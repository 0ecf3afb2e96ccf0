// Package mcptools exposes the protocol registry as MCP tools. Handlers go
// through the dispatcher, so parameter validation and activity bracketing
// behave exactly as they do on the other transports.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/gridlock/internal/rpc"
)

// SessionSummary is the tool-facing session snapshot.
type SessionSummary struct {
	ID          string       `json:"id" jsonschema:"session identifier"`
	Board       [3][3]string `json:"board" jsonschema:"3x3 grid, empty string for free cells"`
	CurrentTurn string       `json:"currentTurn" jsonschema:"player holding the turn, X or O"`
	HumanPlayer string       `json:"humanPlayer,omitempty" jsonschema:"mark held by the human"`
	AgentPlayer string       `json:"agentPlayer,omitempty" jsonschema:"mark held by the agent"`
	Status      string       `json:"status" jsonschema:"InProgress, Won_X, Won_O or Draw"`
	Version     int64        `json:"version,omitempty" jsonschema:"monotonic session version"`
}

// MoveRecord is one entry of the move log.
type MoveRecord struct {
	Player    string    `json:"player" jsonschema:"player who moved"`
	Row       int       `json:"row" jsonschema:"row index"`
	Col       int       `json:"col" jsonschema:"column index"`
	Timestamp time.Time `json:"timestamp" jsonschema:"when the move was made"`
	Origin    string    `json:"origin,omitempty" jsonschema:"surface that made the move"`
}

// TauntRecord is one entry of the side-channel message log.
type TauntRecord struct {
	Message   string    `json:"message" jsonschema:"message body"`
	Timestamp time.Time `json:"timestamp" jsonschema:"when the message was sent"`
	Origin    string    `json:"origin,omitempty" jsonschema:"surface that sent the message"`
}

// ViewGameStateInput is empty; the tool reads the current session.
type ViewGameStateInput struct{}

// ViewGameStateResult is the full current state with both logs.
type ViewGameStateResult struct {
	SessionSummary
	MoveHistory []MoveRecord  `json:"moveHistory" jsonschema:"ordered move log"`
	Taunts      []TauntRecord `json:"taunts" jsonschema:"ordered message log"`
}

// GetTurnInput is empty; the tool reads the current session.
type GetTurnInput struct{}

// GetTurnResult says whose turn it is.
type GetTurnResult struct {
	CurrentTurn string `json:"currentTurn" jsonschema:"player holding the turn"`
	IsHumanTurn bool   `json:"isHumanTurn" jsonschema:"true when the human holds the turn"`
	IsAgentTurn bool   `json:"isAgentTurn" jsonschema:"true when the agent holds the turn"`
}

// MakeMoveInput places one mark.
type MakeMoveInput struct {
	Row    int    `json:"row" jsonschema:"row index, 0-2"`
	Col    int    `json:"col" jsonschema:"column index, 0-2"`
	Player string `json:"player,omitempty" jsonschema:"acting player, X or O; defaults to whoever holds the turn"`
}

// MakeMoveResult reports the applied move and the resulting state.
type MakeMoveResult struct {
	Success   bool           `json:"success" jsonschema:"whether the move was applied"`
	GameState SessionSummary `json:"gameState" jsonschema:"resulting session state"`
	Message   string         `json:"message" jsonschema:"human-readable confirmation"`
}

// TauntPlayerInput sends one side-channel message.
type TauntPlayerInput struct {
	Message string `json:"message" jsonschema:"message body, at most 280 bytes"`
}

// AckResult is a bare success acknowledgement.
type AckResult struct {
	Success bool   `json:"success" jsonschema:"whether the call succeeded"`
	Message string `json:"message" jsonschema:"human-readable confirmation"`
}

// RestartGameInput is empty; the tool always starts a fresh session.
type RestartGameInput struct{}

// GetGameHistoryInput is empty; the tool reads the current session.
type GetGameHistoryInput struct{}

// GetGameHistoryResult is the ordered move log.
type GetGameHistoryResult struct {
	Moves []MoveRecord `json:"moves" jsonschema:"ordered move log"`
}

// Register adds every registry method as an MCP tool on the server.
func Register(server *mcp.Server, dispatcher *rpc.Dispatcher) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_game_state",
		Description: "View the full current game state, including move and taunt history",
	}, ViewGameStateHandler(dispatcher))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_turn",
		Description: "Check whose turn it is",
	}, GetTurnHandler(dispatcher))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "make_move",
		Description: "Place a mark on the grid",
	}, MakeMoveHandler(dispatcher))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "taunt_player",
		Description: "Send a taunt to the opponent",
	}, TauntPlayerHandler(dispatcher))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "restart_game",
		Description: "Abandon the current game and start a fresh one",
	}, RestartGameHandler(dispatcher))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_game_history",
		Description: "Get the ordered move log for the current game",
	}, GetGameHistoryHandler(dispatcher))
}

// ViewGameStateHandler serves the view_game_state tool.
func ViewGameStateHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[ViewGameStateInput, ViewGameStateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ViewGameStateInput) (*mcp.CallToolResult, ViewGameStateResult, error) {
		var out ViewGameStateResult
		if err := roundTrip(ctx, dispatcher, "view_game_state", nil, &out); err != nil {
			return nil, ViewGameStateResult{}, err
		}
		return nil, out, nil
	}
}

// GetTurnHandler serves the get_turn tool.
func GetTurnHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[GetTurnInput, GetTurnResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ GetTurnInput) (*mcp.CallToolResult, GetTurnResult, error) {
		var out GetTurnResult
		if err := roundTrip(ctx, dispatcher, "get_turn", nil, &out); err != nil {
			return nil, GetTurnResult{}, err
		}
		return nil, out, nil
	}
}

// MakeMoveHandler serves the make_move tool.
func MakeMoveHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[MakeMoveInput, MakeMoveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MakeMoveInput) (*mcp.CallToolResult, MakeMoveResult, error) {
		var out MakeMoveResult
		if err := roundTrip(ctx, dispatcher, "make_move", input, &out); err != nil {
			return nil, MakeMoveResult{}, err
		}
		return nil, out, nil
	}
}

// TauntPlayerHandler serves the taunt_player tool.
func TauntPlayerHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[TauntPlayerInput, AckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TauntPlayerInput) (*mcp.CallToolResult, AckResult, error) {
		var out AckResult
		if err := roundTrip(ctx, dispatcher, "taunt_player", input, &out); err != nil {
			return nil, AckResult{}, err
		}
		return nil, out, nil
	}
}

// RestartGameHandler serves the restart_game tool.
func RestartGameHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[RestartGameInput, MakeMoveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ RestartGameInput) (*mcp.CallToolResult, MakeMoveResult, error) {
		var out MakeMoveResult
		if err := roundTrip(ctx, dispatcher, "restart_game", nil, &out); err != nil {
			return nil, MakeMoveResult{}, err
		}
		return nil, out, nil
	}
}

// GetGameHistoryHandler serves the get_game_history tool.
func GetGameHistoryHandler(dispatcher *rpc.Dispatcher) mcp.ToolHandlerFor[GetGameHistoryInput, GetGameHistoryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ GetGameHistoryInput) (*mcp.CallToolResult, GetGameHistoryResult, error) {
		var out GetGameHistoryResult
		if err := roundTrip(ctx, dispatcher, "get_game_history", nil, &out); err != nil {
			return nil, GetGameHistoryResult{}, err
		}
		return nil, out, nil
	}
}

// roundTrip dispatches one registry method and decodes its result into the
// tool output type.
func roundTrip(ctx context.Context, dispatcher *rpc.Dispatcher, method string, input any, out any) error {
	var params json.RawMessage
	if input != nil {
		encoded, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", method, err)
		}
		params = encoded
	}

	result, rpcErr := dispatcher.Dispatch(ctx, method, params)
	if rpcErr != nil {
		return rpcErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode %s result: %w", method, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
