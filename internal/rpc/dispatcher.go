package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/louisbranch/gridlock/internal/errors"
	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
)

// ServiceName and ServiceVersion identify this protocol surface to clients.
const (
	ServiceName    = "gridlock"
	ServiceVersion = "1.0.0"
)

// Game is the slice of the coordinator the dispatcher drives.
type Game interface {
	CurrentState(ctx context.Context) (game.Session, error)
	MakeMove(ctx context.Context, origin game.Origin, acting game.Player, row, col int) (game.Session, error)
	Restart(ctx context.Context) (game.Session, error)
	PostMessage(ctx context.Context, origin game.Origin, body string) (game.Message, error)
	History(ctx context.Context) (game.Session, []game.Move, error)
	Messages(ctx context.Context) ([]game.Message, error)
}

// Param describes one declared method parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// MethodInfo is the public description of one registry entry.
type MethodInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

type handlerFunc func(ctx context.Context, params map[string]any) (any, *Error)

type methodSpec struct {
	description string
	params      []Param
	mutating    bool
	handler     handlerFunc
}

// Dispatcher validates and routes requests against a closed method registry.
// Every instance speaks for one origin; moves and messages it forwards are
// attributed to that surface.
type Dispatcher struct {
	game     Game
	notifier *notifier.Notifier
	origin   game.Origin
	methods  map[string]methodSpec
}

// NewDispatcher builds the registry over the given game surface.
func NewDispatcher(g Game, n *notifier.Notifier, origin game.Origin) *Dispatcher {
	d := &Dispatcher{
		game:     g,
		notifier: n,
		origin:   origin,
	}
	d.methods = map[string]methodSpec{
		"view_game_state": {
			description: "Full session snapshot with move and message history",
			handler:     d.viewGameState,
		},
		"get_turn": {
			description: "Whose turn it is right now",
			handler:     d.getTurn,
		},
		"make_move": {
			description: "Place a mark on the grid",
			params: []Param{
				{Name: "row", Type: "integer", Required: true, Description: "Row index, 0-2"},
				{Name: "col", Type: "integer", Required: true, Description: "Column index, 0-2"},
				{Name: "player", Type: "string", Required: false, Description: "Acting player, X or O; defaults to whoever holds the turn"},
			},
			mutating: true,
			handler:  d.makeMove,
		},
		"taunt_player": {
			description: "Send a side-channel message to the opponent",
			params: []Param{
				{Name: "message", Type: "string", Required: true, Description: "Message body"},
			},
			mutating: true,
			handler:  d.tauntPlayer,
		},
		"restart_game": {
			description: "Abandon the current session and start a fresh one",
			mutating:    true,
			handler:     d.restartGame,
		},
		"get_game_history": {
			description: "Ordered move log for the current session",
			handler:     d.getGameHistory,
		},
		"get_capabilities": {
			description: "Service name, version and protocol revision",
			handler:     d.getCapabilities,
		},
		"list_methods": {
			description: "Every available method with its parameter schema",
			handler:     d.listMethods,
		},
	}
	return d
}

// Methods returns the registry contents in a stable order.
func (d *Dispatcher) Methods() []MethodInfo {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]MethodInfo, 0, len(names))
	for _, name := range names {
		spec := d.methods[name]
		params := spec.params
		if params == nil {
			params = []Param{}
		}
		infos = append(infos, MethodInfo{
			Name:        name,
			Description: spec.description,
			Params:      params,
		})
	}
	return infos
}

// Dispatch validates parameters and runs one method. Mutating methods are
// bracketed with activity events so observers can show work in flight.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, rawParams json.RawMessage) (any, *Error) {
	if d == nil || d.game == nil {
		return nil, NewError(errors.RPCInternalError, "dispatcher is not configured")
	}

	spec, ok := d.methods[method]
	if !ok {
		return nil, NewError(errors.RPCMethodNotFound, fmt.Sprintf("unknown method %q", method))
	}

	params, rpcErr := decodeParams(rawParams)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := validateParams(spec.params, params); rpcErr != nil {
		return nil, rpcErr
	}

	if spec.mutating {
		d.notifier.ActivityStarted(method)
		defer d.notifier.ActivityEnded(method)
	}

	return spec.handler(ctx, params)
}

// HandleLine processes one line-delimited request and returns the response
// line, both without the trailing newline.
func (d *Dispatcher) HandleLine(ctx context.Context, line string) string {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return marshalResponse(ErrorResponse(nil, NewError(errors.RPCParseError, "parse error")))
	}
	if req.JSONRPC != Version || req.Method == "" {
		return marshalResponse(ErrorResponse(req.ID, NewError(errors.RPCInvalidRequest, "invalid request")))
	}

	result, rpcErr := d.Dispatch(ctx, req.Method, req.Params)
	if rpcErr != nil {
		return marshalResponse(ErrorResponse(req.ID, rpcErr))
	}
	return marshalResponse(ResultResponse(req.ID, result))
}

func marshalResponse(resp Response) string {
	payload, err := json.Marshal(resp)
	if err != nil {
		return `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`
	}
	return string(payload)
}

func decodeParams(raw json.RawMessage) (map[string]any, *Error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewError(errors.RPCInvalidParams, "params must be an object")
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func validateParams(declared []Param, params map[string]any) *Error {
	for _, p := range declared {
		value, present := params[p.Name]
		if !present {
			if p.Required {
				return NewError(errors.RPCInvalidParams, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		switch p.Type {
		case "integer":
			number, ok := value.(float64)
			if !ok || number != math.Trunc(number) {
				return NewError(errors.RPCInvalidParams, fmt.Sprintf("parameter %q must be an integer", p.Name))
			}
		case "string":
			if _, ok := value.(string); !ok {
				return NewError(errors.RPCInvalidParams, fmt.Sprintf("parameter %q must be a string", p.Name))
			}
		}
	}
	return nil
}

func intParam(params map[string]any, name string) int {
	number, _ := params[name].(float64)
	return int(number)
}

func stringParam(params map[string]any, name string) string {
	value, _ := params[name].(string)
	return value
}

type gameStateView struct {
	game.Session
	MoveHistory []game.Move    `json:"moveHistory"`
	Taunts      []game.Message `json:"taunts"`
}

type turnView struct {
	CurrentTurn game.Player `json:"currentTurn"`
	IsHumanTurn bool        `json:"isHumanTurn"`
	IsAgentTurn bool        `json:"isAgentTurn"`
}

type moveResult struct {
	Success   bool         `json:"success"`
	GameState game.Session `json:"gameState"`
	Message   string       `json:"message"`
}

type ackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (d *Dispatcher) viewGameState(ctx context.Context, _ map[string]any) (any, *Error) {
	sess, moves, err := d.game.History(ctx)
	if err != nil {
		return nil, domainError(err)
	}
	messages, err := d.game.Messages(ctx)
	if err != nil {
		return nil, domainError(err)
	}
	if moves == nil {
		moves = []game.Move{}
	}
	if messages == nil {
		messages = []game.Message{}
	}
	return gameStateView{Session: sess, MoveHistory: moves, Taunts: messages}, nil
}

func (d *Dispatcher) getTurn(ctx context.Context, _ map[string]any) (any, *Error) {
	sess, err := d.game.CurrentState(ctx)
	if err != nil {
		return nil, domainError(err)
	}
	return turnView{
		CurrentTurn: sess.CurrentTurn,
		IsHumanTurn: sess.CurrentTurn == sess.HumanPlayer,
		IsAgentTurn: sess.CurrentTurn == sess.AgentPlayer,
	}, nil
}

func (d *Dispatcher) makeMove(ctx context.Context, params map[string]any) (any, *Error) {
	acting := game.Player(stringParam(params, "player"))
	if acting != "" && !acting.Valid() {
		return nil, NewError(errors.RPCInvalidParams, `parameter "player" must be "X" or "O"`)
	}

	sess, err := d.game.MakeMove(ctx, d.origin, acting, intParam(params, "row"), intParam(params, "col"))
	if err != nil {
		return nil, domainError(err)
	}
	return moveResult{Success: true, GameState: sess, Message: "Move made successfully"}, nil
}

func (d *Dispatcher) tauntPlayer(ctx context.Context, params map[string]any) (any, *Error) {
	if _, err := d.game.PostMessage(ctx, d.origin, stringParam(params, "message")); err != nil {
		return nil, domainError(err)
	}
	return ackResult{Success: true, Message: "Taunt sent successfully"}, nil
}

func (d *Dispatcher) restartGame(ctx context.Context, _ map[string]any) (any, *Error) {
	sess, err := d.game.Restart(ctx)
	if err != nil {
		return nil, domainError(err)
	}
	return moveResult{Success: true, GameState: sess, Message: "Game restarted"}, nil
}

func (d *Dispatcher) getGameHistory(ctx context.Context, _ map[string]any) (any, *Error) {
	_, moves, err := d.game.History(ctx)
	if err != nil {
		return nil, domainError(err)
	}
	if moves == nil {
		moves = []game.Move{}
	}
	return map[string]any{"moves": moves}, nil
}

func (d *Dispatcher) getCapabilities(_ context.Context, _ map[string]any) (any, *Error) {
	infos := d.Methods()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return map[string]any{
		"name":     ServiceName,
		"version":  ServiceVersion,
		"protocol": "json-rpc",
		"revision": Version,
		"methods":  names,
	}, nil
}

func (d *Dispatcher) listMethods(_ context.Context, _ map[string]any) (any, *Error) {
	return map[string]any{"methods": d.Methods()}, nil
}

// domainError maps a coordinator error onto the wire envelope. Store
// internals never reach callers; anything without a dedicated wire code
// surfaces as a generic internal error.
func domainError(err error) *Error {
	code := errors.CodeOf(err)
	rpcCode := code.RPCCode()
	if rpcCode == errors.RPCInternalError {
		return NewError(errors.RPCInternalError, "internal error")
	}
	return NewErrorWithData(rpcCode, err.Error(), map[string]any{"code": string(code)})
}
