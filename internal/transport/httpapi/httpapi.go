// Package httpapi binds the dispatcher to HTTP: a JSON-RPC endpoint, a REST
// surface for browser clients and a Server-Sent Events change feed.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/louisbranch/gridlock/internal/errors"
	"github.com/louisbranch/gridlock/internal/notifier"
	"github.com/louisbranch/gridlock/internal/rpc"
)

// Server exposes the protocol over HTTP.
type Server struct {
	dispatcher *rpc.Dispatcher
	notifier   *notifier.Notifier
}

// New builds an HTTP server over the given dispatcher and change feed.
func New(dispatcher *rpc.Dispatcher, n *notifier.Notifier) *Server {
	return &Server{dispatcher: dispatcher, notifier: n}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/game", s.handleGetGame)
	mux.HandleFunc("POST /api/game/move", s.handleMove)
	mux.HandleFunc("POST /api/game/new", s.handleNewGame)
	mux.HandleFunc("POST /api/game/taunt", s.handleTaunt)
	return mux
}

// handleRPC serves raw JSON-RPC envelopes. Protocol errors ride inside the
// envelope, so the HTTP status is 200 either way.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpc.ErrorResponse(nil, rpc.NewError(errors.RPCParseError, "parse error")))
		return
	}
	if req.JSONRPC != rpc.Version || req.Method == "" {
		writeJSON(w, http.StatusOK, rpc.ErrorResponse(req.ID, rpc.NewError(errors.RPCInvalidRequest, "invalid request")))
		return
	}

	result, rpcErr := s.dispatcher.Dispatch(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		writeJSON(w, http.StatusOK, rpc.ErrorResponse(req.ID, rpcErr))
		return
	}
	writeJSON(w, http.StatusOK, rpc.ResultResponse(req.ID, result))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	s.restDispatch(w, r, "view_game_state", nil)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.restDispatch(w, r, "make_move", params)
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	s.restDispatch(w, r, "restart_game", nil)
}

func (s *Server) handleTaunt(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.restDispatch(w, r, "taunt_player", params)
}

// restDispatch runs one registry method and translates protocol errors into
// HTTP statuses for plain REST clients.
func (s *Server) restDispatch(w http.ResponseWriter, r *http.Request, method string, params json.RawMessage) {
	result, rpcErr := s.dispatcher.Dispatch(r.Context(), method, params)
	if rpcErr != nil {
		writeJSON(w, httpStatusFor(rpcErr.Code), map[string]any{"error": rpcErr})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var params json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": rpc.NewError(errors.RPCParseError, "request body must be JSON"),
		})
		return nil, false
	}
	return params, true
}

func httpStatusFor(code int) int {
	switch code {
	case errors.RPCInvalidParams, errors.RPCInvalidRequest, errors.RPCParseError,
		errors.RPCMoveOutOfBounds, errors.RPCCellOccupied, errors.RPCWrongTurn,
		errors.RPCSessionConcluded:
		return http.StatusBadRequest
	case errors.RPCStoreConflict:
		return http.StatusConflict
	case errors.RPCMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
