package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
	"github.com/louisbranch/gridlock/internal/rpc"
)

type stubGame struct {
	sess game.Session
}

func (s *stubGame) CurrentState(ctx context.Context) (game.Session, error) {
	return s.sess, nil
}

func (s *stubGame) MakeMove(ctx context.Context, origin game.Origin, acting game.Player, row, col int) (game.Session, error) {
	return s.sess, nil
}

func (s *stubGame) Restart(ctx context.Context) (game.Session, error) {
	return s.sess, nil
}

func (s *stubGame) PostMessage(ctx context.Context, origin game.Origin, body string) (game.Message, error) {
	return game.Message{SessionID: s.sess.ID, Body: body, Origin: origin}, nil
}

func (s *stubGame) History(ctx context.Context) (game.Session, []game.Move, error) {
	return s.sess, nil, nil
}

func (s *stubGame) Messages(ctx context.Context) ([]game.Message, error) {
	return nil, nil
}

func newTestServer(in string, out *bytes.Buffer) *Server {
	stub := &stubGame{sess: game.Session{
		ID:          "sess-stdio",
		CurrentTurn: game.PlayerX,
		HumanPlayer: game.PlayerX,
		AgentPlayer: game.PlayerO,
		Status:      game.StatusInProgress,
	}}
	dispatcher := rpc.NewDispatcher(stub, notifier.New(nil, 0), game.OriginAgent)
	return New(dispatcher, strings.NewReader(in), out)
}

func TestRunAnswersInOrder(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"get_capabilities"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"get_turn"}`,
		`{broken`,
	}, "\n") + "\n"

	var out bytes.Buffer
	server := newTestServer(input, &out)
	if err := server.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("responses = %d, want 3: %q", len(lines), out.String())
	}

	wantIDs := []string{"1", "2", "null"}
	for i, line := range lines {
		var resp rpc.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d is not valid JSON: %v", i, err)
		}
		if string(resp.ID) != wantIDs[i] {
			t.Fatalf("response %d id = %s, want %s", i, resp.ID, wantIDs[i])
		}
	}

	var last rpc.Response
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("unmarshal last response: %v", err)
	}
	if last.Error == nil {
		t.Fatal("malformed line must produce an error response")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	server := newTestServer(`{"jsonrpc":"2.0","id":1,"method":"get_turn"}`+"\n", &out)
	if err := server.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunEOFWithoutInput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	server := newTestServer("", &out)
	if err := server.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
