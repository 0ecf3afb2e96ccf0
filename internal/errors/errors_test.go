package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("disk full")
	err := Wrap(CodeStoreFailure, "save session", cause)

	if err.Error() != "save session" {
		t.Fatalf("message = %q, want %q", err.Error(), "save session")
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("cause must be reachable through the chain")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeWrongTurn, "not yet")
	if !stderrors.Is(err, New(CodeWrongTurn, "different message")) {
		t.Fatal("errors with the same code must match")
	}
	if stderrors.Is(err, New(CodeCellOccupied, "taken")) {
		t.Fatal("errors with different codes must not match")
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	if got := CodeOf(New(CodeMoveOutOfBounds, "off grid")); got != CodeMoveOutOfBounds {
		t.Fatalf("code = %s, want %s", got, CodeMoveOutOfBounds)
	}

	wrapped := fmt.Errorf("handler: %w", New(CodeSessionConcluded, "over"))
	if got := CodeOf(wrapped); got != CodeSessionConcluded {
		t.Fatalf("code through chain = %s, want %s", got, CodeSessionConcluded)
	}

	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("plain error code = %s, want %s", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("nil error code = %s, want %s", got, CodeUnknown)
	}
}

func TestRPCCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeMoveOutOfBounds, RPCMoveOutOfBounds},
		{CodeCellOccupied, RPCCellOccupied},
		{CodeWrongTurn, RPCWrongTurn},
		{CodeSessionConcluded, RPCSessionConcluded},
		{CodeStoreConflict, RPCStoreConflict},
		{CodeMessageEmpty, RPCInvalidParams},
		{CodeMessageTooLong, RPCInvalidParams},
		{CodeStoreFailure, RPCInternalError},
		{CodeNotFound, RPCInternalError},
		{CodeUnknown, RPCInternalError},
	}
	for _, tc := range cases {
		if got := tc.code.RPCCode(); got != tc.want {
			t.Fatalf("%s rpc code = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestWithMetadata(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeMoveOutOfBounds, "off grid", map[string]string{"row": "5"})
	if err.Metadata["row"] != "5" {
		t.Fatalf("metadata = %v", err.Metadata)
	}
}
