// Package stdio binds the dispatcher to a line-delimited stream: one
// request per input line, one response per output line, in order.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/gridlock/internal/rpc"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

// Server drives the dispatcher from an input stream.
type Server struct {
	dispatcher *rpc.Dispatcher
	in         io.Reader
	out        io.Writer
}

// New builds a stdio server over the given streams.
func New(dispatcher *rpc.Dispatcher, in io.Reader, out io.Writer) *Server {
	return &Server{dispatcher: dispatcher, in: in, out: out}
}

// Run reads request lines until EOF or context cancellation. Responses are
// written in request order; blank lines are skipped.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.dispatcher == nil {
		return fmt.Errorf("stdio server is not configured")
	}

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		response := s.dispatcher.HandleLine(ctx, line)
		if _, err := fmt.Fprintln(s.out, response); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request line: %w", err)
	}
	return nil
}
