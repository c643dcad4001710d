package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

const maxStdioMessage = 4 << 20

// ServeStdio reads newline delimited JSON-RPC messages from r and writes the responses to w.
// Notifications (messages without an id) get no response. It returns when r is exhausted or ctx is done.
func (s *Service) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessage)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var request JSONRPCRequest
		if err := json.Unmarshal(line, &request); err != nil {
			s.logger.WarnContext(ctx, "Invalid JSON-RPC message", "error", err)
			resp := failure(json.RawMessage(`null`), ParseError, "Parse error", err.Error())
			if err := enc.Encode(resp.JSONRPCResponse); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			continue
		}

		resp := s.HandleRequest(ctx, request)
		if request.IsNotification() {
			continue
		}
		if err := enc.Encode(resp.JSONRPCResponse); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}
