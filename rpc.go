package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RPCPathPrefix is prepended to operation names.
const RPCPathPrefix = "/api/"

// RPCError is a non 2xx reply from the API.
type RPCError struct {
	Operation string
	Status    int
	Message   string
}

func (e *RPCError) Error() string {
	if e == nil {
		return "rpc error"
	}
	if e.Message == "" {
		return fmt.Sprintf("rpc %s failed with status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("rpc %s failed with status %d: %s", e.Operation, e.Status, e.Message)
}

// Metadata returns the error details for structured logging.
func (e *RPCError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	return map[string]any{
		"operation": e.Operation,
		"status":    e.Status,
		"message":   e.Message,
	}
}

// Call invokes an API operation: it POSTs input as JSON to /api/<operation>,
// signed, and decodes the JSON reply into out. A nil input sends {} and a
// nil out discards the reply.
func (c *Client) Call(ctx context.Context, operation string, input, out any) error {
	if input == nil {
		input = struct{}{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode rpc input").
			WithMetadata(map[string]any{"operation": operation})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, RPCPathPrefix+operation, bytes.NewReader(payload))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to build rpc request").
			WithMetadata(map[string]any{"operation": operation})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return withError(ErrNetwork, err, map[string]any{"operation": operation, "error": err.Error()})
	}

	isJSON := isJSONContentType(resp.Header.Get("Content-Type"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RPCError{
			Operation: operation,
			Status:    resp.StatusCode,
			Message:   rpcErrorMessage(body, isJSON),
		}
	}

	if !isJSON {
		return withError(ErrProtocol, nil, map[string]any{
			"operation":    operation,
			"content_type": resp.Header.Get("Content-Type"),
			"body":         string(body),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return withError(ErrProtocol, err, map[string]any{"operation": operation, "error": err.Error()})
	}
	return nil
}

// rpcErrorMessage prefers the "error" field used by the API handlers, then
// the "Message" field of platform errors, then the raw body.
func rpcErrorMessage(body []byte, isJSON bool) string {
	if !isJSON {
		return strings.TrimSpace(string(body))
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"error", "Message"} {
		if msg, ok := fields[key].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
