package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-approvals/core"
	goerrors "github.com/goliatone/go-errors"
)

// Send executes req and converts non-2xx responses into transport errors.
func Send(ctx context.Context, adapter core.TransportAdapter, req core.TransportRequest) (core.TransportResponse, error) {
	if adapter == nil {
		return core.TransportResponse{}, transportError(
			"transport: adapter is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	res, err := adapter.Do(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if err := CheckStatus(res, map[string]any{"method": strings.ToUpper(req.Method), "url": req.URL}); err != nil {
		return res, err
	}
	return res, nil
}

func CheckStatus(res core.TransportResponse, metadata map[string]any) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	return core.NewTransportError(res.StatusCode, res.Body, metadata)
}

// DecodeObject parses a JSON object body. ok is false for empty or non-object
// bodies.
func DecodeObject(body []byte) (map[string]any, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, false
	}
	return out, true
}

// DecodeBody returns the decoded JSON value, or the raw text when the body is
// not JSON.
func DecodeBody(body []byte) any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return trimmed
	}
	return out
}

func FirstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if strings.TrimSpace(typed) != "" {
				return strings.TrimSpace(typed)
			}
		case json.Number:
			return typed.String()
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64)
		}
	}
	return ""
}

// DecodeRecord requires a JSON body and always yields a map: non-object values
// are wrapped under "data".
func DecodeRecord(body []byte, source string) (map[string]any, error) {
	if fields, ok := DecodeObject(body); ok {
		return fields, nil
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, core.NewFormatError("body", strings.TrimSpace(source+" response is not valid JSON"))
	}
	return map[string]any{"data": value}, nil
}
