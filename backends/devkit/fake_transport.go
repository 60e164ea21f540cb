package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-approvals/core"
)

// TransportScript is one scripted reply. Match, when set, routes the script to
// requests whose URL contains it; otherwise scripts are consumed in order.
type TransportScript struct {
	Match    string
	Response core.TransportResponse
	Err      error
}

// FakeTransportAdapter replays scripted responses and records every request.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	used     []bool
	requests []core.TransportRequest
	gate     chan struct{}
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
		used:    make([]bool, len(scripts)),
	}
}

// Hold makes every Do call block until Release is called or ctx ends.
func (a *FakeTransportAdapter) Hold() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate == nil {
		a.gate = make(chan struct{})
	}
}

func (a *FakeTransportAdapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate != nil {
		close(a.gate)
		a.gate = nil
	}
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	a.requests = append(a.requests, cloneTransportRequest(req))
	gate := a.gate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return core.TransportResponse{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if script, ok := a.next(req.URL); ok {
		return cloneTransportResponse(script.Response), script.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *FakeTransportAdapter) next(url string) (TransportScript, bool) {
	for index, script := range a.scripts {
		if a.used[index] {
			continue
		}
		if script.Match != "" && !strings.Contains(url, script.Match) {
			continue
		}
		a.used[index] = true
		return script, true
	}
	// Exhausted: repeat the last matching script.
	for index := len(a.scripts) - 1; index >= 0; index-- {
		script := a.scripts[index]
		if script.Match == "" || strings.Contains(url, script.Match) {
			return script, true
		}
	}
	return TransportScript{}, false
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns recorded requests whose URL contains fragment.
func (a *FakeTransportAdapter) RequestsTo(fragment string) []core.TransportRequest {
	out := []core.TransportRequest{}
	for _, item := range a.Requests() {
		if strings.Contains(item.URL, fragment) {
			out = append(out, item)
		}
	}
	return out
}

func JSONResponse(status int, body string) core.TransportResponse {
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
