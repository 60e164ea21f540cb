package core

import (
	"context"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubAdapter struct {
	name       string
	mu         sync.Mutex
	details    Details
	detailsErr error
	result     ActionResult
	actionErr  error
	calls      []string
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) FetchDetails(_ context.Context, req DetailsRequest) (Details, error) {
	a.mu.Lock()
	a.calls = append(a.calls, "details:"+req.RecordID)
	a.mu.Unlock()
	if a.detailsErr != nil {
		return Details{}, a.detailsErr
	}
	return a.details, nil
}

func (a *stubAdapter) ExecuteAction(_ context.Context, kind ActionKind, payload ActionPayload) (ActionResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, "action:"+string(kind)+":"+payload.RecordID)
	a.mu.Unlock()
	if a.actionErr != nil {
		return ActionResult{}, a.actionErr
	}
	result := a.result
	result.Backend = a.name
	result.Kind = kind
	return result, nil
}

type resettingAdapter struct {
	*stubAdapter
	resets []string
}

func (a *resettingAdapter) ResetBootstrapState(appID string) {
	a.mu.Lock()
	a.resets = append(a.resets, appID)
	a.mu.Unlock()
}

type memoryActivityStore struct {
	mu      sync.Mutex
	entries []ActivityEntry
	err     error
}

func (s *memoryActivityStore) Record(_ context.Context, entry ActivityEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryActivityStore) List(_ context.Context, filter ActivityFilter) (ActivityPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]ActivityEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.Backend != "" && entry.Backend != filter.Backend {
			continue
		}
		items = append(items, entry)
	}
	return ActivityPage{Items: items, Page: 1, PerPage: len(items), Total: len(items)}, nil
}

func (s *memoryActivityStore) snapshot() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

type stubPendingSource struct {
	items       []PendingApproval
	err         error
	invalidated int
}

func (s *stubPendingSource) ListPending(context.Context) ([]PendingApproval, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]PendingApproval(nil), s.items...), nil
}

func (s *stubPendingSource) Invalidate(context.Context) error {
	s.invalidated++
	return nil
}
