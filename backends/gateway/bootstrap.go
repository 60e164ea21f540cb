package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/transport"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

// BootstrapRequest identifies the gateway session being initialised. Empty
// fields fall back to the gateway configuration.
type BootstrapRequest struct {
	AppID            string
	BranchCode       string
	UserID           string
	EntityID         string
	SourceCode       string
	MultiEntityAdmin string
}

type BootstrapState struct {
	Initialized bool
	InFlight    bool
	LastInitAt  time.Time
}

type bootstrapEntry struct {
	state      BootstrapState
	generation uint64
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(logger core.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithCoordinatorClock(nowFn func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if nowFn != nil {
			c.now = nowFn
		}
	}
}

// WithCoordinatorTTL bounds how long a completed bootstrap is trusted.
func WithCoordinatorTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// Coordinator runs the gateway session bootstrap at most once per app id.
// Concurrent callers for the same app id share a single upstream call.
type Coordinator struct {
	cfg       core.GatewayConfig
	tokens    *core.TokenStore
	transport core.TransportAdapter
	logger    core.Logger
	now       func() time.Time
	ttl       time.Duration

	group      singleflight.Group
	mu         sync.Mutex
	states     map[string]bootstrapEntry
	generation uint64
}

func NewCoordinator(
	cfg core.GatewayConfig,
	tokens *core.TokenStore,
	adapter core.TransportAdapter,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		tokens:    tokens,
		transport: adapter,
		logger:    glog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		ttl:       core.DefaultCredentialTTL,
		states:    map[string]bootstrapEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// EnsureBootstrap initialises the session for req.AppID unless it already is.
// A caller whose ctx ends stops waiting; the shared call keeps running for the
// others.
func (c *Coordinator) EnsureBootstrap(ctx context.Context, req BootstrapRequest) error {
	appID := strings.TrimSpace(req.AppID)
	if appID == "" {
		return core.NewValidationError("app_id", "bootstrap requires an app id")
	}
	if c.fresh(c.State(appID)) {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	results := c.group.DoChan(appID, func() (any, error) {
		if c.fresh(c.State(appID)) {
			return nil, nil
		}
		generation := c.start(appID)
		err := c.bootstrap(detached, req)
		c.finish(appID, generation, err == nil)
		return nil, err
	})

	select {
	case result := <-results:
		return result.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) bootstrap(ctx context.Context, req BootstrapRequest) error {
	appID := strings.TrimSpace(req.AppID)
	handoff, err := c.tokens.GetToken(appID)
	if err != nil {
		return err
	}
	initURL, err := InitURL(c.cfg)
	if err != nil {
		return err
	}

	c.logger.Info("gateway bootstrap started", "app_id", appID, "url", initURL)
	res, err := transport.Send(ctx, c.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     initURL,
		Headers: c.identityHeaders(req, handoff),
		Body:    []byte("{}"),
	})
	if err != nil {
		c.logger.Error("gateway bootstrap failed", "app_id", appID, "error", err)
		return err
	}

	if fields, ok := transport.DecodeObject(res.Body); ok {
		if jwt := transport.FirstString(fields, "access_token", "token", "jwt"); jwt != "" {
			c.tokens.SetToken(core.SessionKey(appID), jwt)
		}
	}
	c.logger.Info("gateway bootstrap completed", "app_id", appID)
	return nil
}

// RefreshJWT asks the gateway for a new session credential. It never fails
// loudly: any problem yields ("", false).
func (c *Coordinator) RefreshJWT(ctx context.Context, req BootstrapRequest) (string, bool) {
	appID := strings.TrimSpace(req.AppID)
	handoff, err := c.tokens.GetToken(appID)
	if err != nil {
		c.logger.Warn("gateway refresh skipped, no handoff token", "app_id", appID)
		return "", false
	}
	refreshURL, err := RefreshURL(c.cfg)
	if err != nil {
		c.logger.Warn("gateway refresh skipped", "app_id", appID, "error", err)
		return "", false
	}

	req.MultiEntityAdmin = "N"
	headers := c.identityHeaders(req, handoff)
	if previous, err := c.tokens.GetToken(core.SessionKey(appID)); err == nil && previous != "" {
		headers["Authorization"] = "Bearer " + previous
	}

	res, err := transport.Send(ctx, c.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     refreshURL,
		Headers: headers,
	})
	if err != nil {
		c.logger.Warn("gateway refresh failed", "app_id", appID, "error", err)
		return "", false
	}
	fields, ok := transport.DecodeObject(res.Body)
	if !ok {
		c.logger.Warn("gateway refresh returned a non-object body", "app_id", appID)
		return "", false
	}
	token := transport.FirstString(fields, "token", "access_token", "jwt")
	if token == "" {
		c.logger.Warn("gateway refresh returned no token", "app_id", appID)
		return "", false
	}

	c.tokens.SetToken(core.SessionKey(appID), token)
	c.ResetBootstrapState(appID)
	c.logger.Info("gateway session refreshed", "app_id", appID)
	return token, true
}

// ResetBootstrapState forgets bootstrap state for appID, or for every app id
// when appID is empty.
func (c *Coordinator) ResetBootstrapState(appID string) {
	appID = strings.TrimSpace(appID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if appID == "" {
		for key := range c.states {
			c.group.Forget(key)
		}
		c.states = map[string]bootstrapEntry{}
		return
	}
	delete(c.states, appID)
	c.group.Forget(appID)
}

func (c *Coordinator) State(appID string) BootstrapState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[strings.TrimSpace(appID)].state
}

// fresh reports whether a bootstrap completed within the ttl.
func (c *Coordinator) fresh(state BootstrapState) bool {
	return state.Initialized && c.now().Sub(state.LastInitAt) < c.ttl
}

func (c *Coordinator) start(appID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	entry := c.states[appID]
	entry.state.InFlight = true
	entry.generation = c.generation
	c.states[appID] = entry
	return entry.generation
}

// finish is a no-op when the state was reset while the call was running.
func (c *Coordinator) finish(appID string, generation uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, exists := c.states[appID]
	if !exists || entry.generation != generation {
		return
	}
	entry.state.InFlight = false
	entry.state.Initialized = ok
	if ok {
		entry.state.LastInitAt = c.now()
	}
	c.states[appID] = entry
}

func (c *Coordinator) identityHeaders(req BootstrapRequest, handoff string) map[string]string {
	headers := map[string]string{
		"Content-Type":     "application/json",
		"appId":            strings.TrimSpace(req.AppID),
		"branchCode":       c.cfg.Branch(req.BranchCode),
		"callBackToken":    handoff,
		"sourceCode":       firstNonEmpty(req.SourceCode, c.cfg.SourceCode, "FCUBS"),
		"userId":           c.cfg.User(req.UserID),
		"entityId":         firstNonEmpty(req.EntityID, c.cfg.EntityID, "DEFAULTENTITY"),
		"multiEntityAdmin": firstNonEmpty(req.MultiEntityAdmin, c.cfg.MultiEntityAdmin, "N"),
	}
	applyBrowserHeaders(headers, c.cfg)
	return headers
}

// applyBrowserHeaders copies the optional Host/Origin/Referer overrides some
// gateway deployments check.
func applyBrowserHeaders(headers map[string]string, cfg core.GatewayConfig) {
	if host := strings.TrimSpace(cfg.Host); host != "" {
		headers["Host"] = host
	}
	if origin := strings.TrimSpace(cfg.Origin); origin != "" {
		headers["Origin"] = origin
	}
	if referer := strings.TrimSpace(cfg.Referer); referer != "" {
		headers["Referer"] = referer
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
