package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/transport"
	glog "github.com/goliatone/go-logger/glog"
)

// fetchState is the details retry state machine: one attempt, at most one
// refresh, at most one more attempt.
type fetchState int

const (
	stateAttempt1 fetchState = iota
	stateRefreshing
	stateAttempt2
	stateFailed
	stateSucceeded
)

func (s fetchState) String() string {
	switch s {
	case stateAttempt1:
		return "attempt_1"
	case stateRefreshing:
		return "refreshing"
	case stateAttempt2:
		return "attempt_2"
	case stateFailed:
		return "failed"
	case stateSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

type Option func(*Adapter)

func WithLogger(logger core.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithCoordinator(coordinator *Coordinator) Option {
	return func(a *Adapter) {
		if coordinator != nil {
			a.bootstrap = coordinator
		}
	}
}

// Adapter talks to the token-authenticated API gateway.
type Adapter struct {
	cfg       core.GatewayConfig
	tokens    *core.TokenStore
	transport core.TransportAdapter
	bootstrap *Coordinator
	logger    core.Logger
}

func NewAdapter(cfg core.GatewayConfig, tokens *core.TokenStore, adapter core.TransportAdapter, opts ...Option) (*Adapter, error) {
	if tokens == nil {
		return nil, fmt.Errorf("gateway: token store is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("gateway: transport adapter is required")
	}
	a := &Adapter{
		cfg:       cfg,
		tokens:    tokens,
		transport: adapter,
		logger:    glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.bootstrap == nil {
		a.bootstrap = NewCoordinator(cfg, tokens, adapter, WithCoordinatorLogger(a.logger))
	}
	return a, nil
}

func (a *Adapter) Name() string {
	return core.BackendGateway
}

func (a *Adapter) Coordinator() *Coordinator {
	return a.bootstrap
}

func (a *Adapter) ResetBootstrapState(appID string) {
	a.bootstrap.ResetBootstrapState(appID)
}

// FetchDetails loads a record by its ejLogId. An upstream auth failure on the
// first attempt triggers one session refresh and one retry.
func (a *Adapter) FetchDetails(ctx context.Context, req core.DetailsRequest) (core.Details, error) {
	recordID := strings.TrimSpace(req.RecordID)
	if recordID == "" {
		return core.Details{}, core.NewValidationError("ejLogId", "record id (ejLogId) is required for gateway details")
	}
	if strings.TrimSpace(a.cfg.DetailsURL) == "" {
		return core.Details{}, fmt.Errorf("gateway: details url is not configured")
	}

	identity := a.identity(a.cfg.ViewAppID, req.Branch, req.UserID)
	detailsURL := DetailsURL(a.cfg.DetailsURL, recordID)

	var (
		data    map[string]any
		lastErr error
		state   = stateAttempt1
	)
	for {
		a.logger.Debug("gateway details", "record_id", recordID, "state", state.String())
		switch state {
		case stateAttempt1, stateAttempt2:
			data, lastErr = a.attemptDetails(ctx, detailsURL, identity)
			switch {
			case lastErr == nil:
				state = stateSucceeded
			case state == stateAttempt1 && core.IsAuthFailure(lastErr):
				a.logger.Warn("gateway details rejected, refreshing session", "record_id", recordID, "error", lastErr)
				state = stateRefreshing
			default:
				state = stateFailed
			}
		case stateRefreshing:
			if _, ok := a.bootstrap.RefreshJWT(ctx, identity); ok {
				state = stateAttempt2
			} else {
				state = stateFailed
			}
		case stateSucceeded:
			return core.Details{Data: data}, nil
		default:
			a.logger.Error("gateway details failed", "record_id", recordID, "error", lastErr)
			return core.Details{}, lastErr
		}
	}
}

func (a *Adapter) attemptDetails(ctx context.Context, detailsURL string, identity BootstrapRequest) (map[string]any, error) {
	a.ensureBootstrap(ctx, identity)
	handoff, err := a.tokens.GetToken(identity.AppID)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"callBackToken": handoff,
		"Content-Type":  "application/json",
		"appId":         firstNonEmpty(a.cfg.DetailsAppID, "SRVCMNTXN"),
		"branchCode":    identity.BranchCode,
		"entityId":      identity.EntityID,
		"userId":        identity.UserID,
	}
	a.applySession(headers, identity.AppID)
	applyBrowserHeaders(headers, a.cfg)

	res, err := transport.Send(ctx, a.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     detailsURL,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	return transport.DecodeRecord(res.Body, "gateway details")
}

// ExecuteAction performs kind against the gateway. Only APPROVE is supported.
// Approval is not retried.
func (a *Adapter) ExecuteAction(ctx context.Context, kind core.ActionKind, payload core.ActionPayload) (core.ActionResult, error) {
	kind = kind.Normalize()
	switch kind {
	case core.ActionApprove:
		return a.approve(ctx, payload)
	default:
		return core.ActionResult{}, core.NewUnsupportedActionError(core.BackendGateway, kind)
	}
}

func (a *Adapter) approve(ctx context.Context, payload core.ActionPayload) (core.ActionResult, error) {
	if strings.TrimSpace(a.cfg.ApproveURL) == "" {
		return core.ActionResult{}, fmt.Errorf("gateway: approve url is not configured")
	}
	details, err := a.FetchDetails(ctx, payload.DetailsRequest(core.BackendGateway))
	if err != nil {
		return core.ActionResult{}, err
	}

	logData := details.Data
	if nested, ok := details.Data["data"].(map[string]any); ok {
		logData = nested
	}
	body, err := json.Marshal(map[string]any{
		"functionCode":   transport.FirstString(logData, "functionCode"),
		"subScreenClass": transport.FirstString(logData, "subScreenClass"),
		"ejId":           strings.TrimSpace(payload.RecordID),
		"authorizerRole": firstNonEmpty(a.cfg.AuthorizerRole, "RETAIL_MANAGER"),
		"txnRefNumber":   transport.FirstString(logData, "txnRefNo", "txnRefNumber"),
		"supervisorId":   a.cfg.User(payload.UserID),
	})
	if err != nil {
		return core.ActionResult{}, err
	}

	identity := a.identity(a.cfg.ApproveAppID, payload.Branch, payload.UserID)
	a.ensureBootstrap(ctx, identity)
	handoff, err := a.tokens.GetToken(identity.AppID)
	if err != nil {
		return core.ActionResult{}, err
	}

	headers := map[string]string{
		"callBackToken": handoff,
		"appId":         identity.AppID,
		"branchCode":    identity.BranchCode,
		"userId":        identity.UserID,
		"entityId":      identity.EntityID,
		"Content-Type":  "application/json",
	}
	if cookie := strings.TrimSpace(payload.Cookie); cookie != "" {
		headers["Cookie"] = cookie
	}
	a.applySession(headers, identity.AppID)
	applyBrowserHeaders(headers, a.cfg)

	res, err := transport.Send(ctx, a.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     strings.TrimSpace(a.cfg.ApproveURL),
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		a.logger.Error("gateway approve failed", "record_id", payload.RecordID, "error", err)
		return core.ActionResult{}, err
	}
	a.logger.Info("gateway approve completed", "record_id", payload.RecordID, "status", res.StatusCode)
	return core.ActionResult{
		Backend: core.BackendGateway,
		Kind:    core.ActionApprove,
		Data:    transport.DecodeBody(res.Body),
	}, nil
}

// ensureBootstrap is best effort. Without a handoff token there is nothing to
// bootstrap with; the following token lookup reports the problem.
func (a *Adapter) ensureBootstrap(ctx context.Context, identity BootstrapRequest) {
	if !a.tokens.HasValidToken(identity.AppID) {
		a.logger.Warn("gateway bootstrap skipped, no valid token", "app_id", identity.AppID)
		return
	}
	if err := a.bootstrap.EnsureBootstrap(ctx, identity); err != nil {
		a.logger.Warn("gateway bootstrap failed, continuing", "app_id", identity.AppID, "error", err)
	}
}

func (a *Adapter) applySession(headers map[string]string, appID string) {
	if jwt, err := a.tokens.GetToken(core.SessionKey(appID)); err == nil && jwt != "" {
		headers["Authorization"] = "Bearer " + jwt
	}
}

func (a *Adapter) identity(appID string, branch string, userID string) BootstrapRequest {
	return BootstrapRequest{
		AppID:            strings.TrimSpace(appID),
		BranchCode:       a.cfg.Branch(branch),
		UserID:           a.cfg.User(userID),
		EntityID:         firstNonEmpty(a.cfg.EntityID, "DEFAULTENTITY"),
		SourceCode:       firstNonEmpty(a.cfg.SourceCode, "FCUBS"),
		MultiEntityAdmin: firstNonEmpty(a.cfg.MultiEntityAdmin, "N"),
	}
}

var (
	_ core.BackendAdapter  = (*Adapter)(nil)
	_ core.SessionResetter = (*Adapter)(nil)
)
