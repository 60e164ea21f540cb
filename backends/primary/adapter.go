package primary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/transport"
	glog "github.com/goliatone/go-logger/glog"
)

type Option func(*Adapter)

func WithLogger(logger core.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Adapter talks to the core banking account service. It is stateless and
// uses static identity headers.
type Adapter struct {
	cfg       core.PrimaryConfig
	transport core.TransportAdapter
	logger    core.Logger
}

func NewAdapter(cfg core.PrimaryConfig, adapter core.TransportAdapter, opts ...Option) (*Adapter, error) {
	if adapter == nil {
		return nil, fmt.Errorf("primary: transport adapter is required")
	}
	a := &Adapter{cfg: cfg, transport: adapter, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

func (a *Adapter) Name() string {
	return core.BackendPrimary
}

// FetchDetails loads the account record at branch/account.
func (a *Adapter) FetchDetails(ctx context.Context, req core.DetailsRequest) (core.Details, error) {
	branch := strings.TrimSpace(req.Branch)
	account := strings.TrimSpace(req.Account)
	if branch == "" || account == "" {
		return core.Details{}, core.NewValidationError("brn", "branch (brn) and account (acc) are required for primary details")
	}
	queryURL := strings.TrimRight(strings.TrimSpace(a.cfg.QueryURL), "/")
	if queryURL == "" {
		return core.Details{}, fmt.Errorf("primary: query url is not configured")
	}

	target := fmt.Sprintf("%s/brn/%s/acc/%s", queryURL, url.PathEscape(branch), url.PathEscape(account))
	a.logger.Debug("primary details", "url", target)
	res, err := transport.Send(ctx, a.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     target,
		Headers: a.headers(branch),
	})
	if err != nil {
		a.logger.Error("primary details failed", "branch", branch, "account", account, "error", err)
		return core.Details{}, err
	}
	data, err := transport.DecodeRecord(res.Body, "primary details")
	if err != nil {
		return core.Details{}, err
	}
	return core.Details{Data: data}, nil
}

func (a *Adapter) ExecuteAction(ctx context.Context, kind core.ActionKind, payload core.ActionPayload) (core.ActionResult, error) {
	kind = kind.Normalize()
	switch kind {
	case core.ActionApprove:
		return a.approve(ctx, payload)
	default:
		return core.ActionResult{}, core.NewUnsupportedActionError(core.BackendPrimary, kind)
	}
}

// approve re-reads the account and submits its custaccount block unchanged.
func (a *Adapter) approve(ctx context.Context, payload core.ActionPayload) (core.ActionResult, error) {
	details, err := a.FetchDetails(ctx, payload.DetailsRequest(core.BackendPrimary))
	if err != nil {
		return core.ActionResult{}, err
	}
	account, ok := details.Data["custaccount"]
	if !ok || account == nil {
		return core.ActionResult{}, core.NewFormatError("custaccount", "invalid response format: missing custaccount")
	}
	authorizeURL := strings.TrimSpace(a.cfg.AuthorizeURL)
	if authorizeURL == "" {
		return core.ActionResult{}, fmt.Errorf("primary: authorize url is not configured")
	}
	body, err := json.Marshal(account)
	if err != nil {
		return core.ActionResult{}, err
	}

	headers := a.headers(payload.Branch)
	headers["Content-Type"] = "application/json"
	res, err := transport.Send(ctx, a.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     authorizeURL,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		a.logger.Error("primary authorize failed", "branch", payload.Branch, "account", payload.Account, "error", err)
		return core.ActionResult{}, err
	}
	a.logger.Info("primary authorize completed", "branch", payload.Branch, "account", payload.Account)
	return core.ActionResult{
		Backend: core.BackendPrimary,
		Kind:    core.ActionApprove,
		Data:    transport.DecodeBody(res.Body),
	}, nil
}

func (a *Adapter) headers(branch string) map[string]string {
	if strings.TrimSpace(branch) == "" {
		branch = firstNonEmpty(a.cfg.Branch, "000")
	}
	return map[string]string{
		"BRANCH": strings.TrimSpace(branch),
		"Entity": a.cfg.Entity,
		"Source": a.cfg.Source,
		"Userid": a.cfg.UserID,
		"Accept": "application/json",
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

var _ core.BackendAdapter = (*Adapter)(nil)
