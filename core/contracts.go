package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	BackendPrimary = "primary"
	BackendGateway = "gateway"
)

type ActionKind string

const (
	ActionApprove        ActionKind = "APPROVE"
	ActionCashWithdrawal ActionKind = "CASH_WITHDRAWAL"
)

// Normalize upper-cases and trims the kind.
func (k ActionKind) Normalize() ActionKind {
	return ActionKind(strings.ToUpper(strings.TrimSpace(string(k))))
}

// DetailsRequest carries the correlation identifiers a backend needs to load a
// pending record. Primary uses Branch/Account, gateway uses RecordID.
type DetailsRequest struct {
	System   string
	RecordID string
	Branch   string
	Account  string
	UserID   string
	Metadata map[string]any
}

type Details struct {
	Data map[string]any
}

// ActionPayload is the caller supplied body of an action request.
type ActionPayload struct {
	RecordID string
	Branch   string
	Account  string
	UserID   string
	Cookie   string
	Metadata map[string]any
}

func (p ActionPayload) DetailsRequest(system string) DetailsRequest {
	return DetailsRequest{
		System:   system,
		RecordID: p.RecordID,
		Branch:   p.Branch,
		Account:  p.Account,
		UserID:   p.UserID,
		Metadata: cloneFields(p.Metadata),
	}
}

type ActionRequest struct {
	System  string
	Kind    ActionKind
	Payload ActionPayload
}

type ActionResult struct {
	Backend string
	Kind    ActionKind
	Data    any
}

type BackendAdapter interface {
	Name() string
	FetchDetails(ctx context.Context, req DetailsRequest) (Details, error)
	ExecuteAction(ctx context.Context, kind ActionKind, payload ActionPayload) (ActionResult, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type HandoffRequest struct {
	AppIDs []string
	Token  string
	UserID string
}

type PendingSource interface {
	ListPending(ctx context.Context) ([]PendingApproval, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

type ActivityReader interface {
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

// ActivityPruner drops entries older than the policy TTL and trims the log to
// the row cap. It returns the number of removed entries.
type ActivityPruner interface {
	Prune(ctx context.Context, policy ActivityRetentionPolicy) (int, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ApprovalService is the request boundary consumed by commands, queries and
// the HTTP layer.
type ApprovalService interface {
	StoreHandoff(ctx context.Context, req HandoffRequest) error
	FetchDetails(ctx context.Context, req DetailsRequest) (Details, error)
	ExecuteAction(ctx context.Context, req ActionRequest) (ActionResult, error)
	ListPending(ctx context.Context, filter PendingFilter) ([]PendingApproval, error)
	ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
	Logout(ctx context.Context) error
	InvalidateSessions(ctx context.Context) (int, error)
	Tokens() []TokenInfo
}
