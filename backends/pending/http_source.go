package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/transport"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Option func(*HTTPSource)

func WithLogger(logger core.Logger) Option {
	return func(s *HTTPSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(s *HTTPSource) {
		if nowFn != nil {
			s.now = nowFn
		}
	}
}

// HTTPSource lists pending approvals from the customer-service API.
type HTTPSource struct {
	url       string
	transport core.TransportAdapter
	logger    core.Logger
	now       func() time.Time
}

func NewHTTPSource(url string, adapter core.TransportAdapter, opts ...Option) (*HTTPSource, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("pending: url is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("pending: transport adapter is required")
	}
	s := &HTTPSource{
		url:       strings.TrimSpace(url),
		transport: adapter,
		logger:    glog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *HTTPSource) ListPending(ctx context.Context) ([]core.PendingApproval, error) {
	res, err := transport.Send(ctx, s.transport, core.TransportRequest{
		Method: http.MethodGet,
		URL:    s.url,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	})
	if err != nil {
		s.logger.Error("pending list failed", "url", s.url, "error", err)
		return nil, err
	}

	rows := []map[string]any{}
	if err := json.Unmarshal(res.Body, &rows); err != nil {
		return nil, core.NewFormatError("body", "pending list response is not a JSON array")
	}
	items := make([]core.PendingApproval, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.mapRow(row))
	}
	s.logger.Debug("pending list loaded", "count", len(items))
	return items, nil
}

func (s *HTTPSource) mapRow(row map[string]any) core.PendingApproval {
	reference := field(row, "REFERENCE_ID")
	txnID := reference
	if txnID == "" {
		txnID = "TXN-" + uuid.NewString()
	}
	branch := orDefault(field(row, "BRANCH_CODE"), "000")
	account := orDefault(field(row, "ACCOUNT_NO"), "N/A")
	return core.PendingApproval{
		SourceSystem:  strings.ToUpper(orDefault(field(row, "SYSTEM_NAME"), "Unknown")),
		Module:        strings.ToUpper(orDefault(field(row, "MODULE_NAME"), "Unknown")),
		TxnID:         txnID,
		AccountNumber: account,
		CustomerName:  "Unknown",
		Amount:        0,
		Branch:        branch,
		Status:        orDefault(field(row, "STATUS"), "Pending"),
		AgeMinutes:    0,
		Priority:      "Normal",
		Initiator:     orDefault(field(row, "MAKER_ID"), "System"),
		Timestamp:     orDefault(field(row, "TXN_DATE"), s.now().Format(time.RFC3339)),
		Brn:           branch,
		Acc:           account,
		EJLogID:       reference,
	}
}

// field reads a string or numeric column; upstream sends codes either way.
func field(row map[string]any, key string) string {
	switch value := row[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

var _ core.PendingSource = (*HTTPSource)(nil)
