package query

import (
	"strings"

	"github.com/goliatone/go-approvals/core"
)

const (
	TypeFetchDetails = "approvals.query.details.fetch"
	TypeListPending  = "approvals.query.pending.list"
	TypeListActivity = "approvals.query.activity.list"
	TypeListTokens   = "approvals.query.tokens.list"
)

type FetchDetailsMessage struct {
	Request core.DetailsRequest
}

func (FetchDetailsMessage) Type() string { return TypeFetchDetails }

// Validate requires an identifier for either backend. An empty system falls
// back to the resolver default.
func (m FetchDetailsMessage) Validate() error {
	req := m.Request
	if strings.TrimSpace(req.RecordID) != "" {
		return nil
	}
	if strings.TrimSpace(req.Branch) == "" && strings.TrimSpace(req.Account) == "" {
		return queryValidationError("ejLogId", "a record id or branch and account are required")
	}
	return nil
}

type ListPendingMessage struct {
	Filter core.PendingFilter
}

func (ListPendingMessage) Type() string { return TypeListPending }

func (ListPendingMessage) Validate() error { return nil }

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be positive")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be positive")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	return nil
}

// ListTokensMessage asks for a redacted snapshot of the stored credentials.
type ListTokensMessage struct{}

func (ListTokensMessage) Type() string { return TypeListTokens }

func (ListTokensMessage) Validate() error { return nil }
