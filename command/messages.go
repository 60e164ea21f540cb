package command

import (
	"strings"

	"github.com/goliatone/go-approvals/core"
)

const (
	TypeStoreHandoff       = "approvals.command.handoff.store"
	TypeExecuteAction      = "approvals.command.action.execute"
	TypeLogout             = "approvals.command.session.logout"
	TypeInvalidateSessions = "approvals.command.session.invalidate"
)

type StoreHandoffMessage struct {
	Request core.HandoffRequest
}

func (StoreHandoffMessage) Type() string { return TypeStoreHandoff }

func (m StoreHandoffMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "handoff token is required")
	}
	return nil
}

type ExecuteActionMessage struct {
	Request core.ActionRequest
}

func (ExecuteActionMessage) Type() string { return TypeExecuteAction }

// Validate only requires the action kind; an empty system resolves to the
// default backend.
func (m ExecuteActionMessage) Validate() error {
	if strings.TrimSpace(string(m.Request.Kind)) == "" {
		return commandValidationError("actionType", "action type is required")
	}
	return nil
}

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }

func (LogoutMessage) Validate() error { return nil }

type InvalidateSessionsMessage struct{}

func (InvalidateSessionsMessage) Type() string { return TypeInvalidateSessions }

func (InvalidateSessionsMessage) Validate() error { return nil }
