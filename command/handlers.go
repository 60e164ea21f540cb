package command

import (
	"context"

	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the subset of the approval service that changes state,
// either local credentials or upstream records.
type MutatingService interface {
	StoreHandoff(ctx context.Context, req core.HandoffRequest) error
	ExecuteAction(ctx context.Context, req core.ActionRequest) (core.ActionResult, error)
	Logout(ctx context.Context) error
	InvalidateSessions(ctx context.Context) (int, error)
}

type StoreHandoffCommand struct {
	service MutatingService
}

func NewStoreHandoffCommand(service MutatingService) *StoreHandoffCommand {
	return &StoreHandoffCommand{service: service}
}

func (c *StoreHandoffCommand) Execute(ctx context.Context, msg StoreHandoffMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	return c.service.StoreHandoff(ctx, msg.Request)
}

type ExecuteActionCommand struct {
	service MutatingService
}

func NewExecuteActionCommand(service MutatingService) *ExecuteActionCommand {
	return &ExecuteActionCommand{service: service}
}

func (c *ExecuteActionCommand) Execute(ctx context.Context, msg ExecuteActionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	out, err := c.service.ExecuteAction(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LogoutCommand struct {
	service MutatingService
}

func NewLogoutCommand(service MutatingService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	return c.service.Logout(ctx)
}

// InvalidateSessionsCommand drops every stored JWT and stores the number of
// removed credentials as the command result.
type InvalidateSessionsCommand struct {
	service MutatingService
}

func NewInvalidateSessionsCommand(service MutatingService) *InvalidateSessionsCommand {
	return &InvalidateSessionsCommand{service: service}
}

func (c *InvalidateSessionsCommand) Execute(ctx context.Context, _ InvalidateSessionsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	removed, err := c.service.InvalidateSessions(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
