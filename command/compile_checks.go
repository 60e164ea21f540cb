package command

import (
	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[StoreHandoffMessage]       = (*StoreHandoffCommand)(nil)
	_ gocmd.Commander[ExecuteActionMessage]      = (*ExecuteActionCommand)(nil)
	_ gocmd.Commander[LogoutMessage]             = (*LogoutCommand)(nil)
	_ gocmd.Commander[InvalidateSessionsMessage] = (*InvalidateSessionsCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
