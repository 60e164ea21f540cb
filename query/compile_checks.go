package query

import (
	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[FetchDetailsMessage, core.Details]          = (*FetchDetailsQuery)(nil)
	_ gocmd.Querier[ListPendingMessage, []core.PendingApproval] = (*ListPendingQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage]     = (*ListActivityQuery)(nil)
	_ gocmd.Querier[ListTokensMessage, []core.TokenInfo]        = (*ListTokensQuery)(nil)

	_ DetailsReader  = (*core.Service)(nil)
	_ PendingReader  = (*core.Service)(nil)
	_ ActivityReader = (*core.Service)(nil)
	_ TokenReader    = (*core.Service)(nil)
)
