package approvals

import (
	"fmt"

	"github.com/goliatone/go-approvals/adapters/gocommand"
	approvalscommand "github.com/goliatone/go-approvals/command"
	"github.com/goliatone/go-approvals/core"
	approvalsquery "github.com/goliatone/go-approvals/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

type CommandQueryService interface {
	approvalscommand.MutatingService
	approvalsquery.DetailsReader
	approvalsquery.PendingReader
	approvalsquery.ActivityReader
	approvalsquery.TokenReader
}

type Commands struct {
	StoreHandoff       *approvalscommand.StoreHandoffCommand
	ExecuteAction      *approvalscommand.ExecuteActionCommand
	Logout             *approvalscommand.LogoutCommand
	InvalidateSessions *approvalscommand.InvalidateSessionsCommand
}

type Queries struct {
	FetchDetails *approvalsquery.FetchDetailsQuery
	ListPending  *approvalsquery.ListPendingQuery
	ListActivity *approvalsquery.ListActivityQuery
	ListTokens   *approvalsquery.ListTokensQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("approvals: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			StoreHandoff:       approvalscommand.NewStoreHandoffCommand(service),
			ExecuteAction:      approvalscommand.NewExecuteActionCommand(service),
			Logout:             approvalscommand.NewLogoutCommand(service),
			InvalidateSessions: approvalscommand.NewInvalidateSessionsCommand(service),
		},
		queries: Queries{
			FetchDetails: approvalsquery.NewFetchDetailsQuery(service),
			ListPending:  approvalsquery.NewListPendingQuery(service),
			ListActivity: approvalsquery.NewListActivityQuery(service),
			ListTokens:   approvalsquery.NewListTokensQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Subscriptions are the dispatcher handles created by Register.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// Register adds every command and query to the registry and subscribes them
// on the go-command dispatcher. On failure the subscriptions made so far are
// released.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (subs Subscriptions, err error) {
	if f == nil {
		return nil, fmt.Errorf("approvals: facade is nil")
	}
	defer func() {
		if err != nil {
			subs.Unsubscribe()
			subs = nil
		}
	}()

	add := func(subscription commanddispatcher.Subscription, regErr error) error {
		if regErr != nil {
			return regErr
		}
		subs = append(subs, subscription)
		return nil
	}

	if err = add(gocommand.RegisterAndSubscribe[approvalscommand.StoreHandoffMessage](adapter, f.commands.StoreHandoff)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribe[approvalscommand.ExecuteActionMessage](adapter, f.commands.ExecuteAction)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribe[approvalscommand.LogoutMessage](adapter, f.commands.Logout)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribe[approvalscommand.InvalidateSessionsMessage](adapter, f.commands.InvalidateSessions)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribeQuery[approvalsquery.FetchDetailsMessage, core.Details](adapter, f.queries.FetchDetails)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribeQuery[approvalsquery.ListPendingMessage, []core.PendingApproval](adapter, f.queries.ListPending)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribeQuery[approvalsquery.ListActivityMessage, core.ActivityPage](adapter, f.queries.ListActivity)); err != nil {
		return subs, err
	}
	if err = add(gocommand.RegisterAndSubscribeQuery[approvalsquery.ListTokensMessage, []core.TokenInfo](adapter, f.queries.ListTokens)); err != nil {
		return subs, err
	}
	return subs, nil
}
