package query

import (
	"context"

	"github.com/goliatone/go-approvals/core"
)

type DetailsReader interface {
	FetchDetails(ctx context.Context, req core.DetailsRequest) (core.Details, error)
}

type PendingReader interface {
	ListPending(ctx context.Context, filter core.PendingFilter) ([]core.PendingApproval, error)
}

type ActivityReader interface {
	ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type TokenReader interface {
	Tokens() []core.TokenInfo
}

type FetchDetailsQuery struct {
	reader DetailsReader
}

func NewFetchDetailsQuery(reader DetailsReader) *FetchDetailsQuery {
	return &FetchDetailsQuery{reader: reader}
}

func (q *FetchDetailsQuery) Query(ctx context.Context, msg FetchDetailsMessage) (core.Details, error) {
	if q == nil || q.reader == nil {
		return core.Details{}, queryDependencyError("query: details reader is required")
	}
	return q.reader.FetchDetails(ctx, msg.Request)
}

type ListPendingQuery struct {
	reader PendingReader
}

func NewListPendingQuery(reader PendingReader) *ListPendingQuery {
	return &ListPendingQuery{reader: reader}
}

func (q *ListPendingQuery) Query(ctx context.Context, msg ListPendingMessage) ([]core.PendingApproval, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: pending reader is required")
	}
	return q.reader.ListPending(ctx, msg.Filter)
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListActivity(ctx, msg.Filter)
}

type ListTokensQuery struct {
	reader TokenReader
}

func NewListTokensQuery(reader TokenReader) *ListTokensQuery {
	return &ListTokensQuery{reader: reader}
}

func (q *ListTokensQuery) Query(_ context.Context, _ ListTokensMessage) ([]core.TokenInfo, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: token reader is required")
	}
	return q.reader.Tokens(), nil
}
