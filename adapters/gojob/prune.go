package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-approvals/core"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const activityPruneKey = "approvals.activity.prune"

// ActivityPruneMessage encodes a retention policy as a prune job.
func ActivityPruneMessage(policy core.ActivityRetentionPolicy) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:      JobIDActivityPrune,
		ScriptPath: JobIDActivityPrune,
		Parameters: map[string]any{
			"ttl_seconds": int64(policy.TTL / time.Second),
			"row_cap":     policy.RowCap,
		},
		IdempotencyKey: activityPruneKey,
	}
}

func NewActivityPruneHandler(pruner core.ActivityPruner, logger glog.Logger) (Handler, error) {
	if pruner == nil {
		return nil, fmt.Errorf("gojob: activity pruner is required")
	}
	if logger == nil {
		logger = glog.Nop()
	}
	return func(ctx context.Context, msg *job.ExecutionMessage) error {
		policy := pruneParams(msg)
		deleted, err := pruner.Prune(ctx, policy)
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.WithContext(ctx).Info("activity pruned", "deleted", deleted, "ttl", policy.TTL.String(), "row_cap", policy.RowCap)
		}
		return nil
	}, nil
}

func pruneParams(msg *job.ExecutionMessage) core.ActivityRetentionPolicy {
	if msg == nil {
		return core.ActivityRetentionPolicy{}
	}
	return core.ActivityRetentionPolicy{
		TTL:    time.Duration(intParam(msg.Parameters["ttl_seconds"])) * time.Second,
		RowCap: int(intParam(msg.Parameters["row_cap"])),
	}
}

func intParam(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	default:
		return 0
	}
}
