package sqlstore

import "github.com/goliatone/go-approvals/core"

var (
	_ core.ActivityRecorder = (*ActivityStore)(nil)
	_ core.ActivityReader   = (*ActivityStore)(nil)
	_ core.ActivityPruner   = (*ActivityStore)(nil)
)
