package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:approval_activity_entries,alias:aae"`

	ID        string         `bun:"id,pk"`
	Backend   string         `bun:"backend,notnull"`
	Action    string         `bun:"action,notnull"`
	RecordID  string         `bun:"record_id,notnull"`
	Branch    string         `bun:"branch,notnull"`
	Actor     string         `bun:"actor,notnull"`
	Status    string         `bun:"status,notnull"`
	Error     string         `bun:"error,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
