package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultActivityPerPage = 25

type ActivityStoreOption func(*ActivityStore)

func WithActivityClock(nowFn func() time.Time) ActivityStoreOption {
	return func(s *ActivityStore) {
		if nowFn != nil {
			s.now = nowFn
		}
	}
}

// ActivityStore is the audit log of details lookups and actions.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityEntryRecord]
	now  func() time.Time
}

func NewActivityStore(db *bun.DB, opts ...ActivityStoreOption) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityEntryRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	store := &ActivityStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if entry.CreatedAt.IsZero() {
		createdAt = s.now()
	}

	record := &activityEntryRecord{
		ID:        id,
		Backend:   strings.TrimSpace(entry.Backend),
		Action:    strings.TrimSpace(entry.Action),
		RecordID:  strings.TrimSpace(entry.RecordID),
		Branch:    strings.TrimSpace(entry.Branch),
		Actor:     strings.TrimSpace(entry.Actor),
		Status:    strings.TrimSpace(string(entry.Status)),
		Error:     strings.TrimSpace(entry.Error),
		Metadata:  copyAnyMap(entry.Metadata),
		CreatedAt: createdAt,
	}
	if record.Backend == "" {
		return core.NewValidationError("backend", "activity entry requires a backend")
	}
	if record.Action == "" {
		return core.NewValidationError("action", "activity entry requires an action")
	}
	if record.Actor == "" {
		record.Actor = "system"
	}
	if record.Status == "" {
		record.Status = string(core.ActivityStatusOK)
	}

	_, err := s.repo.Create(ctx, record)
	return err
}

// List returns entries newest first.
func (s *ActivityStore) List(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.ActivityPage{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultActivityPerPage
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if backend := strings.TrimSpace(filter.Backend); backend != "" {
		selectors = append(selectors, repository.SelectBy("backend", "=", strings.ToLower(backend)))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		selectors = append(selectors, repository.SelectBy("action", "=", strings.ToUpper(action)))
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		selectors = append(selectors, repository.SelectBy("actor", "=", actor))
	}
	if recordID := strings.TrimSpace(filter.RecordID); recordID != "" {
		selectors = append(selectors, repository.SelectBy("record_id", "=", recordID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	// Bind time.Time values so each dialect formats them itself.
	if filter.From != nil {
		from := filter.From.UTC()
		selectors = append(selectors, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.created_at >= ?", from)
		})
	}
	if filter.To != nil {
		to := filter.To.UTC()
		selectors = append(selectors, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.created_at <= ?", to)
		})
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ActivityPage{}, err
	}
	items := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		items = append(items, activityRecordToDomain(record))
	}
	hasNext := offset+len(items) < total
	nextOffset := ""
	if hasNext {
		nextOffset = strconv.Itoa(offset + len(items))
	}
	return core.ActivityPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: nextOffset,
	}, nil
}

// Prune removes entries older than policy.TTL, then the oldest entries beyond
// policy.RowCap. It returns the number of deleted rows.
func (s *ActivityStore) Prune(ctx context.Context, policy core.ActivityRetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	deleted := 0

	if policy.TTL > 0 {
		cutoff := s.now().Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*activityEntryRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*activityEntryRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM approval_activity_entries WHERE id IN (SELECT id FROM approval_activity_entries ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

func activityRecordToDomain(record *activityEntryRecord) core.ActivityEntry {
	if record == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:        record.ID,
		Backend:   record.Backend,
		Action:    record.Action,
		RecordID:  record.RecordID,
		Branch:    record.Branch,
		Actor:     record.Actor,
		Status:    core.ActivityStatus(record.Status),
		Error:     record.Error,
		Metadata:  copyAnyMap(record.Metadata),
		CreatedAt: record.CreatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
