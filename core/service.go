package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	tokens           *TokenStore
	registry         *AdapterRegistry
	sessionResetter  SessionResetter
	pendingSource    PendingSource
	activityRecorder ActivityRecorder
	activityReader   ActivityReader
	nowFn            func() time.Time
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	TokenStore       *TokenStore
	Registry         *AdapterRegistry
	SessionResetter  SessionResetter
	PendingSource    PendingSource
	ActivityRecorder ActivityRecorder
	ActivityReader   ActivityReader
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("approvals", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("approvals"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.tokenStore == nil {
		builder.tokenStore = NewTokenStore(
			WithTokenTTL(finalConfig.CredentialTTL()),
			WithTokenLogger(logger),
		)
	}
	if builder.registry == nil {
		builder.registry = NewAdapterRegistry(finalConfig.Resolver.DefaultBackend)
	}
	for alias, target := range finalConfig.Resolver.Aliases {
		if err := builder.registry.Alias(alias, target); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	for _, adapter := range builder.adapters {
		if err := builder.registry.Register(adapter); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		if builder.sessionResetter == nil {
			if resetter, ok := adapter.(SessionResetter); ok {
				builder.sessionResetter = resetter
			}
		}
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		tokens:           builder.tokenStore,
		registry:         builder.registry,
		sessionResetter:  builder.sessionResetter,
		pendingSource:    builder.pendingSource,
		activityRecorder: builder.activityRecorder,
		activityReader:   builder.activityReader,
		nowFn:            builder.nowFn,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		TokenStore:       s.tokens,
		Registry:         s.registry,
		SessionResetter:  s.sessionResetter,
		PendingSource:    s.pendingSource,
		ActivityRecorder: s.activityRecorder,
		ActivityReader:   s.activityReader,
	}
}

// Tokens lists cached credentials without their values.
func (s *Service) Tokens() []TokenInfo {
	if s == nil {
		return []TokenInfo{}
	}
	return s.tokens.Snapshot()
}

// StoreHandoff caches the login handoff credential for each identity. Without
// explicit identities the configured gateway identities are used.
func (s *Service) StoreHandoff(ctx context.Context, req HandoffRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(req.UserID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "store_handoff", err, fields)
	}()

	if strings.TrimSpace(req.Token) == "" {
		err = s.mapError(NewValidationError("token", "handoff token is required"))
		return err
	}
	appIDs := s.handoffIdentities(req.AppIDs)
	if len(appIDs) == 0 {
		err = s.mapError(NewValidationError("app_ids", "at least one application identity is required"))
		return err
	}
	fields["app_ids"] = strings.Join(appIDs, ",")
	for _, appID := range appIDs {
		s.tokens.SetToken(appID, strings.TrimSpace(req.Token))
	}
	return nil
}

func (s *Service) handoffIdentities(requested []string) []string {
	candidates := requested
	if len(candidates) == 0 {
		gateway := s.config.Gateway
		candidates = []string{gateway.ViewAppID, gateway.ApproveAppID, gateway.DetailsAppID}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		appID := strings.TrimSpace(candidate)
		if appID == "" {
			continue
		}
		if _, ok := seen[appID]; ok {
			continue
		}
		seen[appID] = struct{}{}
		out = append(out, appID)
	}
	return out
}

func (s *Service) FetchDetails(ctx context.Context, req DetailsRequest) (details Details, err error) {
	startedAt := time.Now().UTC()
	backend := s.registry.ResolveName(req.System)
	fields := map[string]any{
		"backend":   backend,
		"action":    "details",
		"record_id": detailsRecordID(req),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "fetch_details", err, fields)
	}()

	adapter, err := s.registry.Resolve(req.System)
	if err != nil {
		err = s.mapError(err)
		return Details{}, err
	}
	details, err = adapter.FetchDetails(ctx, req)
	s.recordActivity(ctx, ActivityEntry{
		Backend:  backend,
		Action:   "DETAILS",
		RecordID: detailsRecordID(req),
		Branch:   req.Branch,
		Actor:    req.UserID,
	}, err)
	if err != nil {
		err = s.mapError(err)
		return Details{}, err
	}
	return details, nil
}

func (s *Service) ExecuteAction(ctx context.Context, req ActionRequest) (result ActionResult, err error) {
	startedAt := time.Now().UTC()
	backend := s.registry.ResolveName(req.System)
	kind := req.Kind.Normalize()
	recordID := detailsRecordID(req.Payload.DetailsRequest(req.System))
	fields := map[string]any{
		"backend":   backend,
		"action":    string(kind),
		"record_id": recordID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "execute_action", err, fields)
	}()

	if kind == "" {
		err = s.mapError(NewValidationError("action", "action is required"))
		return ActionResult{}, err
	}
	adapter, err := s.registry.Resolve(req.System)
	if err != nil {
		err = s.mapError(err)
		return ActionResult{}, err
	}
	result, err = adapter.ExecuteAction(ctx, kind, req.Payload)
	s.recordActivity(ctx, ActivityEntry{
		Backend:  backend,
		Action:   string(kind),
		RecordID: recordID,
		Branch:   req.Payload.Branch,
		Actor:    req.Payload.UserID,
	}, err)
	if err != nil {
		err = s.mapError(err)
		return ActionResult{}, err
	}
	if invalidator, ok := s.pendingSource.(PendingInvalidator); ok {
		if invalidateErr := invalidator.Invalidate(ctx); invalidateErr != nil {
			s.logWarn(ctx, "pending cache invalidation failed", map[string]any{"error": invalidateErr.Error()})
		}
	}
	return result, nil
}

func (s *Service) ListPending(ctx context.Context, filter PendingFilter) (items []PendingApproval, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"system": filter.System,
		"module": filter.Module,
		"branch": filter.Branch,
		"status": filter.Status,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_pending", err, fields)
	}()

	if s.pendingSource == nil {
		err = s.mapError(fmt.Errorf("core: pending source is not configured"))
		return nil, err
	}
	all, err := s.pendingSource.ListPending(ctx)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	items = FilterPending(all, filter)
	fields["total"] = len(all)
	fields["matched"] = len(items)
	return items, nil
}

func (s *Service) ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.activityReader == nil {
		return ActivityPage{Items: []ActivityEntry{}, Page: 1, PerPage: filter.PerPage}, nil
	}
	page, err := s.activityReader.List(ctx, filter)
	if err != nil {
		return ActivityPage{}, s.mapError(err)
	}
	return page, nil
}

// Logout drops every cached credential and all bootstrap state.
func (s *Service) Logout(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "logout", err, nil)
	}()
	s.tokens.ClearTokens()
	if s.sessionResetter != nil {
		s.sessionResetter.ResetBootstrapState("")
	}
	return nil
}

// InvalidateSessions drops derived-session credentials and bootstrap state
// while keeping handoff credentials, forcing a fresh bootstrap on next use.
func (s *Service) InvalidateSessions(ctx context.Context) (removed int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "invalidate_sessions", err, fields)
	}()
	removed = s.tokens.ClearJWTTokens()
	fields["removed"] = removed
	if s.sessionResetter != nil {
		s.sessionResetter.ResetBootstrapState("")
	}
	return removed, nil
}

func (s *Service) recordActivity(ctx context.Context, entry ActivityEntry, opErr error) {
	if s == nil || s.activityRecorder == nil {
		return
	}
	entry.Status = ActivityStatusOK
	entry.Metadata = map[string]any{}
	if opErr != nil {
		entry.Status = ActivityStatusFailed
		entry.Error = opErr.Error()
		if mapped := s.errorMapper(opErr); mapped != nil {
			entry.Metadata["text_code"] = mapped.TextCode
			entry.Metadata["code"] = mapped.Code
		}
	}
	entry.CreatedAt = s.nowFn()
	if err := s.activityRecorder.Record(ctx, entry); err != nil {
		s.logWarn(ctx, "activity record failed", map[string]any{
			"backend": entry.Backend,
			"action":  entry.Action,
			"error":   err.Error(),
		})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func detailsRecordID(req DetailsRequest) string {
	if id := strings.TrimSpace(req.RecordID); id != "" {
		return id
	}
	branch := strings.TrimSpace(req.Branch)
	account := strings.TrimSpace(req.Account)
	if branch == "" && account == "" {
		return ""
	}
	return branch + "/" + account
}
