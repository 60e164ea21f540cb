package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// SessionResetter drops cached bootstrap state. Logout and session
// invalidation call it alongside the token store.
type SessionResetter interface {
	ResetBootstrapState(appID string)
}

// PendingInvalidator is implemented by pending sources that cache results.
type PendingInvalidator interface {
	Invalidate(ctx context.Context) error
}

type serviceBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	tokenStore       *TokenStore
	registry         *AdapterRegistry
	adapters         []BackendAdapter
	sessionResetter  SessionResetter
	pendingSource    PendingSource
	activityRecorder ActivityRecorder
	activityReader   ActivityReader
	nowFn            func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenStore(store *TokenStore) Option {
	return func(b *serviceBuilder) {
		b.tokenStore = store
	}
}

func WithAdapterRegistry(registry *AdapterRegistry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

// WithAdapter registers a backend adapter. When the adapter also resets
// bootstrap state it becomes the session resetter unless one is set.
func WithAdapter(adapter BackendAdapter) Option {
	return func(b *serviceBuilder) {
		if adapter != nil {
			b.adapters = append(b.adapters, adapter)
		}
	}
}

func WithSessionResetter(resetter SessionResetter) Option {
	return func(b *serviceBuilder) {
		b.sessionResetter = resetter
	}
}

func WithPendingSource(source PendingSource) Option {
	return func(b *serviceBuilder) {
		b.pendingSource = source
	}
}

// WithActivityStore wires an activity store. Stores implementing only one side
// are accepted.
func WithActivityStore(store any) Option {
	return func(b *serviceBuilder) {
		if recorder, ok := store.(ActivityRecorder); ok {
			b.activityRecorder = recorder
		}
		if reader, ok := store.(ActivityReader); ok {
			b.activityReader = reader
		}
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.nowFn = nowFn
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("approvals", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

type layerSection struct {
	values      map[string]any
	includeZero bool
}

func (l layerSection) str(key string, value string) {
	if l.includeZero || strings.TrimSpace(value) != "" {
		l.values[key] = value
	}
}

func (l layerSection) flag(key string, value bool) {
	if l.includeZero || value {
		l.values[key] = value
	}
}

func (l layerSection) duration(key string, value time.Duration) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l layerSection) number(key string, value int) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l layerSection) attach(layer map[string]any, name string) {
	if len(l.values) > 0 {
		layer[name] = l.values
	}
}

func newLayerSection(includeZero bool) layerSection {
	return layerSection{values: map[string]any{}, includeZero: includeZero}
}

// configToLayerMap projects cfg into an options layer. Non-default layers only
// carry values that were set, so lower layers show through.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	general := newLayerSection(includeZero)
	general.str("pending_url", cfg.General.PendingURL)
	general.str("combined_url", cfg.General.CombinedURL)
	general.flag("tls_insecure_skip_verify", cfg.General.TLSInsecureSkipVerify)
	general.flag("http_cache", cfg.General.HTTPCache)
	general.attach(layer, "general")

	primary := newLayerSection(includeZero)
	primary.str("query_url", cfg.Primary.QueryURL)
	primary.str("authorize_url", cfg.Primary.AuthorizeURL)
	primary.str("branch", cfg.Primary.Branch)
	primary.str("user_id", cfg.Primary.UserID)
	primary.str("entity", cfg.Primary.Entity)
	primary.str("source", cfg.Primary.Source)
	primary.attach(layer, "primary")

	gateway := newLayerSection(includeZero)
	gateway.str("base_url", cfg.Gateway.BaseURL)
	gateway.str("auth_url", cfg.Gateway.AuthURL)
	gateway.str("refresh_url", cfg.Gateway.RefreshURL)
	gateway.str("details_url", cfg.Gateway.DetailsURL)
	gateway.str("approve_url", cfg.Gateway.ApproveURL)
	gateway.str("default_user", cfg.Gateway.DefaultUser)
	gateway.str("view_app_id", cfg.Gateway.ViewAppID)
	gateway.str("approve_app_id", cfg.Gateway.ApproveAppID)
	gateway.str("details_app_id", cfg.Gateway.DetailsAppID)
	gateway.str("entity_id", cfg.Gateway.EntityID)
	gateway.str("source_code", cfg.Gateway.SourceCode)
	gateway.str("multi_entity_admin", cfg.Gateway.MultiEntityAdmin)
	gateway.str("authorizer_role", cfg.Gateway.AuthorizerRole)
	gateway.str("default_branch", cfg.Gateway.DefaultBranch)
	gateway.str("host", cfg.Gateway.Host)
	gateway.str("origin", cfg.Gateway.Origin)
	gateway.str("referer", cfg.Gateway.Referer)
	gateway.attach(layer, "gateway")

	credentials := newLayerSection(includeZero)
	credentials.duration("ttl", cfg.Credentials.TTL)
	credentials.attach(layer, "credentials")

	resolver := newLayerSection(includeZero)
	resolver.str("default_backend", cfg.Resolver.DefaultBackend)
	if includeZero || len(cfg.Resolver.Aliases) > 0 {
		aliases := make(map[string]any, len(cfg.Resolver.Aliases))
		for alias, target := range cfg.Resolver.Aliases {
			aliases[alias] = target
		}
		resolver.values["aliases"] = aliases
	}
	resolver.attach(layer, "resolver")

	pending := newLayerSection(includeZero)
	pending.duration("cache_ttl", cfg.Pending.CacheTTL)
	pending.attach(layer, "pending")

	activity := newLayerSection(includeZero)
	activity.duration("retention_ttl", cfg.Activity.RetentionTTL)
	activity.number("row_cap", cfg.Activity.RowCap)
	activity.attach(layer, "activity")

	persistence := newLayerSection(includeZero)
	persistence.str("driver", cfg.Persistence.Driver)
	persistence.str("server", cfg.Persistence.Server)
	persistence.flag("debug", cfg.Persistence.Debug)
	persistence.duration("ping_timeout", cfg.Persistence.PingTimeout)
	persistence.attach(layer, "persistence")

	httpSection := newLayerSection(includeZero)
	httpSection.str("addr", cfg.HTTP.Addr)
	httpSection.attach(layer, "http")

	return layer
}
