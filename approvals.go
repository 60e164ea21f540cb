package approvals

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-approvals/backends/gateway"
	"github.com/goliatone/go-approvals/backends/pending"
	"github.com/goliatone/go-approvals/backends/primary"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/store/cache"
	"github.com/goliatone/go-approvals/transport"
	glog "github.com/goliatone/go-logger/glog"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type HandoffRequest = core.HandoffRequest

type DetailsRequest = core.DetailsRequest

type ActionRequest = core.ActionRequest

type PendingFilter = core.PendingFilter

type ActivityFilter = core.ActivityFilter

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithActivityStore   = core.WithActivityStore
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

type BuildOption func(*buildOptions)

type buildOptions struct {
	loggerProvider glog.LoggerProvider
	logger         glog.Logger
	metrics        core.MetricsRecorder
	transports     *transport.Registry
	activityStore  any
	serviceOptions []core.Option
}

func WithBuildLogger(logger glog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

func WithBuildLoggerProvider(provider glog.LoggerProvider) BuildOption {
	return func(o *buildOptions) {
		o.loggerProvider = provider
	}
}

func WithBuildMetrics(recorder core.MetricsRecorder) BuildOption {
	return func(o *buildOptions) {
		o.metrics = recorder
	}
}

// WithTransportRegistry replaces the default HTTP transports. The registry
// must resolve transport.KindREST.
func WithTransportRegistry(registry *transport.Registry) BuildOption {
	return func(o *buildOptions) {
		o.transports = registry
	}
}

func WithBuildActivityStore(store any) BuildOption {
	return func(o *buildOptions) {
		o.activityStore = store
	}
}

func WithServiceOptions(opts ...core.Option) BuildOption {
	return func(o *buildOptions) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

// Application is the wired graph behind the HTTP surface: one token store
// shared by the gateway adapter and its bootstrap coordinator, both backend
// adapters, the pending source and the service.
type Application struct {
	config     Config
	service    *Service
	tokens     *core.TokenStore
	transports *transport.Registry
	gateway    *gateway.Adapter
	primary    *primary.Adapter
	pending    core.PendingSource
	facade     *Facade
}

func Build(cfg Config, opts ...BuildOption) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := buildOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	provider, logger := glog.Resolve("approvals", options.loggerProvider, options.logger)
	named := func(name string) glog.Logger {
		if provider != nil {
			if scoped := provider.GetLogger(name); scoped != nil {
				return scoped
			}
		}
		return glog.Ensure(logger)
	}

	transports := options.transports
	if transports == nil {
		transports = transport.NewDefaultRegistry(transport.ClientOptions{
			TLSInsecureSkipVerify: cfg.General.TLSInsecureSkipVerify,
		})
	}
	rest, err := transports.Build(transport.KindREST, nil)
	if err != nil {
		return nil, fmt.Errorf("approvals: resolve rest transport: %w", err)
	}

	tokens := core.NewTokenStore(
		core.WithTokenTTL(cfg.CredentialTTL()),
		core.WithTokenLogger(named("tokens")),
	)
	coordinator := gateway.NewCoordinator(cfg.Gateway, tokens, rest,
		gateway.WithCoordinatorLogger(named("gateway.bootstrap")),
		gateway.WithCoordinatorTTL(cfg.CredentialTTL()),
	)
	gatewayAdapter, err := gateway.NewAdapter(cfg.Gateway, tokens, rest,
		gateway.WithLogger(named("gateway")),
		gateway.WithCoordinator(coordinator),
	)
	if err != nil {
		return nil, err
	}
	primaryAdapter, err := primary.NewAdapter(cfg.Primary, rest, primary.WithLogger(named("primary")))
	if err != nil {
		return nil, err
	}

	pendingSource, err := buildPendingSource(cfg, transports, rest, named("pending"))
	if err != nil {
		return nil, err
	}

	serviceOpts := []core.Option{
		core.WithLoggerProvider(provider),
		core.WithLogger(logger),
		core.WithTokenStore(tokens),
		core.WithAdapter(primaryAdapter),
		core.WithAdapter(gatewayAdapter),
	}
	if options.metrics != nil {
		serviceOpts = append(serviceOpts, core.WithMetricsRecorder(options.metrics))
	}
	if pendingSource != nil {
		serviceOpts = append(serviceOpts, core.WithPendingSource(pendingSource))
	}
	if options.activityStore != nil {
		serviceOpts = append(serviceOpts, core.WithActivityStore(options.activityStore))
	}
	serviceOpts = append(serviceOpts, options.serviceOptions...)

	service, err := core.NewService(cfg, serviceOpts...)
	if err != nil {
		return nil, err
	}
	facade, err := NewFacade(service)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:     service.Config(),
		service:    service,
		tokens:     tokens,
		transports: transports,
		gateway:    gatewayAdapter,
		primary:    primaryAdapter,
		pending:    pendingSource,
		facade:     facade,
	}, nil
}

// buildPendingSource returns nil when no pending URL is configured. With
// general.http_cache the listing goes through the revalidating transport, and
// a positive pending.cache_ttl adds the read-through cache on top.
func buildPendingSource(
	cfg Config,
	transports *transport.Registry,
	rest core.TransportAdapter,
	logger glog.Logger,
) (core.PendingSource, error) {
	url := strings.TrimSpace(cfg.General.PendingURL)
	if url == "" {
		url = strings.TrimSpace(cfg.General.CombinedURL)
	}
	if url == "" {
		return nil, nil
	}

	adapter := rest
	if cfg.General.HTTPCache {
		cached, err := transports.Build(transport.KindCachedREST, nil)
		if err != nil {
			logger.Warn("cached transport unavailable, using plain rest", "error", err)
		} else {
			adapter = cached
		}
	}
	source, err := pending.NewHTTPSource(url, adapter, pending.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if cfg.Pending.CacheTTL <= 0 {
		return source, nil
	}
	cacheService, err := cache.NewPendingCacheService(cfg.Pending.CacheTTL)
	if err != nil {
		return nil, err
	}
	cached, err := cache.NewCachedPendingSource(source, cacheService)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func (a *Application) Config() Config {
	if a == nil {
		return Config{}
	}
	return a.config
}

func (a *Application) Service() *Service {
	if a == nil {
		return nil
	}
	return a.service
}

func (a *Application) Tokens() *core.TokenStore {
	if a == nil {
		return nil
	}
	return a.tokens
}

func (a *Application) Transports() *transport.Registry {
	if a == nil {
		return nil
	}
	return a.transports
}

func (a *Application) Gateway() *gateway.Adapter {
	if a == nil {
		return nil
	}
	return a.gateway
}

func (a *Application) Primary() *primary.Adapter {
	if a == nil {
		return nil
	}
	return a.primary
}

func (a *Application) PendingSource() core.PendingSource {
	if a == nil {
		return nil
	}
	return a.pending
}

func (a *Application) Facade() *Facade {
	if a == nil {
		return nil
	}
	return a.facade
}
