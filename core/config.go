package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCredentialTTL    = 55 * time.Minute
	DefaultPendingCacheTTL  = 30 * time.Second
	DefaultActivityRetained = 30 * 24 * time.Hour
)

type GeneralConfig struct {
	PendingURL            string `koanf:"pending_url" mapstructure:"pending_url"`
	CombinedURL           string `koanf:"combined_url" mapstructure:"combined_url"`
	TLSInsecureSkipVerify bool   `koanf:"tls_insecure_skip_verify" mapstructure:"tls_insecure_skip_verify"`
	HTTPCache             bool   `koanf:"http_cache" mapstructure:"http_cache"`
}

type PrimaryConfig struct {
	QueryURL     string `koanf:"query_url" mapstructure:"query_url"`
	AuthorizeURL string `koanf:"authorize_url" mapstructure:"authorize_url"`
	Branch       string `koanf:"branch" mapstructure:"branch"`
	UserID       string `koanf:"user_id" mapstructure:"user_id"`
	Entity       string `koanf:"entity" mapstructure:"entity"`
	Source       string `koanf:"source" mapstructure:"source"`
}

type GatewayConfig struct {
	BaseURL          string `koanf:"base_url" mapstructure:"base_url"`
	AuthURL          string `koanf:"auth_url" mapstructure:"auth_url"`
	RefreshURL       string `koanf:"refresh_url" mapstructure:"refresh_url"`
	DetailsURL       string `koanf:"details_url" mapstructure:"details_url"`
	ApproveURL       string `koanf:"approve_url" mapstructure:"approve_url"`
	DefaultUser      string `koanf:"default_user" mapstructure:"default_user"`
	ViewAppID        string `koanf:"view_app_id" mapstructure:"view_app_id"`
	ApproveAppID     string `koanf:"approve_app_id" mapstructure:"approve_app_id"`
	DetailsAppID     string `koanf:"details_app_id" mapstructure:"details_app_id"`
	EntityID         string `koanf:"entity_id" mapstructure:"entity_id"`
	SourceCode       string `koanf:"source_code" mapstructure:"source_code"`
	MultiEntityAdmin string `koanf:"multi_entity_admin" mapstructure:"multi_entity_admin"`
	AuthorizerRole   string `koanf:"authorizer_role" mapstructure:"authorizer_role"`
	DefaultBranch    string `koanf:"default_branch" mapstructure:"default_branch"`
	Host             string `koanf:"host" mapstructure:"host"`
	Origin           string `koanf:"origin" mapstructure:"origin"`
	Referer          string `koanf:"referer" mapstructure:"referer"`
}

type CredentialsConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type ResolverConfig struct {
	DefaultBackend string            `koanf:"default_backend" mapstructure:"default_backend"`
	Aliases        map[string]string `koanf:"aliases" mapstructure:"aliases"`
}

type PendingConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type ActivityConfig struct {
	RetentionTTL time.Duration `koanf:"retention_ttl" mapstructure:"retention_ttl"`
	RowCap       int           `koanf:"row_cap" mapstructure:"row_cap"`
}

type PersistenceConfig struct {
	Driver      string        `koanf:"driver" mapstructure:"driver"`
	Server      string        `koanf:"server" mapstructure:"server"`
	Debug       bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return "go-approvals"
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	General     GeneralConfig     `koanf:"general" mapstructure:"general"`
	Primary     PrimaryConfig     `koanf:"primary" mapstructure:"primary"`
	Gateway     GatewayConfig     `koanf:"gateway" mapstructure:"gateway"`
	Credentials CredentialsConfig `koanf:"credentials" mapstructure:"credentials"`
	Resolver    ResolverConfig    `koanf:"resolver" mapstructure:"resolver"`
	Pending     PendingConfig     `koanf:"pending" mapstructure:"pending"`
	Activity    ActivityConfig    `koanf:"activity" mapstructure:"activity"`
	Persistence PersistenceConfig `koanf:"persistence" mapstructure:"persistence"`
	HTTP        HTTPConfig        `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "approvals",
		Primary: PrimaryConfig{
			Branch: "000",
			UserID: "SYSTEM",
			Entity: "ENTITY_ID1",
			Source: "FCAT",
		},
		Gateway: GatewayConfig{
			DefaultUser:      "TRAINEE2",
			ViewAppID:        "SECSRV001",
			ApproveAppID:     "SRVBRANCHCOMMON",
			DetailsAppID:     "SRVCMNTXN",
			EntityID:         "DEFAULTENTITY",
			SourceCode:       "FCUBS",
			MultiEntityAdmin: "N",
			AuthorizerRole:   "RETAIL_MANAGER",
			DefaultBranch:    "000",
		},
		Credentials: CredentialsConfig{TTL: DefaultCredentialTTL},
		Resolver: ResolverConfig{
			DefaultBackend: BackendPrimary,
			Aliases: map[string]string{
				"obbrn": BackendGateway,
				"fcubs": BackendPrimary,
			},
		},
		Pending:  PendingConfig{CacheTTL: DefaultPendingCacheTTL},
		Activity: ActivityConfig{RetentionTTL: DefaultActivityRetained},
		Persistence: PersistenceConfig{
			Driver: "sqlite3",
			Server: "file:approvals.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Credentials.TTL < 0 {
		return fmt.Errorf("core: credentials.ttl must be >= 0")
	}
	if c.Pending.CacheTTL < 0 {
		return fmt.Errorf("core: pending.cache_ttl must be >= 0")
	}
	if c.Activity.RowCap < 0 {
		return fmt.Errorf("core: activity.row_cap must be >= 0")
	}
	for alias, target := range c.Resolver.Aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("core: resolver aliases require both alias and target")
		}
	}
	return nil
}

func (c Config) CredentialTTL() time.Duration {
	if c.Credentials.TTL <= 0 {
		return DefaultCredentialTTL
	}
	return c.Credentials.TTL
}

func (c GatewayConfig) Branch(branch string) string {
	if value := strings.TrimSpace(branch); value != "" {
		return value
	}
	if value := strings.TrimSpace(c.DefaultBranch); value != "" {
		return value
	}
	return "000"
}

func (c GatewayConfig) User(userID string) string {
	if value := strings.TrimSpace(userID); value != "" {
		return value
	}
	return strings.TrimSpace(c.DefaultUser)
}
