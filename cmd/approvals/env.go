package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "APPROVALS_"

type envBinding struct {
	section string
	key     string
	names   []string
	kind    envKind
}

type envKind int

const (
	envString envKind = iota
	envBool
	envDuration
	envInt
)

// Legacy names follow the APPROVALS_ name for each key and are only read when
// the prefixed variable is unset.
var envBindings = []envBinding{
	{key: "service_name", names: []string{"SERVICE_NAME"}},
	{section: "general", key: "pending_url", names: []string{"PENDING_URL", "CUSTOMER_SERVICE_API_PENDING"}},
	{section: "general", key: "combined_url", names: []string{"COMBINED_URL", "CUSTOMER_SERVICE_API_COMBINED"}},
	{section: "general", key: "tls_insecure_skip_verify", names: []string{"TLS_INSECURE_SKIP_VERIFY"}, kind: envBool},
	{section: "general", key: "http_cache", names: []string{"HTTP_CACHE"}, kind: envBool},
	{section: "primary", key: "query_url", names: []string{"PRIMARY_QUERY_URL", "FCUBS_QUERY_ACC_URL"}},
	{section: "primary", key: "authorize_url", names: []string{"PRIMARY_AUTHORIZE_URL", "FCUBS_AUTHORIZE_ACC_URL"}},
	{section: "primary", key: "branch", names: []string{"PRIMARY_BRANCH"}},
	{section: "primary", key: "user_id", names: []string{"PRIMARY_USER_ID"}},
	{section: "primary", key: "entity", names: []string{"PRIMARY_ENTITY"}},
	{section: "primary", key: "source", names: []string{"PRIMARY_SOURCE"}},
	{section: "gateway", key: "base_url", names: []string{"GATEWAY_BASE_URL"}},
	{section: "gateway", key: "auth_url", names: []string{"GATEWAY_AUTH_URL", "OBBRN_AUTH_URL"}},
	{section: "gateway", key: "refresh_url", names: []string{"GATEWAY_REFRESH_URL"}},
	{section: "gateway", key: "details_url", names: []string{"GATEWAY_DETAILS_URL", "OBBRN_EJ_LOG_URL"}},
	{section: "gateway", key: "approve_url", names: []string{"GATEWAY_APPROVE_URL", "OBBRN_APPROVE_URL"}},
	{section: "gateway", key: "default_user", names: []string{"GATEWAY_DEFAULT_USER"}},
	{section: "gateway", key: "default_branch", names: []string{"GATEWAY_DEFAULT_BRANCH"}},
	{section: "gateway", key: "host", names: []string{"GATEWAY_HOST", "OBBRN_HOST"}},
	{section: "gateway", key: "origin", names: []string{"GATEWAY_ORIGIN", "OBBRN_ORIGIN"}},
	{section: "gateway", key: "referer", names: []string{"GATEWAY_REFERER", "OBBRN_REFERER"}},
	{section: "credentials", key: "ttl", names: []string{"CREDENTIALS_TTL"}, kind: envDuration},
	{section: "resolver", key: "default_backend", names: []string{"DEFAULT_BACKEND"}},
	{section: "pending", key: "cache_ttl", names: []string{"PENDING_CACHE_TTL"}, kind: envDuration},
	{section: "activity", key: "retention_ttl", names: []string{"ACTIVITY_RETENTION_TTL"}, kind: envDuration},
	{section: "activity", key: "row_cap", names: []string{"ACTIVITY_ROW_CAP"}, kind: envInt},
	{section: "persistence", key: "driver", names: []string{"DB_DRIVER"}},
	{section: "persistence", key: "server", names: []string{"DB_DSN"}},
	{section: "persistence", key: "debug", names: []string{"DB_DEBUG"}, kind: envBool},
	{section: "http", key: "addr", names: []string{"HTTP_ADDR"}},
}

// envLoader produces the raw config layer from environment variables.
type envLoader struct {
	lookup func(string) (string, bool)
}

func newEnvLoader() envLoader {
	return envLoader{lookup: os.LookupEnv}
}

func (l envLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, binding := range envBindings {
		name, value, ok := l.first(lookup, binding.names)
		if !ok {
			continue
		}
		parsed, err := binding.kind.parse(value)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
		target := raw
		if binding.section != "" {
			section, _ := raw[binding.section].(map[string]any)
			if section == nil {
				section = map[string]any{}
				raw[binding.section] = section
			}
			target = section
		}
		target[binding.key] = parsed
	}

	// NODE_TLS_REJECT_UNAUTHORIZED=0 disables verification for legacy deployments.
	if value, ok := lookup("NODE_TLS_REJECT_UNAUTHORIZED"); ok && strings.TrimSpace(value) == "0" {
		general, _ := raw["general"].(map[string]any)
		if general == nil {
			general = map[string]any{}
			raw["general"] = general
		}
		if _, set := general["tls_insecure_skip_verify"]; !set {
			general["tls_insecure_skip_verify"] = true
		}
	}
	return raw, nil
}

func (l envLoader) first(lookup func(string) (string, bool), names []string) (string, string, bool) {
	for index, name := range names {
		key := name
		if index == 0 {
			key = envPrefix + name
		}
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return key, strings.TrimSpace(value), true
		}
	}
	return "", "", false
}

func (k envKind) parse(value string) (any, error) {
	switch k {
	case envBool:
		return strconv.ParseBool(value)
	case envDuration:
		return time.ParseDuration(value)
	case envInt:
		return strconv.Atoi(value)
	default:
		return value, nil
	}
}

// runtimeSettings are process level knobs that do not belong to the service
// config.
type runtimeSettings struct {
	LogLevel      string
	LogJSON       bool
	PruneInterval time.Duration
	ShutdownGrace time.Duration
}

func loadRuntimeSettings(lookup func(string) (string, bool)) (runtimeSettings, error) {
	settings := runtimeSettings{
		LogLevel:      "info",
		PruneInterval: time.Hour,
		ShutdownGrace: 10 * time.Second,
	}
	if value, ok := lookup(envPrefix + "LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		settings.LogLevel = strings.TrimSpace(value)
	}
	if value, ok := lookup(envPrefix + "LOG_FORMAT"); ok {
		settings.LogJSON = strings.EqualFold(strings.TrimSpace(value), "json")
	}
	for name, target := range map[string]*time.Duration{
		"ACTIVITY_PRUNE_INTERVAL": &settings.PruneInterval,
		"SHUTDOWN_GRACE":          &settings.ShutdownGrace,
	} {
		value, ok := lookup(envPrefix + name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || parsed <= 0 {
			return settings, fmt.Errorf("config: %s%s must be a positive duration", envPrefix, name)
		}
		*target = parsed
	}
	return settings, nil
}
