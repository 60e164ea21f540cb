package gateway

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

const (
	initPath    = "/platojwtauth"
	refreshPath = "/platojwtauthrefresh/"
	recordParam = "EJLogId"
)

var gatewayBasePattern = regexp.MustCompile(`(https?://[^/]+/api-gateway)`)

// GatewayBase returns the configured base URL, or the "/api-gateway" prefix
// of the details URL.
func GatewayBase(cfg core.GatewayConfig) (string, error) {
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		return base, nil
	}
	if match := gatewayBasePattern.FindStringSubmatch(cfg.DetailsURL); len(match) > 1 {
		return match[1], nil
	}
	return "", fmt.Errorf("gateway: base url is not configured and cannot be derived from %q", cfg.DetailsURL)
}

func InitURL(cfg core.GatewayConfig) (string, error) {
	if explicit := strings.TrimSpace(cfg.AuthURL); explicit != "" {
		return explicit, nil
	}
	base, err := GatewayBase(cfg)
	if err != nil {
		return "", err
	}
	return base + initPath, nil
}

func RefreshURL(cfg core.GatewayConfig) (string, error) {
	if explicit := strings.TrimSpace(cfg.RefreshURL); explicit != "" {
		return explicit, nil
	}
	base, err := GatewayBase(cfg)
	if err != nil {
		return "", err
	}
	return base + refreshPath, nil
}

// DetailsURL appends the record identifier to the configured details URL,
// completing a trailing "EJLogId=" or "EJLogId" when present.
func DetailsURL(detailsURL string, recordID string) string {
	detailsURL = strings.TrimSpace(detailsURL)
	value := url.QueryEscape(strings.TrimSpace(recordID))
	switch {
	case strings.HasSuffix(detailsURL, recordParam+"="):
		return detailsURL + value
	case strings.HasSuffix(detailsURL, recordParam):
		return detailsURL + "=" + value
	case strings.Contains(detailsURL, "?"):
		return detailsURL + "&" + recordParam + "=" + value
	default:
		return detailsURL + "?" + recordParam + "=" + value
	}
}
