package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

type ClientOptions struct {
	Timeout               time.Duration
	TLSInsecureSkipVerify bool
	// HTTPCache enables ETag/Last-Modified revalidation through an in-memory
	// RFC 7234 cache.
	HTTPCache bool
}

// NewHTTPClient builds the client shared by backend adapters.
func NewHTTPClient(opts ClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRESTClientTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	if opts.TLSInsecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in through general.tls_insecure_skip_verify
	}

	var roundTripper http.RoundTripper = base
	if opts.HTTPCache {
		cacheTransport := httpcache.NewMemoryCacheTransport()
		cacheTransport.Transport = base
		roundTripper = cacheTransport
	}
	return &http.Client{Transport: roundTripper, Timeout: timeout}
}
