package customHttpClient

import (
	"net/http"

	"github.com/akolanti/DigestAPI/internal/config"
)

// Shared pooled client so provider SDKs reuse connections instead of
// re-dialing on every completion or embedding call.

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

var pooledClient = &http.Client{Transport: customTransport}

func PooledClient() *http.Client {
	return pooledClient
}
