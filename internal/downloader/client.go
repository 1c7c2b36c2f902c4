package downloader

import (
	"net/http"

	"pillowdl/internal/config"
	"pillowdl/internal/proxymgr"
)

// NewHTTPClient builds the client shared by all tasks of a run.
// Timeouts are set per request through the context, so the client itself has none.
func NewHTTPClient(cfg *config.Config, proxyMgr *proxymgr.Manager) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	transport.MaxIdleConnsPerHost = cfg.Job.Workers

	if proxyMgr != nil && proxyMgr.HasProxies() {
		transport.Proxy = proxyMgr.Proxy
	}

	return &http.Client{Transport: transport}
}
