// Package proxymgr rotates outbound proxies for download requests.
// It handles proxy selection, health checking, and failure tracking.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"pillowdl/internal/config"
	"pillowdl/internal/errs"
	"pillowdl/internal/observability"
)

// ProxyState represents the current state of a proxy.
type ProxyState int

const (
	// ProxyStateAvailable indicates the proxy is available for use.
	ProxyStateAvailable ProxyState = iota
	// ProxyStateFailed indicates the proxy has failed and is in backoff.
	ProxyStateFailed
)

const (
	healthCheckTimeout = 10 * time.Second
	maxBackoff         = 1 * time.Hour
)

type proxyInfo struct {
	URL           string
	State         ProxyState
	FailureCount  int
	LastFailure   time.Time
	BackoffUntil  time.Time
	LastHealthChk time.Time
}

// Manager manages proxy rotation and health.
type Manager struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu      sync.RWMutex
	proxies map[string]*proxyInfo
	order   []string // insertion order
}

// New creates a new proxy manager. metrics may be nil.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Manager {
	mgr := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg,
		metrics: metrics,
		proxies: make(map[string]*proxyInfo),
		order:   make([]string, 0, len(cfg.Proxy.Proxies)),
	}

	for _, proxy := range cfg.Proxy.Proxies {
		if _, dup := mgr.proxies[proxy]; dup {
			continue
		}

		mgr.proxies[proxy] = &proxyInfo{
			URL:   proxy,
			State: ProxyStateAvailable,
		}
		mgr.order = append(mgr.order, proxy)
	}

	mgr.publishAvailable()

	return mgr
}

type usedKey struct{}

// Used records which proxy served a request made with a tracked context.
type Used struct {
	mu    sync.Mutex
	proxy string
}

// Proxy returns the proxy picked for the request, or an empty string.
func (u *Used) Proxy() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.proxy
}

func (u *Used) set(proxy string) {
	u.mu.Lock()
	u.proxy = proxy
	u.mu.Unlock()
}

// Track returns a context whose requests report their chosen proxy into the returned holder.
func Track(ctx context.Context) (context.Context, *Used) {
	used := &Used{}

	return context.WithValue(ctx, usedKey{}, used), used
}

// Proxy picks a random available proxy for req. It is meant for http.Transport.Proxy.
// It returns nil when no proxies are configured and ErrNoProxiesAvailable when all are in backoff.
func (m *Manager) Proxy(req *http.Request) (*url.URL, error) {
	if !m.HasProxies() {
		return nil, nil //nolint:nilnil // direct connection
	}

	proxy := m.GetRandomProxy()
	if proxy == "" {
		return nil, errs.ErrNoProxiesAvailable
	}

	parsed, err := url.Parse(proxy)
	if err != nil {
		m.MarkFailed(proxy)

		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}

	if used, ok := req.Context().Value(usedKey{}).(*Used); ok {
		used.set(proxy)
	}

	if m.metrics != nil {
		m.metrics.RecordProxyRequest(proxy)
	}

	return parsed, nil
}

// GetRandomProxy returns a random available proxy URL.
// Returns empty string if no proxies are available.
func (m *Manager) GetRandomProxy() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.getAvailableProxies()
	if len(available) == 0 {
		return ""
	}

	return available[rand.IntN(len(available))]
}

// MarkFailed marks a proxy as failed and applies backoff.
func (m *Manager) MarkFailed(proxyURL string) {
	m.mu.Lock()

	info, exists := m.proxies[proxyURL]
	if !exists {
		m.mu.Unlock()

		return
	}

	info.FailureCount++
	info.LastFailure = time.Now()

	if info.FailureCount >= m.cfg.Proxy.MaxFailures {
		info.State = ProxyStateFailed
		// exponential
		backoff := min(m.cfg.Proxy.FailureBackoff*time.Duration(1<<(info.FailureCount-m.cfg.Proxy.MaxFailures)), maxBackoff)
		info.BackoffUntil = time.Now().Add(backoff)

		m.log.Warn("proxy marked as failed",
			slog.String("proxy", proxyURL),
			slog.Int("failure_count", info.FailureCount),
			slog.Duration("backoff", backoff))
	}

	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordProxyFailure(proxyURL)
	}

	m.publishAvailable()
}

// MarkSuccess marks a proxy as successful and resets failure count.
func (m *Manager) MarkSuccess(proxyURL string) {
	m.mu.Lock()

	info, exists := m.proxies[proxyURL]
	if exists {
		info.State = ProxyStateAvailable
		info.FailureCount = 0
		info.BackoffUntil = time.Time{}
	}

	m.mu.Unlock()

	if exists {
		m.publishAvailable()
	}
}

// HealthCheck dials a proxy and updates its state.
func (m *Manager) HealthCheck(ctx context.Context, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy URL: %w", err)
	}

	dialer := &net.Dialer{
		Timeout: healthCheckTimeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", parsedURL.Host)
	if err != nil {
		m.MarkFailed(proxyURL)

		return fmt.Errorf("dial proxy: %w", err)
	}
	defer conn.Close()

	m.mu.Lock()

	if info, exists := m.proxies[proxyURL]; exists {
		info.LastHealthChk = time.Now()
	}

	m.mu.Unlock()

	m.MarkSuccess(proxyURL)

	return nil
}

// StartHealthChecker starts background health checking for all proxies.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.Proxy.HealthCheckInterval <= 0 || len(m.proxies) == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.Proxy.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAllProxies(ctx)
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.Proxy.HealthCheckInterval),
		slog.Int("proxy_count", len(m.proxies)))
}

// ProxyStats represents statistics for a proxy.
type ProxyStats struct {
	State         ProxyState
	FailureCount  int
	LastFailure   time.Time
	BackoffUntil  time.Time
	LastHealthChk time.Time
}

// GetStats returns current proxy statistics.
func (m *Manager) GetStats() map[string]ProxyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]ProxyStats, len(m.proxies))
	for proxyURL, info := range m.proxies {
		stats[proxyURL] = ProxyStats{
			State:         info.State,
			FailureCount:  info.FailureCount,
			LastFailure:   info.LastFailure,
			BackoffUntil:  info.BackoffUntil,
			LastHealthChk: info.LastHealthChk,
		}
	}

	return stats
}

// HasProxies returns true if any proxies are configured.
func (m *Manager) HasProxies() bool {
	return len(m.order) > 0
}

// ProxyCount returns the total number of configured proxies.
func (m *Manager) ProxyCount() int {
	return len(m.order)
}

// AvailableCount returns the number of currently available proxies.
func (m *Manager) AvailableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.getAvailableProxies())
}

func (m *Manager) publishAvailable() {
	if m.metrics == nil {
		return
	}

	m.metrics.SetProxiesAvailable(m.AvailableCount())
}

// getAvailableProxies treats failed proxies whose backoff expired as available. Callers hold mu.
func (m *Manager) getAvailableProxies() []string {
	now := time.Now()
	available := make([]string, 0, len(m.order))

	for _, proxyURL := range m.order {
		info := m.proxies[proxyURL]
		if info.State == ProxyStateAvailable || now.After(info.BackoffUntil) {
			available = append(available, proxyURL)
		}
	}

	return available
}

func (m *Manager) checkAllProxies(ctx context.Context) {
	for _, proxy := range m.order {
		if ctx.Err() != nil {
			return
		}

		if err := m.HealthCheck(ctx, proxy); err != nil {
			m.log.Debug("proxy health check failed",
				slog.String("proxy", proxy),
				slog.Any("error", err))
		}
	}
}
