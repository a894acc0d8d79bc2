// Package probe verifies pooled resources are reachable before they are handed out.
package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"rotapool/internal/model"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"

	"golang.org/x/net/proxy"
)

const (
	DefaultTargetURL = "https://httpbin.org/ip"
	DefaultTimeout   = 10 * time.Second

	maxDrainBytes = 64 << 10
)

// SOCKS5Probe issues a GET to a target URL through the proxy under test.
// Any 2xx answer within the timeout counts as healthy.
type SOCKS5Probe struct {
	targetURL string
	timeout   time.Duration
}

var _ interfaces.CapabilityProbe = (*SOCKS5Probe)(nil)

// NewSOCKS5Probe creates a probe, falling back to defaults for empty values
func NewSOCKS5Probe(targetURL string, timeout time.Duration) *SOCKS5Probe {
	if targetURL == "" {
		targetURL = DefaultTargetURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SOCKS5Probe{targetURL: targetURL, timeout: timeout}
}

// Probe implements interfaces.CapabilityProbe
func (p *SOCKS5Probe) Probe(ctx context.Context, cfg *model.ResourceConfig) (bool, time.Duration) {
	if cfg == nil || cfg.Proxy == nil {
		return false, 0
	}

	client, err := p.clientFor(cfg.Proxy)
	if err != nil {
		logger.WarnCtx(ctx, "proxy %s probe setup failed: %v", cfg.ID, err)
		return false, 0
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.targetURL, nil)
	if err != nil {
		logger.WarnCtx(ctx, "proxy %s probe request invalid: %v", cfg.ID, err)
		return false, 0
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logger.WarnCtx(ctx, "proxy %s probe failed: %v", cfg.ID, err)
		return false, 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WarnCtx(ctx, "proxy %s probe got status %d", cfg.ID, resp.StatusCode)
		return false, latency
	}
	return true, latency
}

func (p *SOCKS5Probe) clientFor(ep *model.ProxyEndpoint) (*http.Client, error) {
	var auth *proxy.Auth
	if ep.Username != "" {
		auth = &proxy.Auth{User: ep.Username, Password: ep.Password}
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	dialer, err := proxy.SOCKS5("tcp", addr, auth, &net.Dialer{Timeout: p.timeout})
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: p.timeout,
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.Dial = dialer.Dial //nolint:staticcheck
	}

	return &http.Client{Transport: transport, Timeout: p.timeout}, nil
}
