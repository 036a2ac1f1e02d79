package proxygate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/oxbowlabs/vantage/internal/common"
	"github.com/oxbowlabs/vantage/internal/interfaces"
	"github.com/oxbowlabs/vantage/internal/models"
)

// ErrAllProxyTiersExhausted is returned by Resolve when no cascade tier is
// available: every configured proxy failed its health check and direct
// connection is disallowed.
var ErrAllProxyTiersExhausted = errors.New("all proxy tiers exhausted")

// ProbeFunc performs a single reachability probe through the given proxy
// server. An empty server means a direct connection. A nil error means the
// probe target was reached.
type ProbeFunc func(ctx context.Context, server string) error

type cacheEntry struct {
	record    *models.ProxyHealthRecord
	expiresAt time.Time
}

// Service implements the proxy health gate: bounded reachability probes
// with a TTL verdict cache, and 3-tier cascade resolution. Probes run
// through a throwaway browser context so the verdict reflects the same
// network path a real session would use.
type Service struct {
	cfg     common.ProxyGateConfig
	logger  arbor.ILogger
	probe   ProbeFunc
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// NewService creates a proxy gate probing with a throwaway browser context
func NewService(cfg *common.Config, logger arbor.ILogger) interfaces.ProxyGate {
	return newService(cfg, logger, newBrowserProbe(cfg))
}

// newService allows tests to inject a probe function
func newService(cfg *common.Config, logger arbor.ILogger, probe ProbeFunc) *Service {
	interval := cfg.Proxy.ProbeInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &Service{
		cfg:     cfg.Proxy,
		logger:  logger,
		probe:   probe,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		cache:   make(map[string]*cacheEntry),
	}
}

// CheckHealth returns the cached verdict when fresh, otherwise probes the
// server. Verdicts (healthy or not) are cached for the configured TTL so
// repeated login attempts do not hammer the probe target.
func (s *Service) CheckHealth(ctx context.Context, server string) *models.ProxyHealthRecord {
	s.mu.Lock()
	if entry, ok := s.cache[server]; ok && time.Now().Before(entry.expiresAt) {
		record := entry.record
		s.mu.Unlock()
		return record
	}
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return &models.ProxyHealthRecord{
			Server:        server,
			Healthy:       false,
			LastCheckedAt: time.Now().UTC(),
			Error:         err.Error(),
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := s.probe(probeCtx, server)
	elapsed := time.Since(start)

	record := &models.ProxyHealthRecord{
		Server:         server,
		Healthy:        err == nil,
		ResponseTimeMs: elapsed.Milliseconds(),
		LastCheckedAt:  time.Now().UTC(),
	}
	if err != nil {
		record.Error = err.Error()
		s.logger.Warn().
			Str("server", displayServer(server)).
			Err(err).
			Msg("Proxy health probe failed")
	} else {
		s.logger.Debug().
			Str("server", displayServer(server)).
			Int64("response_time_ms", record.ResponseTimeMs).
			Msg("Proxy health probe succeeded")
	}

	s.mu.Lock()
	s.cache[server] = &cacheEntry{
		record:    record,
		expiresAt: time.Now().Add(s.cfg.CacheTTL),
	}
	s.mu.Unlock()

	return record
}

// Resolve walks the cascade in tier order and returns the candidates whose
// health checks pass. The first candidate is the preferred network path;
// later ones are launch-time fallbacks. Health is optimistic: a proxy can
// die between check and use, so the caller wraps each candidate's actual
// use in its own try/fallback.
func (s *Service) Resolve(ctx context.Context, cfg *models.ProxyConfig) ([]models.ProxyCandidate, error) {
	allowDirect := s.cfg.AllowDirectConnection
	if cfg != nil && cfg.AllowDirectConnection != nil {
		allowDirect = *cfg.AllowDirectConnection
	}

	var tiers []models.ProxyCandidate
	if cfg != nil && cfg.Server != "" {
		tiers = append(tiers, models.ProxyCandidate{Tier: models.ProxyTierPrimary, Server: cfg.Server})
	}
	if cfg != nil && cfg.FallbackServer != "" {
		tiers = append(tiers, models.ProxyCandidate{Tier: models.ProxyTierFallback, Server: cfg.FallbackServer})
	}
	if allowDirect {
		tiers = append(tiers, models.ProxyCandidate{Tier: models.ProxyTierDirect, Server: ""})
	}

	var usable []models.ProxyCandidate
	for _, candidate := range tiers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Direct connection is not probed; there is no cheaper path to
		// verify it with than using it
		if candidate.Tier == models.ProxyTierDirect {
			usable = append(usable, candidate)
			continue
		}

		record := s.CheckHealth(ctx, candidate.Server)
		if record.Healthy {
			usable = append(usable, candidate)
		} else {
			s.logger.Info().
				Str("tier", string(candidate.Tier)).
				Str("server", displayServer(candidate.Server)).
				Msg("Skipping unhealthy cascade tier")
		}
	}

	if len(usable) == 0 {
		return nil, ErrAllProxyTiersExhausted
	}

	return usable, nil
}

// PurgeExpired drops stale verdicts from the cache
func (s *Service) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for server, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, server)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Purged expired proxy health verdicts")
	}

	return removed
}

// displayServer keeps log lines meaningful for the direct tier
func displayServer(server string) string {
	if server == "" {
		return "direct"
	}
	return server
}
