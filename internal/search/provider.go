package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"moviefinder/searchservice/internal/domain"
	"moviefinder/searchservice/internal/providers/tmdb"
)

var (
	ErrInvalidQuery    = errors.New("query is required")
	ErrNoProviders     = errors.New("no search providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Search(ctx context.Context, request domain.SearchRequest) ([]domain.Offer, error)
}

// Enricher fills in poster art and runtimes after the fan-out completes.
type Enricher interface {
	Enabled() bool
	Lookup(ctx context.Context, title string, year int) (tmdb.Movie, error)
	Runtime(ctx context.Context, movieID int) (int, error)
}

type Service struct {
	providers     map[string]Provider
	order         []string
	timeout       time.Duration
	cacheDisabled bool
	cacheMu       sync.RWMutex
	cache         map[string]*cachedSearchResponse
	popular       map[string]*popularQuery
	warmerCfg     searchWarmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend
	enricher      Enricher
	healthMu      sync.Mutex
	health        map[string]*providerHealth
	limiterMu     sync.Mutex
	limiters      map[string]*rate.Limiter
	providerRate  rate.Limit
	providerBurst int
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithEnricher(client Enricher) ServiceOption {
	return func(s *Service) {
		s.enricher = client
	}
}

// WithProviderRateLimit caps how often a single provider may be queried.
func WithProviderRateLimit(perSecond float64, burst int) ServiceOption {
	return func(s *Service) {
		if perSecond > 0 {
			s.providerRate = rate.Limit(perSecond)
		}
		if burst > 0 {
			s.providerBurst = burst
		}
	}
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	registry := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		if _, exists := registry[name]; !exists {
			order = append(order, name)
		}
		registry[name] = provider
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		providers:     registry,
		order:         order,
		timeout:       timeout,
		cache:         make(map[string]*cachedSearchResponse),
		popular:       make(map[string]*popularQuery),
		warmerCfg:     defaultSearchWarmerConfig(),
		health:        make(map[string]*providerHealth),
		limiters:      make(map[string]*rate.Limiter),
		providerRate:  rate.Limit(2),
		providerBurst: 4,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.providers) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, name := range s.order {
		provider, ok := s.providers[name]
		if !ok {
			continue
		}
		info := provider.Info()
		if info.Name == "" {
			info.Name = name
		}
		info.Name = strings.ToLower(strings.TrimSpace(info.Name))
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return providerOrderRank(items[i].Name) < providerOrderRank(items[j].Name)
	})
	return items
}

func providerOrderRank(name string) int {
	for i, known := range domain.DefaultProviderOrder() {
		if known == name {
			return i
		}
	}
	return len(domain.DefaultProviderOrder())
}

func (s *Service) waitProviderRateLimit(ctx context.Context, providerName string) error {
	s.limiterMu.Lock()
	limiter, ok := s.limiters[providerName]
	if !ok {
		limiter = rate.NewLimiter(s.providerRate, s.providerBurst)
		s.limiters[providerName] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Wait(ctx)
}
