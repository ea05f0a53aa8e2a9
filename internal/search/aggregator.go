package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/semaphore"
	"moviefinder/searchservice/internal/domain"
	"moviefinder/searchservice/internal/metrics"
)

// maxConcurrentProviders limits how many provider queries run simultaneously.
const maxConcurrentProviders = 8

type preparedSearch struct {
	query                string
	limit                int
	mode                 domain.ContentMode
	country              string
	includeSubscriptions bool
	enrich               bool
	selected             []Provider
	providerNames        []string
}

func (p preparedSearch) cacheRequest() domain.SearchRequest {
	return domain.SearchRequest{
		Query:                p.query,
		Limit:                p.limit,
		Mode:                 p.mode,
		Country:              p.country,
		IncludeSubscriptions: p.includeSubscriptions,
		EnrichPosters:        p.enrich,
	}
}

func (p preparedSearch) providerRequest() domain.SearchRequest {
	request := p.cacheRequest()
	request.NoCache = false
	return request
}

func (s *Service) Search(ctx context.Context, request domain.SearchRequest, providerNames []string) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request, providerNames)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	if s.cacheDisabled || request.NoCache {
		return s.executePreparedSearch(ctx, prepared)
	}

	startedAt := time.Now()
	cacheKey := buildSearchCacheKey(prepared.cacheRequest(), prepared.providerNames)

	if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
		// Track popularity even on cache hits, so the warmer can keep hot queries fresh.
		s.markPopular(cacheKey, prepared.cacheRequest(), prepared.providerNames, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(cacheKey, prepared)
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	response, err := s.executePreparedSearch(ctx, prepared)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	s.cacheStore(cacheKey, response, time.Now())
	s.markPopular(cacheKey, prepared.cacheRequest(), prepared.providerNames, time.Now())
	return response, nil
}

func (s *Service) searchNoCache(ctx context.Context, request domain.SearchRequest, providerNames []string) (domain.SearchResponse, error) {
	prepared, err := s.prepareSearch(request, providerNames)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	response, err := s.executePreparedSearch(ctx, prepared)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	cacheKey := buildSearchCacheKey(prepared.cacheRequest(), prepared.providerNames)
	s.cacheStore(cacheKey, response, time.Now())
	return response, nil
}

func (s *Service) refreshCacheAsync(cacheKey string, prepared preparedSearch) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		response, err := s.executePreparedSearch(ctx, prepared)
		if err != nil {
			s.cacheClearRefreshing(cacheKey)
			return
		}
		s.cacheStore(cacheKey, response, time.Now())
	}()
}

func (s *Service) prepareSearch(request domain.SearchRequest, providerNames []string) (preparedSearch, error) {
	normalizedQuery := strings.TrimSpace(request.Query)
	if normalizedQuery == "" {
		return preparedSearch{}, ErrInvalidQuery
	}

	limit := request.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	mode := domain.NormalizeContentMode(string(request.Mode))

	country := strings.ToUpper(strings.TrimSpace(request.Country))
	if len(country) != 2 {
		country = "FR"
	}

	selected, err := s.resolveProviders(providerNames, mode)
	if err != nil {
		return preparedSearch{}, err
	}

	providerKeys := make([]string, 0, len(selected))
	for _, provider := range selected {
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name != "" {
			providerKeys = append(providerKeys, name)
		}
	}

	return preparedSearch{
		query:                normalizedQuery,
		limit:                limit,
		mode:                 mode,
		country:              country,
		includeSubscriptions: request.IncludeSubscriptions,
		enrich:               request.EnrichPosters,
		selected:             selected,
		providerNames:        providerKeys,
	}, nil
}

func (s *Service) executePreparedSearch(ctx context.Context, prepared preparedSearch) (domain.SearchResponse, error) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	statuses := make([]domain.ProviderStatus, len(prepared.selected))
	offersByProvider := make([][]domain.Offer, len(prepared.selected))

	var mu sync.Mutex
	sem := semaphore.NewWeighted(maxConcurrentProviders)
	var wg sync.WaitGroup

	for i, provider := range prepared.selected {
		wg.Add(1)
		go func(index int, current Provider) {
			defer wg.Done()

			providerKey := strings.ToLower(strings.TrimSpace(current.Name()))
			statusName := strings.ToLower(strings.TrimSpace(current.Info().Name))
			if statusName == "" {
				statusName = providerKey
			}

			if err := sem.Acquire(runCtx, 1); err != nil {
				mu.Lock()
				statuses[index] = domain.ProviderStatus{
					Name:  statusName,
					OK:    false,
					Error: "context cancelled",
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			now := time.Now()
			if blocked, until, lastErr := s.isProviderBlocked(providerKey, now); blocked {
				mu.Lock()
				statuses[index] = domain.ProviderStatus{
					Name:  statusName,
					OK:    false,
					Error: fmt.Sprintf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr),
				}
				mu.Unlock()
				return
			}

			if err := s.waitProviderRateLimit(runCtx, providerKey); err != nil {
				mu.Lock()
				statuses[index] = domain.ProviderStatus{
					Name:  statusName,
					OK:    false,
					Error: "rate limit wait cancelled",
				}
				mu.Unlock()
				return
			}

			providerStartedAt := time.Now()
			var items []domain.Offer
			searchErr := RetryWithBackoff(runCtx, DefaultRetryConfig(), func() error {
				var err error
				items, err = current.Search(runCtx, prepared.providerRequest())
				return err
			})
			elapsed := time.Since(providerStartedAt)
			s.recordProviderResult(providerKey, prepared.query, searchErr, elapsed, time.Now())

			if searchErr != nil {
				slog.Warn("search: provider failed",
					slog.String("provider", providerKey),
					slog.String("query", prepared.query),
					slog.Int64("elapsedMs", elapsed.Milliseconds()),
					slog.String("error", searchErr.Error()),
				)
			}

			status := domain.ProviderStatus{
				Name: statusName,
				OK:   searchErr == nil,
			}
			if searchErr != nil {
				status.Error = searchErr.Error()
			}
			status.Count = len(items)

			mu.Lock()
			statuses[index] = status
			offersByProvider[index] = items
			mu.Unlock()
		}(i, provider)
	}
	wg.Wait()

	// Merge in provider order, deduplicating by exact stream URL. The first
	// provider to claim a URL keeps it; offers without a URL are never
	// deduplicated against each other.
	results := make(map[string][]domain.Offer, len(prepared.selected))
	usedURLs := make(map[string]bool)
	for i, key := range prepared.providerNames {
		offers := offersByProvider[i]
		kept := make([]domain.Offer, 0, len(offers))
		for _, offer := range offers {
			if offer.StreamURL != "" {
				if usedURLs[offer.StreamURL] {
					continue
				}
				usedURLs[offer.StreamURL] = true
			}
			kept = append(kept, offer)
		}
		if len(kept) > prepared.limit {
			kept = kept[:prepared.limit]
		}
		statuses[i].Count = len(kept)
		results[key] = kept
	}

	if prepared.enrich {
		s.enrichResults(runCtx, results)
	}

	return domain.SearchResponse{
		Query:     prepared.query,
		Mode:      prepared.mode,
		Results:   results,
		Providers: statuses,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
	}, nil
}

// resolveProviders builds the active set: the requested names (or the default
// order) intersected with the registry. Mode "other" drops the movie-only
// providers, which never carry non-film archive material.
func (s *Service) resolveProviders(providerNames []string, mode domain.ContentMode) ([]Provider, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	requested := providerNames
	if len(requested) == 0 {
		requested = s.defaultOrder()
	}

	selected := make([]Provider, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, rawName := range requested {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" {
			continue
		}
		provider, ok := s.providers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		if mode == domain.ContentModeOther && (name == domain.ProviderYouTube || name == domain.ProviderPaid) {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		selected = append(selected, provider)
	}

	if len(selected) == 0 {
		return nil, ErrNoProviders
	}
	return selected, nil
}

func (s *Service) defaultOrder() []string {
	ordered := make([]string, 0, len(s.order))
	for _, name := range domain.DefaultProviderOrder() {
		if _, ok := s.providers[name]; ok {
			ordered = append(ordered, name)
		}
	}
	for _, name := range s.order {
		if providerOrderRank(name) < len(domain.DefaultProviderOrder()) {
			continue
		}
		ordered = append(ordered, name)
	}
	return ordered
}

// enrichResults fills missing posters and runtimes from TMDB, sequentially so
// a slow metadata backend never multiplies fan-out latency. Paid offers keep
// the storefront's own artwork and are left alone.
func (s *Service) enrichResults(ctx context.Context, results map[string][]domain.Offer) {
	if s.enricher == nil || !s.enricher.Enabled() {
		return
	}

	type lookupEntry struct {
		posterURL string
		movieID   int
	}
	memo := make(map[string]lookupEntry)

	for key, offers := range results {
		if key == domain.ProviderPaid {
			continue
		}
		for i := range offers {
			if offers[i].PosterURL != "" && offers[i].DurationMinutes > 0 {
				continue
			}
			if ctx.Err() != nil {
				return
			}

			memoKey := strings.ToLower(strings.TrimSpace(offers[i].Title)) + "|" + fmt.Sprint(offers[i].Year)
			entry, cached := memo[memoKey]
			if !cached {
				movie, err := s.enricher.Lookup(ctx, offers[i].Title, offers[i].Year)
				if err != nil {
					metrics.EnrichmentLookupsTotal.WithLabelValues("error").Inc()
					continue
				}
				entry = lookupEntry{posterURL: movie.PosterURL, movieID: movie.ID}
				memo[memoKey] = entry
				if movie.ID == 0 {
					metrics.EnrichmentLookupsTotal.WithLabelValues("miss").Inc()
				} else {
					metrics.EnrichmentLookupsTotal.WithLabelValues("hit").Inc()
				}
			}

			if offers[i].PosterURL == "" && entry.posterURL != "" {
				offers[i].PosterURL = entry.posterURL
			}
			if offers[i].DurationMinutes == 0 && entry.movieID > 0 {
				if minutes, err := s.enricher.Runtime(ctx, entry.movieID); err == nil && minutes > 0 {
					offers[i].DurationMinutes = minutes
				}
			}
		}
		results[key] = offers
	}
}
