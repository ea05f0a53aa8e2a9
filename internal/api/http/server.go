package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moviefinder/searchservice/internal/domain"
	"moviefinder/searchservice/internal/i18n"
	"moviefinder/searchservice/internal/providers/storefront"
	"moviefinder/searchservice/internal/search"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest, providers []string) (domain.SearchResponse, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

// TranslationService localizes offer text and tags it with a language badge.
type TranslationService interface {
	Detect(ctx context.Context, text string) string
	TranslateToFrench(ctx context.Context, text string, force bool) i18n.Translation
	Badge(ctx context.Context, sample string) string
}

type Server struct {
	search         SearchService
	translate      TranslationService
	logger         *slog.Logger
	defaultCountry string
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithTranslation(service TranslationService) ServerOption {
	return func(s *Server) {
		s.translate = service
	}
}

// WithDefaultCountry sets the storefront country used when a request does not
// pass one.
func WithDefaultCountry(country string) ServerOption {
	return func(s *Server) {
		s.defaultCountry = strings.TrimSpace(country)
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/search/paidlinks", s.handlePaidLinks)
	mux.HandleFunc("/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "movie-finder-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	limit, err := parsePositiveInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	providers := parseCSV(r.URL.Query().Get("providers"))
	mode := domain.NormalizeContentMode(strings.TrimSpace(r.URL.Query().Get("mode")))
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		country = s.defaultCountry
	}
	enrich := parseOptionalBool(r.URL.Query().Get("enrich"))
	subscriptions := parseOptionalBool(r.URL.Query().Get("subscriptions"))
	translate := parseOptionalBool(r.URL.Query().Get("translate"))
	noCache := parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache"))

	response, err := s.search.Search(r.Context(), domain.SearchRequest{
		Query:                query,
		Limit:                limit,
		Mode:                 mode,
		Country:              country,
		IncludeSubscriptions: subscriptions,
		EnrichPosters:        enrich,
		NoCache:              noCache,
	}, providers)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("query", truncate(query, 80)),
			slog.Any("providers", providers),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, search.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, search.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, search.ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		}
		return
	}

	if translate {
		s.localizeResults(r.Context(), response.Results)
	}

	totalItems := 0
	failedProviders := make([]string, 0, len(response.Providers))
	for _, providerStatus := range response.Providers {
		totalItems += providerStatus.Count
		if !providerStatus.OK {
			failedProviders = append(failedProviders, providerStatus.Name)
		}
	}
	s.logger.Info("search completed",
		slog.String("query", truncate(query, 80)),
		slog.Any("providers", providers),
		slog.Int("totalItems", totalItems),
		slog.Int64("elapsedMs", response.ElapsedMS),
		slog.Int("failedProviders", len(failedProviders)),
	)
	if len(failedProviders) > 0 {
		s.logger.Warn("search providers partially failed",
			slog.String("query", truncate(query, 80)),
			slog.Any("failedProviders", failedProviders),
		)
	}

	writeJSON(w, http.StatusOK, response)
}

// localizeResults tags every offer with a language badge and rewrites
// non-French descriptions in French. Translation faults leave the original
// text in place.
func (s *Server) localizeResults(ctx context.Context, results map[string][]domain.Offer) {
	if s.translate == nil {
		return
	}
	for key, offers := range results {
		for i := range offers {
			sample := offers[i].Description
			if strings.TrimSpace(sample) == "" {
				sample = offers[i].Title
			}
			offers[i].Language = s.translate.Badge(ctx, sample)

			if strings.TrimSpace(offers[i].Description) == "" {
				continue
			}
			translation := s.translate.TranslateToFrench(ctx, offers[i].Description, false)
			if strings.TrimSpace(translation.Text) != "" {
				offers[i].Description = translation.Text
			}
			if translation.Changed {
				if offers[i].Extra == nil {
					offers[i].Extra = make(map[string]string, 1)
				}
				offers[i].Extra["translatedBy"] = translation.Source
			}
		}
		results[key] = offers
	}
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.ProviderDiagnostics(),
	})
}

// handlePaidLinks serves the fixed fallback storefront links for a title,
// usable even when every upstream is down.
func (s *Server) handlePaidLinks(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/paidlinks" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"items": storefront.GenericLinks(query),
	})
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
