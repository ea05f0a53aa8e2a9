package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "moviefinder/searchservice/internal/api/http"
	"moviefinder/searchservice/internal/app"
	"moviefinder/searchservice/internal/i18n"
	"moviefinder/searchservice/internal/metrics"
	"moviefinder/searchservice/internal/paid"
	"moviefinder/searchservice/internal/providers/archive"
	"moviefinder/searchservice/internal/providers/justwatch"
	"moviefinder/searchservice/internal/providers/storefront"
	"moviefinder/searchservice/internal/providers/tmdb"
	"moviefinder/searchservice/internal/providers/youtube"
	"moviefinder/searchservice/internal/search"
	"moviefinder/searchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "movie-finder-search")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "movie-finder-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("country", cfg.Country),
		slog.String("archiveEndpoint", cfg.ArchiveEndpoint),
		slog.Bool("hasYouTubeKey", cfg.YouTubeAPIKey != ""),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	archiveClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	youtubeClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	justwatchClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	itunesClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}

	paidProvider := paid.NewReconciler(
		justwatch.NewClient(justwatch.Config{
			Endpoint:  cfg.JustWatchEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    justwatchClient,
		}),
		paid.WithITunes(storefront.NewITunesClient(storefront.ITunesConfig{
			Endpoint:  cfg.ITunesEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    itunesClient,
		})),
		paid.WithLogger(logger),
	)

	serviceOpts := buildServiceOptions(cfg, logger)
	tmdbClient := buildTMDBClient(cfg, logger)
	if tmdbClient != nil && tmdbClient.Enabled() {
		serviceOpts = append(serviceOpts, search.WithEnricher(tmdbClient))
	}

	searchService := search.NewService([]search.Provider{
		archive.NewProvider(archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    archiveClient,
		}),
		youtube.NewProvider(youtube.Config{
			Endpoint:  cfg.YouTubeEndpoint,
			APIKey:    cfg.YouTubeAPIKey,
			UserAgent: cfg.UserAgent,
			Client:    youtubeClient,
		}),
		paidProvider,
	}, cfg.RequestTimeout, serviceOpts...)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithDefaultCountry(cfg.Country),
	}
	if !cfg.TranslateDisabled {
		serverOpts = append(serverOpts, apihttp.WithTranslation(buildTranslationService(cfg, logger)))
	}

	handler := apihttp.NewServer(searchService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	searchService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("movie finder search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("movie finder search service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []search.ServiceOption {
	var opts []search.ServiceOption

	if cfg.CacheDisabled {
		opts = append(opts, search.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, search.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, search.WithRedisCache(search.NewRedisCacheBackend(redisClient)))
	}

	return opts
}

func buildTMDBClient(cfg app.Config, logger *slog.Logger) *tmdb.Client {
	apiKey := strings.TrimSpace(cfg.TMDBAPIKey)
	if apiKey == "" {
		logger.Info("tmdb api key not configured, poster enrichment disabled")
		return nil
	}

	// Reuse Redis for TMDB lookups when available.
	var redisClient *redis.Client
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			redisClient = redis.NewClient(opts)
		}
	}

	client := tmdb.NewClient(tmdb.Config{
		APIKey:   apiKey,
		BaseURL:  cfg.TMDBBaseURL,
		Client:   &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Redis:    redisClient,
		CacheTTL: cfg.TMDBCacheTTL,
	})
	logger.Info("tmdb client initialized", slog.Bool("enabled", client.Enabled()))
	return client
}

func buildTranslationService(cfg app.Config, logger *slog.Logger) *i18n.Service {
	translateClient := &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	myMemory := i18n.NewMyMemoryClient(i18n.MyMemoryConfig{
		UserAgent: cfg.UserAgent,
		Client:    translateClient,
	})
	return i18n.NewService(
		i18n.WithLocalDetector(i18n.NewLinguaDetector()),
		i18n.WithRemoteDetector(myMemory),
		i18n.WithPrimaryBackend(i18n.NewGoogleClient(i18n.GoogleConfig{
			UserAgent: cfg.UserAgent,
			Client:    translateClient,
		})),
		i18n.WithSecondaryBackend(myMemory),
		i18n.WithLogger(logger),
	)
}
