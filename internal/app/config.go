package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr          string
	RequestTimeout    time.Duration
	LogLevel          string
	LogFormat         string
	UserAgent         string
	Country           string
	ArchiveEndpoint   string
	YouTubeAPIKey     string
	YouTubeEndpoint   string
	JustWatchEndpoint string
	ITunesEndpoint    string
	TMDBAPIKey        string
	TMDBBaseURL       string
	TMDBCacheTTL      time.Duration
	RedisURL          string
	CacheTTL          time.Duration
	CacheDisabled     bool
	TranslateDisabled bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:    time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:         getEnv("SEARCH_USER_AGENT", "movie-finder-search/1.0"),
		Country:           strings.ToUpper(getEnv("SEARCH_COUNTRY", "FR")),
		ArchiveEndpoint:   getEnv("SEARCH_PROVIDER_ARCHIVE_ENDPOINT", "https://archive.org/advancedsearch.php"),
		YouTubeAPIKey:     strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY")),
		YouTubeEndpoint:   getEnv("SEARCH_PROVIDER_YOUTUBE_ENDPOINT", "https://www.googleapis.com/youtube/v3/search"),
		JustWatchEndpoint: getEnv("SEARCH_PROVIDER_JUSTWATCH_ENDPOINT", "https://apis.justwatch.com/graphql"),
		ITunesEndpoint:    getEnv("SEARCH_PROVIDER_ITUNES_ENDPOINT", "https://itunes.apple.com/search"),
		TMDBAPIKey:        strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:       getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBCacheTTL:      time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		RedisURL:          getEnv("REDIS_URL", ""),
		CacheTTL:          time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 10)) * time.Minute,
		CacheDisabled:     getEnvBool("SEARCH_CACHE_DISABLED", false),
		TranslateDisabled: getEnvBool("TRANSLATE_DISABLED", false),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
