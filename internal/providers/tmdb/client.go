// Package tmdb looks up poster art and runtimes for titles found elsewhere.
// Enrichment is strictly best-effort: a keyless client or a query with no
// match yields zero values without an error.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w342"
	defaultLanguage = "fr-FR"
	redisCacheKey   = "mfinder:tmdb:"
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

// Movie is the subset of a TMDB record enrichment needs.
type Movie struct {
	ID        int    `json:"id"`
	Title     string `json:"title,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`
	Year      int    `json:"year,omitempty"`
}

type movieSearchResult struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
}

func (r movieSearchResult) year() int {
	if len(r.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(r.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

type movieSearchResponse struct {
	Results []movieSearchResult `json:"results"`
}

type movieDetails struct {
	Runtime int `json:"runtime"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Lookup finds the best movie match for a title, optionally narrowed by year.
// No match is (zero Movie, nil).
func (c *Client) Lookup(ctx context.Context, title string, year int) (Movie, error) {
	if !c.Enabled() {
		return Movie{}, nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Movie{}, nil
	}

	cacheKey := fmt.Sprintf("lookup:%s:%d", strings.ToLower(title), year)
	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Bytes()
		if err == nil {
			var cached Movie
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"query":    {title},
		"language": {defaultLanguage},
	}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response movieSearchResponse
	if err := c.getJSON(ctx, "/search/movie?"+params.Encode(), &response); err != nil {
		return Movie{}, err
	}
	if len(response.Results) == 0 {
		return Movie{}, nil
	}

	best := response.Results[0]
	movie := Movie{
		ID:    best.ID,
		Title: best.Title,
		Year:  best.year(),
	}
	if best.PosterPath != "" {
		movie.PosterURL = posterBaseURL + best.PosterPath
	}

	if c.redis != nil {
		if data, err := json.Marshal(movie); err == nil {
			_ = c.redis.Set(ctx, redisCacheKey+cacheKey, data, c.cacheTTL).Err()
		}
	}
	return movie, nil
}

// Runtime fetches the runtime in minutes for a movie ID. Unknown runtimes
// come back as 0.
func (c *Client) Runtime(ctx context.Context, movieID int) (int, error) {
	if !c.Enabled() || movieID <= 0 {
		return 0, nil
	}

	cacheKey := "runtime:" + strconv.Itoa(movieID)
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Result(); err == nil {
			if minutes, convErr := strconv.Atoi(data); convErr == nil {
				return minutes, nil
			}
		}
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"language": {defaultLanguage},
	}
	var details movieDetails
	if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(movieID)+"?"+params.Encode(), &details); err != nil {
		return 0, err
	}

	if c.redis != nil {
		_ = c.redis.Set(ctx, redisCacheKey+cacheKey, strconv.Itoa(details.Runtime), c.cacheTTL).Err()
	}
	return details.Runtime, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
