package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"
	defaultUserAgent        = "movie-finder-search/1.0"

	// The API accepts at most a few KB per request; detection samples are
	// capped well below that.
	maxDetectSampleLen = 5000
)

// MyMemoryClient talks to the MyMemory translation API. It doubles as the
// remote language detection side-channel: a translation request with
// langpair=auto|fr reports the detected source language, and detection
// callers read only that field.
type MyMemoryClient struct {
	endpoint  string
	userAgent string
	http      *http.Client
}

type MyMemoryConfig struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewMyMemoryClient(cfg MyMemoryConfig) *MyMemoryClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultMyMemoryEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return &MyMemoryClient{endpoint: endpoint, userAgent: userAgent, http: client}
}

func (c *MyMemoryClient) Name() string {
	return "mymemory"
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText   string `json:"translatedText"`
		DetectedLanguage string `json:"detectedLanguage"`
	} `json:"responseData"`
}

func (c *MyMemoryClient) call(ctx context.Context, text string) (myMemoryResponse, error) {
	uri, err := url.Parse(c.endpoint)
	if err != nil {
		return myMemoryResponse{}, fmt.Errorf("invalid endpoint: %w", err)
	}
	query := uri.Query()
	query.Set("q", text)
	query.Set("langpair", "auto|fr")
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return myMemoryResponse{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return myMemoryResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return myMemoryResponse{}, fmt.Errorf("mymemory HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return myMemoryResponse{}, err
	}

	var parsed myMemoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return myMemoryResponse{}, err
	}
	return parsed, nil
}

// Translate translates one chunk to French.
func (c *MyMemoryClient) Translate(ctx context.Context, chunk string) (string, error) {
	parsed, err := c.call(ctx, chunk)
	if err != nil {
		return "", err
	}
	translated := strings.TrimSpace(parsed.ResponseData.TranslatedText)
	if translated == "" {
		return "", fmt.Errorf("mymemory returned empty translation")
	}
	return html.UnescapeString(translated), nil
}

// DetectLanguage reports the source language the API detected for a sample,
// ignoring the translated text entirely.
func (c *MyMemoryClient) DetectLanguage(ctx context.Context, sample string) (string, error) {
	parsed, err := c.call(ctx, truncateRunes(sample, maxDetectSampleLen))
	if err != nil {
		return "", err
	}
	code := strings.ToLower(strings.TrimSpace(parsed.ResponseData.DetectedLanguage))
	if code == "" {
		return "", fmt.Errorf("mymemory reported no detected language")
	}
	return code, nil
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
