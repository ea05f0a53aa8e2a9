package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleClient translates text through the unauthenticated gtx endpoint of
// Google Translate. Best-effort only: the endpoint is throttled aggressively
// and may echo its input back, which callers must detect via comparison keys.
type GoogleClient struct {
	endpoint  string
	userAgent string
	http      *http.Client
}

type GoogleConfig struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultGoogleEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleClient{endpoint: endpoint, userAgent: userAgent, http: client}
}

func (c *GoogleClient) Name() string {
	return "google"
}

// Translate translates one chunk to French.
func (c *GoogleClient) Translate(ctx context.Context, chunk string) (string, error) {
	uri, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	query := uri.Query()
	query.Set("client", "gtx")
	query.Set("sl", "auto")
	query.Set("tl", "fr")
	query.Set("dt", "t")
	query.Set("q", chunk)
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", err
	}

	translated, err := parseGtxPayload(body)
	if err != nil {
		return "", err
	}
	return translated, nil
}

// parseGtxPayload extracts the translated sentences from the gtx response,
// a nested JSON array of the form [[["bonjour","hello",...],...],...].
func parseGtxPayload(body []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate payload")
	}
	sentences, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected translate payload shape")
	}

	var builder strings.Builder
	for _, raw := range sentences {
		sentence, ok := raw.([]any)
		if !ok || len(sentence) == 0 {
			continue
		}
		if fragment, ok := sentence[0].(string); ok {
			builder.WriteString(fragment)
		}
	}

	translated := strings.TrimSpace(builder.String())
	if translated == "" {
		return "", fmt.Errorf("translate payload had no text")
	}
	return translated, nil
}
