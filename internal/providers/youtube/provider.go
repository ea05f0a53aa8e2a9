// Package youtube searches the YouTube Data API for free full-length movie
// uploads. Without an API key the provider is unavailable and contributes
// nothing, which is not an error.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"moviefinder/searchservice/internal/domain"
)

const (
	defaultEndpoint  = "https://www.googleapis.com/youtube/v3/search"
	defaultUserAgent = "movie-finder-search/1.0"

	watchBaseURL = "https://www.youtube.com/watch?v="

	// The API rejects maxResults above 50.
	apiMaxResults = 50
)

type Config struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	userAgent string
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		endpoint:  endpoint,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return domain.ProviderYouTube
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "YouTube (gratuit)",
		Kind:    "free",
		Enabled: p.apiKey != "",
	}
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
		Thumbnails   struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

func (p *Provider) Search(ctx context.Context, request domain.SearchRequest) ([]domain.Offer, error) {
	if p.apiKey == "" {
		return nil, nil
	}

	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := uri.Query()
	params.Set("part", "snippet")
	params.Set("q", strings.TrimSpace(request.Query)+" full movie")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(resultCap(request.Limit)))
	params.Set("videoDuration", "long")
	params.Set("safeSearch", "moderate")
	params.Set("key", p.apiKey)
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("youtube HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("youtube payload: %w", err)
	}

	offers := make([]domain.Offer, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		videoID := strings.TrimSpace(item.ID.VideoID)
		if videoID == "" {
			continue
		}
		title := strings.TrimSpace(item.Snippet.Title)
		if title == "" {
			title = strings.TrimSpace(request.Query)
		}
		offers = append(offers, domain.Offer{
			Title:       title,
			Description: item.Snippet.Description,
			PosterURL:   item.Snippet.Thumbnails.High.URL,
			StreamURL:   watchBaseURL + videoID,
			Source:      "YouTube (gratuit)",
			Extra:       map[string]string{"channel": item.Snippet.ChannelTitle},
		})
	}
	return offers, nil
}

func resultCap(limit int) int {
	if limit <= 0 || limit > apiMaxResults {
		return apiMaxResults
	}
	return limit
}
