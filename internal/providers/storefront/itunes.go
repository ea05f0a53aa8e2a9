// Package storefront resolves where a title can be bought or rented when
// JustWatch comes back empty. iTunes has a real search API; the other stores
// only get search-page links.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviefinder/searchservice/internal/domain"
)

const (
	itunesEndpoint   = "https://itunes.apple.com/search"
	defaultUserAgent = "movie-finder-search/1.0"
	itunesMaxResults = 5
)

type ITunesConfig struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type ITunesClient struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

func NewITunesClient(cfg ITunesConfig) *ITunesClient {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = itunesEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &ITunesClient{client: client, endpoint: endpoint, userAgent: userAgent}
}

type itunesTrack struct {
	TrackName       string  `json:"trackName"`
	TrackViewURL    string  `json:"trackViewUrl"`
	LongDescription string  `json:"longDescription"`
	ArtworkURL100   string  `json:"artworkUrl100"`
	ReleaseDate     string  `json:"releaseDate"`
	TrackPrice      float64 `json:"trackPrice"`
	Currency        string  `json:"currency"`
}

type itunesResponse struct {
	Results []itunesTrack `json:"results"`
}

// Search returns offers from the iTunes movie catalog for a country.
func (c *ITunesClient) Search(ctx context.Context, query, country string) ([]domain.Offer, error) {
	params := url.Values{
		"term":    {strings.TrimSpace(query)},
		"media":   {"movie"},
		"entity":  {"movie"},
		"country": {strings.ToUpper(strings.TrimSpace(country))},
		"limit":   {fmt.Sprint(itunesMaxResults)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("itunes HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, err
	}

	var parsed itunesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("itunes payload: %w", err)
	}

	offers := make([]domain.Offer, 0, len(parsed.Results))
	for _, track := range parsed.Results {
		if track.TrackViewURL == "" {
			continue
		}
		title := strings.TrimSpace(track.TrackName)
		if title == "" {
			title = strings.TrimSpace(query)
		}
		offer := domain.Offer{
			Title:       title,
			Year:        releaseYear(track.ReleaseDate),
			Description: track.LongDescription,
			PosterURL:   track.ArtworkURL100,
			StreamURL:   track.TrackViewURL,
			Source:      "Apple TV / iTunes",
			Tier:        domain.TierConfirmed,
		}
		if track.TrackPrice > 0 {
			offer.Price = fmt.Sprintf("%.2f %s", track.TrackPrice, track.Currency)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}
