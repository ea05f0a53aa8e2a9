// Package justwatch queries the JustWatch GraphQL API for storefront
// availability of a title: who sells or rents it, under which monetization
// model, and at which web URL.
package justwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint  = "https://apis.justwatch.com/graphql"
	defaultUserAgent = "movie-finder-search/1.0"
	titleBaseURL     = "https://www.justwatch.com"

	defaultCountry = "FR"
	languageTag    = "fr"
)

const searchQuery = `query SearchTitles($query: String!, $country: Country!, $language: Language!, $first: Int!) {
  popularTitles(country: $country, first: $first, filter: {searchQuery: $query, objectTypes: [MOVIE]}) {
    edges {
      node {
        id
        content(country: $country, language: $language) {
          title
          originalReleaseYear
          fullPath
        }
        offers(country: $country, platform: WEB) {
          monetizationType
          standardWebURL
          retailPrice(language: $language)
          package {
            packageId
            clearName
          }
        }
      }
    }
  }
}`

const offersQuery = `query TitleOffers($id: ID!, $country: Country!, $language: Language!) {
  node(id: $id) {
    ... on MovieOrShow {
      offers(country: $country, platform: WEB) {
        monetizationType
        standardWebURL
        retailPrice(language: $language)
        package {
          packageId
          clearName
        }
      }
    }
  }
}`

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{client: client, endpoint: endpoint, userAgent: userAgent}
}

// Offer is one storefront listing for a title.
type Offer struct {
	MonetizationType string
	ProviderID       int
	ProviderName     string
	StandardWebURL   string
	Price            string
}

// Title is one search candidate. Offers is nil when the search response did
// not embed any; callers fall back to TitleOffers.
type Title struct {
	ID       string
	Title    string
	Year     int
	FullPath string
	Offers   []Offer
}

// PageURL is the title's own JustWatch page, used when an offer lacks a
// direct storefront URL.
func (t Title) PageURL() string {
	if t.FullPath == "" {
		return ""
	}
	return titleBaseURL + t.FullPath
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlOffer struct {
	MonetizationType string `json:"monetizationType"`
	StandardWebURL   string `json:"standardWebURL"`
	RetailPrice      string `json:"retailPrice"`
	Package          struct {
		PackageID int    `json:"packageId"`
		ClearName string `json:"clearName"`
	} `json:"package"`
}

type gqlNode struct {
	ID      string `json:"id"`
	Content struct {
		Title               string `json:"title"`
		OriginalReleaseYear int    `json:"originalReleaseYear"`
		FullPath            string `json:"fullPath"`
	} `json:"content"`
	Offers []gqlOffer `json:"offers"`
}

type searchPayload struct {
	Data struct {
		PopularTitles struct {
			Edges []struct {
				Node gqlNode `json:"node"`
			} `json:"edges"`
		} `json:"popularTitles"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type offersPayload struct {
	Data struct {
		Node struct {
			Offers []gqlOffer `json:"offers"`
		} `json:"node"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SearchTitles returns up to limit movie candidates for a query in a country.
func (c *Client) SearchTitles(ctx context.Context, query, country string, limit int) ([]Title, error) {
	if limit <= 0 {
		limit = 8
	}
	variables := map[string]any{
		"query":    strings.TrimSpace(query),
		"country":  normalizeCountry(country),
		"language": languageTag,
		"first":    limit,
	}

	var payload searchPayload
	if err := c.post(ctx, searchQuery, variables, &payload); err != nil {
		return nil, err
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("justwatch: %s", payload.Errors[0].Message)
	}

	titles := make([]Title, 0, len(payload.Data.PopularTitles.Edges))
	for _, edge := range payload.Data.PopularTitles.Edges {
		node := edge.Node
		if node.ID == "" {
			continue
		}
		titles = append(titles, Title{
			ID:       node.ID,
			Title:    node.Content.Title,
			Year:     node.Content.OriginalReleaseYear,
			FullPath: node.Content.FullPath,
			Offers:   convertOffers(node.Offers),
		})
	}
	return titles, nil
}

// TitleOffers fetches the offer list for a single title.
func (c *Client) TitleOffers(ctx context.Context, id, country string) ([]Offer, error) {
	variables := map[string]any{
		"id":       id,
		"country":  normalizeCountry(country),
		"language": languageTag,
	}

	var payload offersPayload
	if err := c.post(ctx, offersQuery, variables, &payload); err != nil {
		return nil, err
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("justwatch: %s", payload.Errors[0].Message)
	}
	return convertOffers(payload.Data.Node.Offers), nil
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("justwatch HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func convertOffers(raw []gqlOffer) []Offer {
	if raw == nil {
		return nil
	}
	offers := make([]Offer, 0, len(raw))
	for _, o := range raw {
		offers = append(offers, Offer{
			MonetizationType: strings.ToLower(strings.TrimSpace(o.MonetizationType)),
			ProviderID:       o.Package.PackageID,
			ProviderName:     o.Package.ClearName,
			StandardWebURL:   o.StandardWebURL,
			Price:            o.RetailPrice,
		})
	}
	return offers
}

func normalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return defaultCountry
	}
	return country
}
