// Package archive searches the archive.org advanced search API for free,
// legally hosted media.
package archive

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
	defaultEndpoint  = "https://archive.org/advancedsearch.php"
	defaultUserAgent = "movie-finder-search/1.0"

	detailsBaseURL = "https://archive.org/details/"
	posterBaseURL  = "https://archive.org/services/img/"
)

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
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
	return &Provider{client: client, endpoint: endpoint, userAgent: userAgent}
}

func (p *Provider) Name() string {
	return domain.ProviderArchive
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Archive.org",
		Kind:    "free",
		Enabled: true,
	}
}

// mediatypeClause maps the content mode to the archive.org query filter:
// movies-only applies a positive filter, everything-except-movies a negated
// one, and unfiltered no clause at all.
func mediatypeClause(mode domain.ContentMode) string {
	switch mode {
	case domain.ContentModeOther:
		return "AND -mediatype:(movies)"
	case domain.ContentModeAll:
		return ""
	default:
		return "AND mediatype:(movies)"
	}
}

type searchDoc struct {
	Identifier  string     `json:"identifier"`
	Title       flexString `json:"title"`
	Description flexString `json:"description"`
	Year        flexInt    `json:"year"`
	MediaType   string     `json:"mediatype"`
}

type searchResponse struct {
	Response struct {
		Docs []searchDoc `json:"docs"`
	} `json:"response"`
}

func (p *Provider) Search(ctx context.Context, request domain.SearchRequest) ([]domain.Offer, error) {
	query := strings.TrimSpace(request.Query)
	q := strings.TrimSpace(fmt.Sprintf("(%s) %s", query, mediatypeClause(request.Mode)))

	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := uri.Query()
	params.Set("q", q)
	for _, field := range []string{"identifier", "title", "description", "year", "downloads", "mediatype"} {
		params.Add("fl[]", field)
	}
	params.Set("rows", strconv.Itoa(resultCap(request.Limit)))
	params.Set("page", "1")
	params.Set("output", "json")
	params.Add("sort[]", "downloads desc")
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
		return nil, fmt.Errorf("archive HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("archive payload: %w", err)
	}

	offers := make([]domain.Offer, 0, len(parsed.Response.Docs))
	for _, doc := range parsed.Response.Docs {
		offer, ok := p.toOffer(doc)
		if !ok {
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func (p *Provider) toOffer(doc searchDoc) (domain.Offer, bool) {
	identifier := strings.TrimSpace(doc.Identifier)
	if identifier == "" {
		return domain.Offer{}, false
	}
	title := strings.TrimSpace(doc.Title.String())
	if title == "" {
		title = identifier
	}
	page := detailsBaseURL + identifier
	return domain.Offer{
		Title:       title,
		Year:        int(doc.Year),
		Description: doc.Description.String(),
		PosterURL:   posterBaseURL + identifier,
		StreamURL:   page,
		DownloadURL: page,
		Source:      fmt.Sprintf("Archive.org (%s)", doc.MediaType),
		Extra:       map[string]string{"identifier": identifier},
	}, true
}

func resultCap(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// flexString tolerates the archive.org habit of returning either a string or
// a list of strings for the same field.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = flexString(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = flexString(strings.Join(list, " "))
		return nil
	}
	// Unknown shape: leave empty rather than failing the whole document.
	*f = ""
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// flexInt accepts a number, a numeric string, or a one-element list of either.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var number int
	if err := json.Unmarshal(data, &number); err == nil {
		*f = flexInt(number)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			*f = flexInt(parsed)
		}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return f.UnmarshalJSON(list[0])
	}
	*f = 0
	return nil
}
