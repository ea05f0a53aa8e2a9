package domain

// Provider keys are a fixed enumerated set; the order of DefaultProviderOrder
// is the default display priority.
const (
	ProviderArchive = "archive"
	ProviderYouTube = "youtube"
	ProviderPaid    = "paid"
)

func DefaultProviderOrder() []string {
	return []string{ProviderArchive, ProviderYouTube, ProviderPaid}
}

type ContentMode string

const (
	ContentModeMovies ContentMode = "movies"
	ContentModeOther  ContentMode = "other"
	ContentModeAll    ContentMode = "all"
)

func NormalizeContentMode(raw string) ContentMode {
	switch ContentMode(raw) {
	case ContentModeOther:
		return ContentModeOther
	case ContentModeAll:
		return ContentModeAll
	default:
		return ContentModeMovies
	}
}

// OfferTier distinguishes confirmed paid offers from weaker guarantee tiers.
type OfferTier string

const (
	TierConfirmed   OfferTier = "confirmed"
	TierPlaceholder OfferTier = "placeholder"
	TierFallback    OfferTier = "fallback"
)

// Offer is the normalized representation of one way to watch or obtain a
// title, whatever provider it came from. Title is never empty; adapters fall
// back to the query string when the upstream record lacks one. StreamURL is
// the offer's identity for deduplication; offers without one are never
// deduplicated against each other.
type Offer struct {
	Title           string            `json:"title"`
	Year            int               `json:"year,omitempty"`
	DurationMinutes int               `json:"durationMinutes,omitempty"`
	Description     string            `json:"description,omitempty"`
	PosterURL       string            `json:"posterUrl,omitempty"`
	StreamURL       string            `json:"streamUrl,omitempty"`
	DownloadURL     string            `json:"downloadUrl,omitempty"`
	Price           string            `json:"price,omitempty"`
	Source          string            `json:"source,omitempty"`
	Tier            OfferTier         `json:"tier,omitempty"`
	Language        string            `json:"language,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

type SearchRequest struct {
	Query                string
	Limit                int
	Mode                 ContentMode
	Country              string
	IncludeSubscriptions bool
	EnrichPosters        bool
	NoCache              bool
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type SearchResponse struct {
	Query     string             `json:"query"`
	Mode      ContentMode        `json:"mode"`
	Results   map[string][]Offer `json:"results"`
	Providers []ProviderStatus   `json:"providers"`
	ElapsedMS int64              `json:"elapsedMs"`
}

type ProviderDiagnostics struct {
	Name                string `json:"name"`
	Label               string `json:"label"`
	Kind                string `json:"kind"`
	Enabled             bool   `json:"enabled"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	BlockedUntilRFC3339 string `json:"blockedUntil,omitempty"`
	LastError           string `json:"lastError,omitempty"`
	LastLatencyMS       int64  `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool   `json:"lastTimeout,omitempty"`
	LastQuery           string `json:"lastQuery,omitempty"`
	TotalRequests       int64  `json:"totalRequests,omitempty"`
	TotalFailures       int64  `json:"totalFailures,omitempty"`
	TimeoutCount        int64  `json:"timeoutCount,omitempty"`
}
