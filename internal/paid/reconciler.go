// Package paid reconciles storefront availability into offers. JustWatch is
// the source of truth; direct storefront lookups and generic search links
// only fill in when it yields nothing usable.
package paid

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"moviefinder/searchservice/internal/domain"
	"moviefinder/searchservice/internal/providers/justwatch"
	"moviefinder/searchservice/internal/providers/storefront"
)

const (
	// How many JustWatch candidates are worth reconciling per query.
	maxCandidates = 8

	defaultMaxResults = 10
)

// Catalog is the JustWatch surface the reconciler needs.
type Catalog interface {
	SearchTitles(ctx context.Context, query, country string, limit int) ([]justwatch.Title, error)
	TitleOffers(ctx context.Context, id, country string) ([]justwatch.Offer, error)
}

// StoreSearcher is a storefront with a structured search API.
type StoreSearcher interface {
	Search(ctx context.Context, query, country string) ([]domain.Offer, error)
}

type Reconciler struct {
	catalog Catalog
	itunes  StoreSearcher
	logger  *slog.Logger
}

type Option func(*Reconciler)

func WithITunes(client StoreSearcher) Option {
	return func(r *Reconciler) { r.itunes = client }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func NewReconciler(catalog Catalog, opts ...Option) *Reconciler {
	r := &Reconciler{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Name() string {
	return domain.ProviderPaid
}

func (r *Reconciler) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    r.Name(),
		Label:   "Options payantes",
		Kind:    "paid",
		Enabled: r.catalog != nil,
	}
}

// Search resolves paid offers for a query. A failed JustWatch search makes
// the whole provider unavailable for this call; a failed per-title detail
// fetch only drops that title.
func (r *Reconciler) Search(ctx context.Context, request domain.SearchRequest) ([]domain.Offer, error) {
	if r.catalog == nil {
		return nil, nil
	}
	query := strings.TrimSpace(request.Query)
	if query == "" {
		return nil, nil
	}

	titles, err := r.catalog.SearchTitles(ctx, query, request.Country, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("justwatch search: %w", err)
	}
	if len(titles) > maxCandidates {
		titles = titles[:maxCandidates]
	}

	usedURLs := make(map[string]bool)
	var confirmed []domain.Offer
	for _, title := range titles {
		name := strings.TrimSpace(title.Title)
		if name == "" {
			name = query
		}
		offers := title.Offers
		if offers == nil {
			offers, err = r.catalog.TitleOffers(ctx, title.ID, request.Country)
			if err != nil {
				r.logger.Warn("paid: title detail fetch failed",
					slog.String("title", title.Title),
					slog.String("error", err.Error()))
				continue
			}
		}
		for _, best := range bestPerStorefront(offers, request.IncludeSubscriptions) {
			offerURL := best.StandardWebURL
			if offerURL == "" {
				offerURL = title.PageURL()
			}
			if offerURL == "" || usedURLs[offerURL] {
				continue
			}
			usedURLs[offerURL] = true

			label := domain.MonetizationLabel(best.MonetizationType)
			confirmed = append(confirmed, domain.Offer{
				Title:       name,
				Year:        title.Year,
				Description: fmt.Sprintf("Disponible sur %s (%s)", best.ProviderName, label),
				StreamURL:   offerURL,
				Price:       best.Price,
				Source:      fmt.Sprintf("%s (%s)", best.ProviderName, label),
				Tier:        domain.TierConfirmed,
				Extra: map[string]string{
					"monetization": label,
					"providerId":   strconv.Itoa(best.ProviderID),
				},
			})
		}
	}

	results := confirmed
	if len(results) == 0 {
		results = r.storefrontFallback(ctx, query, request.Country, usedURLs)
		results = mergeByURL(results, storefront.GenericLinks(query), usedURLs)
	}

	limit := request.Limit
	if limit <= 0 {
		limit = defaultMaxResults
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// storefrontFallback asks stores directly when JustWatch knew nothing.
// Stores without an API contribute a single search-page placeholder each.
func (r *Reconciler) storefrontFallback(ctx context.Context, query, country string, usedURLs map[string]bool) []domain.Offer {
	var merged []domain.Offer
	if r.itunes != nil {
		offers, err := r.itunes.Search(ctx, query, country)
		if err != nil {
			r.logger.Warn("paid: itunes fallback failed", slog.String("error", err.Error()))
		} else {
			merged = mergeByURL(merged, offers, usedURLs)
		}
	}
	return mergeByURL(merged, storefront.SearchPageLinks(query, country), usedURLs)
}

// bestPerStorefront keeps the single most interesting offer a storefront
// makes, ranked by monetization. The first offer seen wins rank ties.
func bestPerStorefront(offers []justwatch.Offer, includeSubscriptions bool) []justwatch.Offer {
	var order []int
	best := make(map[int]justwatch.Offer)
	for _, offer := range offers {
		if !wantedMonetization(offer.MonetizationType, includeSubscriptions) {
			continue
		}
		current, seen := best[offer.ProviderID]
		if !seen {
			order = append(order, offer.ProviderID)
			best[offer.ProviderID] = offer
			continue
		}
		if domain.MonetizationRank(offer.MonetizationType) < domain.MonetizationRank(current.MonetizationType) {
			best[offer.ProviderID] = offer
		}
	}

	result := make([]justwatch.Offer, 0, len(order))
	for _, id := range order {
		result = append(result, best[id])
	}
	return result
}

func wantedMonetization(monetization string, includeSubscriptions bool) bool {
	switch monetization {
	case "buy", "rent":
		return true
	case "flatrate":
		return includeSubscriptions
	default:
		return false
	}
}

func mergeByURL(dst, src []domain.Offer, usedURLs map[string]bool) []domain.Offer {
	for _, offer := range src {
		if offer.StreamURL == "" || usedURLs[offer.StreamURL] {
			continue
		}
		usedURLs[offer.StreamURL] = true
		dst = append(dst, offer)
	}
	return dst
}
