package storefront

import (
	"net/url"
	"strings"

	"moviefinder/searchservice/internal/domain"
)

// SearchPageLinks builds placeholder offers pointing at the search pages of
// storefronts without a usable public API. They never carry a price and are
// marked as placeholders so callers can rank them below confirmed offers.
func SearchPageLinks(query, country string) []domain.Offer {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	escaped := url.QueryEscape(query)
	cc := strings.ToLower(strings.TrimSpace(country))
	if len(cc) != 2 {
		cc = "fr"
	}

	return []domain.Offer{
		{
			Title:       query,
			Description: "Recherche sur Prime Video",
			StreamURL:   "https://www.primevideo.com/search?phrase=" + escaped,
			Source:      "Prime Video",
			Tier:        domain.TierPlaceholder,
		},
		{
			Title:       query,
			Description: "Recherche sur Google Play Films",
			StreamURL:   "https://play.google.com/store/search?c=movies&q=" + escaped + "&gl=" + cc,
			Source:      "Google Play Films",
			Tier:        domain.TierPlaceholder,
		},
		{
			Title:       query,
			Description: "Recherche sur Rakuten TV",
			StreamURL:   "https://www.rakuten.tv/" + cc + "/search?query=" + escaped,
			Source:      "Rakuten TV",
			Tier:        domain.TierPlaceholder,
		},
	}
}
