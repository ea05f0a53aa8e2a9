package storefront

import (
	"net/url"
	"strings"

	"moviefinder/searchservice/internal/domain"
)

// genericStores are the last-resort destinations shown when neither JustWatch
// nor a direct storefront lookup produced anything concrete.
var genericStores = []struct {
	name string
	url  func(escaped string) string
}{
	{"JustWatch", func(q string) string { return "https://www.justwatch.com/fr/recherche?q=" + q }},
	{"YouTube (achat/location)", func(q string) string { return "https://www.youtube.com/results?search_query=" + q + "+film" }},
	{"Apple TV", func(q string) string { return "https://tv.apple.com/fr/search?term=" + q }},
	{"Prime Video", func(q string) string { return "https://www.primevideo.com/search?phrase=" + q }},
	{"Rakuten TV", func(q string) string { return "https://www.rakuten.tv/fr/search?query=" + q }},
	{"CANAL VOD", func(q string) string { return "https://vod.canalplus.com/recherche?search=" + q }},
}

// GenericLinks builds the fixed set of fallback search links for a query.
func GenericLinks(query string) []domain.Offer {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	escaped := url.QueryEscape(query)

	offers := make([]domain.Offer, 0, len(genericStores))
	for _, store := range genericStores {
		offers = append(offers, domain.Offer{
			Title:       query,
			Description: "Rechercher \"" + query + "\" sur " + store.name,
			StreamURL:   store.url(escaped),
			Source:      "Options payantes (fallback)",
			Tier:        domain.TierFallback,
			Extra:       map[string]string{"store": store.name},
		})
	}
	return offers
}
