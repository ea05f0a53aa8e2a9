package domain

import "strings"

// monetizationPriority is the total order used when reconciling multiple paid
// offers for the same title across storefronts: lower index wins.
var monetizationPriority = []string{"buy", "rent", "flatrate", "ads", "free"}

const monetizationUnranked = 999

// MonetizationRank returns the priority index of a monetization type.
// Unknown types rank last.
func MonetizationRank(monetization string) int {
	value := strings.ToLower(strings.TrimSpace(monetization))
	for i, known := range monetizationPriority {
		if known == value {
			return i
		}
	}
	return monetizationUnranked
}

var monetizationLabels = map[string]string{
	"buy":      "achat",
	"rent":     "location",
	"flatrate": "abonnement",
	"ads":      "avec pub",
	"free":     "gratuit",
}

// MonetizationLabel maps an upstream monetization type to its French display
// label; unknown types pass through unchanged.
func MonetizationLabel(monetization string) string {
	value := strings.ToLower(strings.TrimSpace(monetization))
	if label, ok := monetizationLabels[value]; ok {
		return label
	}
	return value
}
