package justwatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchTitlesParsesCandidates(t *testing.T) {
	var gotVars map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotVars = req.Variables
		_, _ = w.Write([]byte(`{"data": {"popularTitles": {"edges": [
			{"node": {
				"id": "tm123",
				"content": {"title": "Nosferatu", "originalReleaseYear": 1922, "fullPath": "/fr/film/nosferatu"},
				"offers": [
					{"monetizationType": "BUY", "standardWebURL": "https://tv.apple.com/fr/movie/nosferatu", "retailPrice": "3,99 €", "package": {"packageId": 2, "clearName": "Apple TV"}}
				]
			}},
			{"node": {
				"id": "tm456",
				"content": {"title": "Nosferatu le vampire", "originalReleaseYear": 1979, "fullPath": "/fr/film/nosferatu-le-vampire"}
			}}
		]}}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Client: srv.Client()})
	titles, err := c.SearchTitles(context.Background(), "nosferatu", "fr", 8)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if gotVars["country"] != "FR" {
		t.Fatalf("country variable = %v, want FR", gotVars["country"])
	}
	if gotVars["first"] != float64(8) {
		t.Fatalf("first variable = %v, want 8", gotVars["first"])
	}

	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}
	first := titles[0]
	if first.ID != "tm123" || first.Year != 1922 {
		t.Fatalf("unexpected first title %+v", first)
	}
	if first.PageURL() != "https://www.justwatch.com/fr/film/nosferatu" {
		t.Fatalf("unexpected page URL %q", first.PageURL())
	}
	if len(first.Offers) != 1 {
		t.Fatalf("expected embedded offer, got %d", len(first.Offers))
	}
	offer := first.Offers[0]
	if offer.MonetizationType != "buy" {
		t.Fatalf("monetization = %q, want buy", offer.MonetizationType)
	}
	if offer.ProviderID != 2 || offer.ProviderName != "Apple TV" {
		t.Fatalf("unexpected package %+v", offer)
	}

	// The second node carried no offers field; that must stay nil so callers
	// know to fetch details separately.
	if titles[1].Offers != nil {
		t.Fatalf("expected nil offers for second title, got %v", titles[1].Offers)
	}
}

func TestTitleOffersParsesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"node": {"offers": [
			{"monetizationType": "RENT", "standardWebURL": "https://example.test/rent", "package": {"packageId": 3, "clearName": "Google Play Movies"}},
			{"monetizationType": "FLATRATE", "standardWebURL": "https://example.test/sub", "package": {"packageId": 8, "clearName": "Netflix"}}
		]}}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Client: srv.Client()})
	offers, err := c.TitleOffers(context.Background(), "tm123", "FR")
	if err != nil {
		t.Fatalf("offers failed: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	if offers[0].MonetizationType != "rent" || offers[1].MonetizationType != "flatrate" {
		t.Fatalf("unexpected monetization types %+v", offers)
	}
}

func TestSearchTitlesSurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "query too complex"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Client: srv.Client()})
	if _, err := c.SearchTitles(context.Background(), "q", "FR", 8); err == nil {
		t.Fatal("expected a GraphQL error to surface")
	}
}

func TestSearchTitlesSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, Client: srv.Client()})
	if _, err := c.SearchTitles(context.Background(), "q", "FR", 8); err == nil {
		t.Fatal("expected an error for HTTP 502")
	}
}

func TestNormalizeCountry(t *testing.T) {
	cases := map[string]string{"fr": "FR", "US": "US", "": "FR", "FRA": "FR"}
	for in, want := range cases {
		if got := normalizeCountry(in); got != want {
			t.Fatalf("normalizeCountry(%q) = %q, want %q", in, got, want)
		}
	}
}
