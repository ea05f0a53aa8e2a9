package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupDisabledWithoutKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if c.Enabled() {
		t.Fatal("client without an API key must be disabled")
	}

	movie, err := c.Lookup(context.Background(), "Nosferatu", 1922)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if movie != (Movie{}) {
		t.Fatalf("expected zero movie, got %+v", movie)
	}
}

func TestLookupPicksFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "Nosferatu" {
			t.Errorf("query = %q, want Nosferatu", got)
		}
		if got := r.URL.Query().Get("year"); got != "1922" {
			t.Errorf("year = %q, want 1922", got)
		}
		if got := r.URL.Query().Get("language"); got != "fr-FR" {
			t.Errorf("language = %q, want fr-FR", got)
		}
		_, _ = w.Write([]byte(`{"results": [
			{"id": 653, "title": "Nosferatu le vampire", "poster_path": "/abc.jpg", "release_date": "1922-03-04"},
			{"id": 999, "title": "Nosferatu remake", "poster_path": "/zzz.jpg", "release_date": "1979-01-17"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()})
	movie, err := c.Lookup(context.Background(), "Nosferatu", 1922)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if movie.ID != 653 {
		t.Fatalf("movie ID = %d, want 653", movie.ID)
	}
	if movie.PosterURL != "https://image.tmdb.org/t/p/w342/abc.jpg" {
		t.Fatalf("unexpected poster URL %q", movie.PosterURL)
	}
	if movie.Year != 1922 {
		t.Fatalf("year = %d, want 1922", movie.Year)
	}
}

func TestLookupNoMatchIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()})
	movie, err := c.Lookup(context.Background(), "does not exist", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if movie != (Movie{}) {
		t.Fatalf("expected zero movie, got %+v", movie)
	}
}

func TestRuntimeFetchesDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/653" {
			t.Errorf("path = %q, want /movie/653", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"runtime": 94}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()})
	minutes, err := c.Runtime(context.Background(), 653)
	if err != nil {
		t.Fatalf("runtime failed: %v", err)
	}
	if minutes != 94 {
		t.Fatalf("runtime = %d, want 94", minutes)
	}
}

func TestRuntimeSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()})
	if _, err := c.Runtime(context.Background(), 1); err == nil {
		t.Fatal("expected an error for HTTP 429")
	}
}
