package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMyMemoryTranslateChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("langpair"); got != "auto|fr" {
			t.Fatalf("unexpected langpair: %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "Hello world" {
			t.Fatalf("unexpected query: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"Bonjour le monde","detectedLanguage":"en"}}`))
	}))
	defer server.Close()

	client := NewMyMemoryClient(MyMemoryConfig{Endpoint: server.URL, Client: server.Client()})
	translated, err := client.Translate(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if translated != "Bonjour le monde" {
		t.Fatalf("unexpected translation: %q", translated)
	}
}

func TestMyMemoryTranslateUnescapesEntities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"l&#39;hiver &amp; l&#39;été"}}`))
	}))
	defer server.Close()

	client := NewMyMemoryClient(MyMemoryConfig{Endpoint: server.URL, Client: server.Client()})
	translated, err := client.Translate(context.Background(), "winter & summer")
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if translated != "l'hiver & l'été" {
		t.Fatalf("unexpected translation: %q", translated)
	}
}

func TestMyMemoryDetectReadsDetectedLanguageOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"ignoré","detectedLanguage":"ES"}}`))
	}))
	defer server.Close()

	client := NewMyMemoryClient(MyMemoryConfig{Endpoint: server.URL, Client: server.Client()})
	code, err := client.DetectLanguage(context.Background(), "una frase española")
	if err != nil {
		t.Fatalf("detect error: %v", err)
	}
	if code != "es" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestMyMemoryHTTPErrorSurfacesToCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewMyMemoryClient(MyMemoryConfig{Endpoint: server.URL, Client: server.Client()})
	if _, err := client.Translate(context.Background(), "text"); err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}

func TestGoogleTranslateParsesGtxPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tl"); got != "fr" {
			t.Fatalf("unexpected target language: %q", got)
		}
		_, _ = w.Write([]byte(`[[["Bonjour ","Hello ",null,null],["le monde","world",null,null]],null,"en"]`))
	}))
	defer server.Close()

	client := NewGoogleClient(GoogleConfig{Endpoint: server.URL, Client: server.Client()})
	translated, err := client.Translate(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if translated != "Bonjour le monde" {
		t.Fatalf("unexpected translation: %q", translated)
	}
}

func TestParseGtxPayloadRejectsMalformedBody(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `[null]`, `[[["",""]]]`} {
		if _, err := parseGtxPayload([]byte(body)); err == nil {
			t.Fatalf("expected parse error for %q", body)
		}
	}
}

func TestTruncateRunesKeepsWholeRunes(t *testing.T) {
	value := "éléphant"
	truncated := truncateRunes(value, 3)
	if truncated != "élé" {
		t.Fatalf("unexpected truncation: %q", truncated)
	}
	if truncateRunes("abc", 10) != "abc" {
		t.Fatal("short values must pass through")
	}
}
