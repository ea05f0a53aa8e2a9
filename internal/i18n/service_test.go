package i18n

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeLocalDetector struct {
	code string
	ok   bool
}

func (f fakeLocalDetector) DetectLanguage(string) (string, bool) {
	return f.code, f.ok
}

type fakeRemoteDetector struct {
	code  string
	err   error
	calls int
}

func (f *fakeRemoteDetector) DetectLanguage(context.Context, string) (string, error) {
	f.calls++
	return f.code, f.err
}

type fakeBackend struct {
	name    string
	mapping func(chunk string) (string, error)
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Translate(_ context.Context, chunk string) (string, error) {
	f.calls++
	return f.mapping(chunk)
}

func echoBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, mapping: func(chunk string) (string, error) {
		return chunk, nil
	}}
}

func failingBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, mapping: func(string) (string, error) {
		return "", errors.New("backend down")
	}}
}

func prefixBackend(name, prefix string) *fakeBackend {
	return &fakeBackend{name: name, mapping: func(chunk string) (string, error) {
		return prefix + chunk, nil
	}}
}

func TestDetectEmptyTextReturnsUnknown(t *testing.T) {
	svc := NewService(WithLocalDetector(fakeLocalDetector{code: "en", ok: true}))
	if code := svc.Detect(context.Background(), "   \n\t "); code != "" {
		t.Fatalf("expected unknown for whitespace-only input, got %q", code)
	}
}

func TestDetectPrefersLocalDetector(t *testing.T) {
	remote := &fakeRemoteDetector{code: "es"}
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "en", ok: true}),
		WithRemoteDetector(remote),
	)
	if code := svc.Detect(context.Background(), "some english text"); code != "en" {
		t.Fatalf("unexpected code: %q", code)
	}
	if remote.calls != 0 {
		t.Fatal("remote detector must not be called when local succeeds")
	}
}

func TestDetectFallsBackToRemote(t *testing.T) {
	remote := &fakeRemoteDetector{code: "DE-de"}
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{ok: false}),
		WithRemoteDetector(remote),
	)
	if code := svc.Detect(context.Background(), "irgendein deutscher Text"); code != "de" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestDetectMemoizesByExactInput(t *testing.T) {
	remote := &fakeRemoteDetector{code: "it"}
	svc := NewService(WithRemoteDetector(remote))
	for i := 0; i < 3; i++ {
		if code := svc.Detect(context.Background(), "stessa frase"); code != "it" {
			t.Fatalf("unexpected code: %q", code)
		}
	}
	if remote.calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", remote.calls)
	}
}

func TestDetectBothStrategiesFailingIsNotAnError(t *testing.T) {
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{ok: false}),
		WithRemoteDetector(&fakeRemoteDetector{err: errors.New("timeout")}),
	)
	if code := svc.Detect(context.Background(), "???"); code != "" {
		t.Fatalf("expected unknown, got %q", code)
	}
}

func TestTranslateShortCircuitsOnFrench(t *testing.T) {
	primary := prefixBackend("google", "TR:")
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "fr", ok: true}),
		WithPrimaryBackend(primary),
	)
	result := svc.TranslateToFrench(context.Background(), "Bonjour le monde", false)
	if result.Changed {
		t.Fatal("french input must not be marked changed")
	}
	if result.Text != "Bonjour le monde" || result.Source != "fr" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if primary.calls != 0 {
		t.Fatal("backends must not be called for french input")
	}
}

func TestTranslateForceOverridesShortCircuit(t *testing.T) {
	primary := prefixBackend("google", "traduit: ")
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "fr", ok: true}),
		WithPrimaryBackend(primary),
	)
	result := svc.TranslateToFrench(context.Background(), "Bonjour", true)
	if !result.Changed || primary.calls == 0 {
		t.Fatalf("force must run the backend: %#v", result)
	}
}

func TestTranslateFallsBackWhenPrimaryEchoes(t *testing.T) {
	primary := echoBackend("google")
	secondary := prefixBackend("mymemory", "fr: ")
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "en", ok: true}),
		WithPrimaryBackend(primary),
		WithSecondaryBackend(secondary),
	)
	result := svc.TranslateToFrench(context.Background(), "Hello world", false)
	if !result.Changed {
		t.Fatalf("secondary translation must count as changed: %#v", result)
	}
	if !strings.HasPrefix(result.Text, "fr: ") {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Source != "en" {
		t.Fatalf("unexpected source: %q", result.Source)
	}
}

func TestTranslateEchoWithCaseChangeOnlyIsNotChanged(t *testing.T) {
	// Uppercasing the input is not a real translation; the comparison key
	// must treat it as an echo and fall through to the secondary backend.
	primary := &fakeBackend{name: "google", mapping: func(chunk string) (string, error) {
		return strings.ToUpper(chunk), nil
	}}
	secondary := failingBackend("mymemory")
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "en", ok: true}),
		WithPrimaryBackend(primary),
		WithSecondaryBackend(secondary),
	)
	result := svc.TranslateToFrench(context.Background(), "Hello world", false)
	if result.Changed {
		t.Fatalf("case-only difference must not count as changed: %#v", result)
	}
}

func TestTranslateTotalFallbackReturnsOriginal(t *testing.T) {
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "en", ok: true}),
		WithPrimaryBackend(failingBackend("google")),
		WithSecondaryBackend(failingBackend("mymemory")),
	)
	result := svc.TranslateToFrench(context.Background(), "  Hello   world  ", false)
	if result.Changed {
		t.Fatal("total fallback must not be marked changed")
	}
	if result.Text != "Hello world" {
		t.Fatalf("expected normalized original, got %q", result.Text)
	}
}

func TestTranslateEmptyInput(t *testing.T) {
	svc := NewService()
	result := svc.TranslateToFrench(context.Background(), "", false)
	if result.Text != "" || result.Changed || result.Source != "" {
		t.Fatalf("unexpected result for empty input: %#v", result)
	}
}

func TestTranslateMemoizesSecondaryChunks(t *testing.T) {
	secondary := prefixBackend("mymemory", "fr: ")
	svc := NewService(
		WithLocalDetector(fakeLocalDetector{code: "en", ok: true}),
		WithSecondaryBackend(secondary),
	)
	for i := 0; i < 3; i++ {
		svc.TranslateToFrench(context.Background(), "Hello again", false)
	}
	if secondary.calls != 1 {
		t.Fatalf("expected 1 secondary call, got %d", secondary.calls)
	}
}

func TestBadgeKnownAndUnknownCodes(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
		want string
	}{
		{"fr", true, "FR"},
		{"en", true, "EN"},
		{"", false, "??"},
	}
	for _, tc := range cases {
		svc := NewService(WithLocalDetector(fakeLocalDetector{code: tc.code, ok: tc.ok}))
		if got := svc.Badge(context.Background(), "sample text"); got != tc.want {
			t.Fatalf("badge for %q: got %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestBadgeTruncatesExoticCodes(t *testing.T) {
	svc := NewService(WithRemoteDetector(&fakeRemoteDetector{code: "nld"}))
	if got := svc.Badge(context.Background(), "een nederlandse tekst"); got != "NL" {
		t.Fatalf("unexpected badge: %q", got)
	}
}

func TestCanonicalLangCode(t *testing.T) {
	cases := map[string]string{
		"fr":         "fr",
		"FR-fr":      "fr",
		"en-US":      "en",
		"autodetect": "",
		"":           "",
	}
	for input, want := range cases {
		if got := canonicalLangCode(input); got != want {
			t.Fatalf("canonicalLangCode(%q) = %q, want %q", input, got, want)
		}
	}
}
