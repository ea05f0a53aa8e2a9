// Package i18n detects the language of provider text and translates it to
// French for display. Language enrichment is a UX nicety, not a correctness
// requirement: no operation here ever returns an error to the caller, every
// failure degrades to "unknown" or to the untranslated text.
package i18n

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"

	"moviefinder/searchservice/internal/metrics"
	"moviefinder/searchservice/internal/textutil"
)

const (
	detectCacheSize    = 2048
	translateCacheSize = 1024
)

// LocalDetector is an offline language detector. It reports the lowercase
// ISO 639-1 code, or ok=false when it cannot tell.
type LocalDetector interface {
	DetectLanguage(text string) (code string, ok bool)
}

// RemoteDetector detects language through a network side-channel.
type RemoteDetector interface {
	DetectLanguage(ctx context.Context, sample string) (string, error)
}

// TranslateBackend translates a single chunk to French.
type TranslateBackend interface {
	Name() string
	Translate(ctx context.Context, chunk string) (string, error)
}

// Translation is the fixed-shape result of TranslateToFrench. Changed is true
// only when the backend produced text whose comparison key differs from the
// normalized original; Source is the detected source language, empty when
// undetectable.
type Translation struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
	Source  string `json:"source,omitempty"`
}

type Service struct {
	local     LocalDetector
	remote    RemoteDetector
	primary   TranslateBackend
	secondary TranslateBackend
	logger    *slog.Logger

	// Movie titles and descriptions repeat heavily across queries; both
	// caches are bounded and shared across calls.
	detectCache    *lru.Cache[string, string]
	secondaryCache *lru.Cache[string, string]
}

type ServiceOption func(*Service)

func WithLocalDetector(detector LocalDetector) ServiceOption {
	return func(s *Service) { s.local = detector }
}

func WithRemoteDetector(detector RemoteDetector) ServiceOption {
	return func(s *Service) { s.remote = detector }
}

func WithPrimaryBackend(backend TranslateBackend) ServiceOption {
	return func(s *Service) { s.primary = backend }
}

func WithSecondaryBackend(backend TranslateBackend) ServiceOption {
	return func(s *Service) { s.secondary = backend }
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(opts ...ServiceOption) *Service {
	detectCache, _ := lru.New[string, string](detectCacheSize)
	secondaryCache, _ := lru.New[string, string](translateCacheSize)
	svc := &Service{
		logger:         slog.Default(),
		detectCache:    detectCache,
		secondaryCache: secondaryCache,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Detect returns the lowercase ISO 639-1 code of the text's language, or ""
// when undetectable. Undetectable is not an error: callers treat it as
// "assume translation is needed".
func (s *Service) Detect(ctx context.Context, text string) string {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return ""
	}

	if code, ok := s.detectCache.Get(text); ok {
		metrics.LanguageDetectionsTotal.WithLabelValues("cache").Inc()
		return code
	}

	if s.local != nil {
		if code, ok := s.local.DetectLanguage(normalized); ok {
			code = canonicalLangCode(code)
			if code != "" {
				metrics.LanguageDetectionsTotal.WithLabelValues("local").Inc()
				s.detectCache.Add(text, code)
				return code
			}
		}
	}

	if s.remote != nil {
		code, err := s.remote.DetectLanguage(ctx, normalized)
		if err == nil {
			code = canonicalLangCode(code)
			if code != "" {
				metrics.LanguageDetectionsTotal.WithLabelValues("remote").Inc()
				s.detectCache.Add(text, code)
				return code
			}
		} else {
			s.logger.Debug("remote language detection failed", slog.String("error", err.Error()))
		}
	}

	metrics.LanguageDetectionsTotal.WithLabelValues("none").Inc()
	return ""
}

// DetectFragments joins text fragments with spaces and detects the language
// of the combined sample.
func (s *Service) DetectFragments(ctx context.Context, fragments []string) string {
	return s.Detect(ctx, textutil.JoinFragments(fragments))
}

// TranslateToFrench translates text to French through the primary backend,
// falling back to the secondary one when the primary is unavailable or echoed
// its input. Chunk-level failures pass the chunk through untranslated; a
// total fallback returns the normalized original with Changed=false.
func (s *Service) TranslateToFrench(ctx context.Context, text string, force bool) Translation {
	if strings.TrimSpace(text) == "" {
		return Translation{}
	}

	source := s.Detect(ctx, text)
	if source == "fr" && !force {
		return Translation{Text: text, Source: "fr"}
	}

	normalized := textutil.Normalize(text)
	originalKey := textutil.ComparisonKey(normalized)
	chunks := splitChunks(normalized, maxChunkLen)

	if s.primary != nil {
		joined := s.translateChunks(ctx, s.primary, chunks, nil)
		if textutil.ComparisonKey(joined) != originalKey {
			return Translation{Text: joined, Changed: true, Source: s.sourceOf(ctx, source, joined)}
		}
	}

	if s.secondary != nil {
		joined := s.translateChunks(ctx, s.secondary, chunks, s.secondaryCache)
		changed := textutil.ComparisonKey(joined) != originalKey
		return Translation{Text: joined, Changed: changed, Source: s.sourceOf(ctx, source, joined)}
	}

	return Translation{Text: normalized, Source: source}
}

func (s *Service) translateChunks(ctx context.Context, backend TranslateBackend, chunks []string, cache *lru.Cache[string, string]) string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if cache != nil {
			if cached, ok := cache.Get(chunk); ok {
				out = append(out, cached)
				continue
			}
		}
		translated, err := backend.Translate(ctx, chunk)
		if err != nil || strings.TrimSpace(translated) == "" {
			metrics.TranslationRequestsTotal.WithLabelValues(backend.Name(), "error").Inc()
			if err != nil {
				s.logger.Debug("chunk translation failed",
					slog.String("backend", backend.Name()),
					slog.String("error", err.Error()),
				)
			}
			out = append(out, chunk)
			continue
		}
		metrics.TranslationRequestsTotal.WithLabelValues(backend.Name(), "ok").Inc()
		if cache != nil {
			cache.Add(chunk, translated)
		}
		out = append(out, translated)
	}
	return strings.TrimSpace(strings.Join(out, "\n\n"))
}

func (s *Service) sourceOf(ctx context.Context, detected, translated string) string {
	if detected != "" {
		return detected
	}
	return s.Detect(ctx, translated)
}

var badgeLabels = map[string]string{
	"fr": "FR",
	"en": "EN",
	"es": "ES",
	"de": "DE",
	"it": "IT",
	"pt": "PT",
}

// Badge maps a text sample to a two-letter display tag: known codes uppercase
// themselves, other codes truncate to two uppercase characters, and an
// undetectable sample renders as "??".
func (s *Service) Badge(ctx context.Context, sample string) string {
	code := s.Detect(ctx, sample)
	if label, ok := badgeLabels[code]; ok {
		return label
	}
	if code == "" {
		return "??"
	}
	tag := strings.ToUpper(code)
	if len(tag) > 2 {
		tag = tag[:2]
	}
	return tag
}

// canonicalLangCode reduces whatever code an upstream reported ("fr-FR",
// "FRA", "french") to a bare lowercase base code.
func canonicalLangCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" || code == "autodetect" {
		return ""
	}
	if tag, err := language.Parse(code); err == nil {
		if base, confidence := tag.Base(); confidence != language.No {
			return base.String()
		}
	}
	if len(code) > 2 {
		return code[:2]
	}
	return code
}

// NewLinguaDetector builds the default offline detector over the languages
// the badge set knows about. Construction loads language models, so callers
// should build it once and share it.
func NewLinguaDetector() LocalDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.French,
			lingua.English,
			lingua.Spanish,
			lingua.German,
			lingua.Italian,
			lingua.Portuguese,
		).
		Build()
	return &linguaDetector{detector: detector}
}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

func (d *linguaDetector) DetectLanguage(text string) (string, bool) {
	detected, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(detected.IsoCode639_1().String()), true
}
