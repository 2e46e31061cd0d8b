// Package translator fronts the external translation oracle with a
// two-level cache and a per-user rate limiter. Every failure path
// degrades to the original text; nothing here ever surfaces an error
// to the person chatting.
package translator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/internal/domain"
	"github.com/Yehonatan-Bar/ear-fish/internal/store"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

const (
	statsKey            = "translation:stats"
	popularLanguagesKey = "popular_languages"

	statCacheHits    = "cache_hits"
	statCacheMisses  = "cache_misses"
	statTranslations = "translations_total"
	statDetections   = "detections_total"

	// DefaultLanguage is what detection falls back to when the oracle
	// fails or answers with something that is not a language code.
	DefaultLanguage = "en"
)

// Service resolves translations cache-first, shared cache before the
// in-process one, and only then asks the oracle. Concurrent misses for
// the same text and target collapse into a single oracle call.
type Service struct {
	store  store.Store
	oracle Oracle

	cacheCfg config.CacheConfig
	rateCfg  config.RateLimitConfig
	timeout  time.Duration

	mu    sync.RWMutex
	local map[string]string

	flight singleflight.Group
}

// New creates the translation service.
func New(s store.Store, oracle Oracle, cfg *config.Config) *Service {
	return &Service{
		store:    s,
		oracle:   oracle,
		cacheCfg: cfg.Cache,
		rateCfg:  cfg.RateLimit,
		timeout:  cfg.Oracle.Timeout,
		local:    make(map[string]string),
	}
}

func contentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// sharedKey spans source and target so the same text translated from
// different source languages caches separately. An unknown source maps
// to the "any" slot.
func sharedKey(text, sourceLang, targetLang string) string {
	if sourceLang == "" {
		sourceLang = "any"
	}
	return "translation:" + contentHash(fmt.Sprintf("%s:%s:%s", text, sourceLang, targetLang))
}

// localKey is source-agnostic, the shape the in-process cache has
// always used.
func localKey(text, targetLang string) string {
	return contentHash(text) + ":" + targetLang
}

func detectKey(text string) string {
	return "lang_detect:" + contentHash(text)
}

// Translate returns text in targetLang, or the original text whenever
// the rate limit, the store, or the oracle gets in the way.
func (s *Service) Translate(ctx context.Context, text, targetLang, sourceLang, userID string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	if !s.allow(ctx, userID) {
		l := log.Ctx(ctx)
		l.Debug().
			Str(log.FieldClientID, userID).
			Msg("translation rate limited, returning original")
		return text
	}

	l2Key := sharedKey(text, sourceLang, targetLang)
	if cached, err := s.store.Get(ctx, l2Key); err == nil {
		s.recordHit(ctx, targetLang)
		return cached
	}

	l1Key := localKey(text, targetLang)
	s.mu.RLock()
	cached, ok := s.local[l1Key]
	s.mu.RUnlock()
	if ok {
		// Promote so the other instances see it too.
		if err := s.store.Set(ctx, l2Key, cached, s.cacheCfg.TranslationTTL); err != nil {
			l := log.Ctx(ctx)
			l.Debug().Err(err).Msg("shared cache writeback skipped")
		}
		s.recordHit(ctx, targetLang)
		return cached
	}

	result, err, _ := s.flight.Do(l2Key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.oracle.Translate(callCtx, text, sourceLang, targetLang)
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Str(log.FieldLanguage, targetLang).
			Msg("translation failed, returning original")
		return text
	}
	translated := result.(string)

	s.mu.Lock()
	s.local[l1Key] = translated
	s.mu.Unlock()
	if err := s.store.Set(ctx, l2Key, translated, s.cacheCfg.TranslationTTL); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("shared cache store skipped")
	}

	s.recordMiss(ctx, targetLang)
	return translated
}

// DetectLanguage identifies the language of text, falling back to
// DefaultLanguage on any failure or a malformed answer.
func (s *Service) DetectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}

	key := detectKey(text)
	if cached, err := s.store.Get(ctx, key); err == nil {
		return cached
	}

	result, err, _ := s.flight.Do(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.oracle.DetectLanguage(callCtx, text)
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("language detection failed, using default")
		return DefaultLanguage
	}

	lang := strings.ToLower(strings.TrimSpace(result.(string)))
	if len(lang) != 2 || !isAlpha(lang) {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldLanguage, lang).Msg("malformed detection result, using default")
		return DefaultLanguage
	}

	if err := s.store.Set(ctx, key, lang, s.cacheCfg.DetectionTTL); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("detection cache store skipped")
	}
	if _, err := s.store.HIncrBy(ctx, statsKey, statDetections, 1); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("detection counter skipped")
	}
	return lang
}

// Stats reads the shared translation counters.
func (s *Service) Stats(ctx context.Context) (domain.TranslationStats, error) {
	fields, err := s.store.HGetAll(ctx, statsKey)
	if err != nil {
		return domain.TranslationStats{}, err
	}
	parse := func(field string) int64 {
		n, _ := strconv.ParseInt(fields[field], 10, 64)
		return n
	}
	return domain.TranslationStats{
		CacheHits:         parse(statCacheHits),
		CacheMisses:       parse(statCacheMisses),
		TranslationsTotal: parse(statTranslations),
		DetectionsTotal:   parse(statDetections),
	}, nil
}

// allow consults the sliding-window counter. A store failure allows the
// request: losing a translation to a limiter outage is worse than an
// extra oracle call.
func (s *Service) allow(ctx context.Context, userID string) bool {
	if !s.rateCfg.Enabled || userID == "" {
		return true
	}
	count, err := s.store.Incr(ctx, "ratelimit:"+userID, s.rateCfg.Window)
	if err != nil {
		return true
	}
	return count <= int64(s.rateCfg.MaxRequests)
}

func (s *Service) recordHit(ctx context.Context, targetLang string) {
	if _, err := s.store.HIncrBy(ctx, statsKey, statCacheHits, 1); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("cache hit counter skipped")
	}
	s.recordPopularity(ctx, targetLang)
}

func (s *Service) recordMiss(ctx context.Context, targetLang string) {
	if _, err := s.store.HIncrBy(ctx, statsKey, statCacheMisses, 1); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("cache miss counter skipped")
	}
	if _, err := s.store.HIncrBy(ctx, statsKey, statTranslations, 1); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("translation counter skipped")
	}
	s.recordPopularity(ctx, targetLang)
}

func (s *Service) recordPopularity(ctx context.Context, targetLang string) {
	if err := s.store.ZIncrBy(ctx, popularLanguagesKey, 1, targetLang); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("language popularity counter skipped")
	}
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
