package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/internal/store/storetest"
)

type fakeOracle struct {
	mu           sync.Mutex
	translations int
	detections   int
	translateErr error
	detectResult string
	detectErr    error
}

func (f *fakeOracle) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	f.translations++
	f.mu.Unlock()
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return "[" + targetLang + "] " + text, nil
}

func (f *fakeOracle) DetectLanguage(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.detections++
	f.mu.Unlock()
	if f.detectErr != nil {
		return "", f.detectErr
	}
	if f.detectResult != "" {
		return f.detectResult, nil
	}
	return "es", nil
}

func (f *fakeOracle) translateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.translations
}

func testConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			TranslationTTL: 24 * time.Hour,
			DetectionTTL:   time.Hour,
			HistoryMax:     50,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			MaxRequests: 10,
			Window:      60 * time.Second,
		},
		Oracle: config.OracleConfig{Timeout: 1500 * time.Millisecond},
	}
}

func TestTranslateEmptyTextIsNoOp(t *testing.T) {
	oracle := &fakeOracle{}
	svc := New(storetest.New(), oracle, testConfig())

	assert.Equal(t, "   ", svc.Translate(context.Background(), "   ", "es", "en", "u1"))
	assert.Zero(t, oracle.translateCalls())
}

func TestTranslateCachesResult(t *testing.T) {
	oracle := &fakeOracle{}
	svc := New(storetest.New(), oracle, testConfig())
	ctx := context.Background()

	first := svc.Translate(ctx, "hello", "es", "en", "u1")
	assert.Equal(t, "[es] hello", first)

	second := svc.Translate(ctx, "hello", "es", "en", "u2")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, oracle.translateCalls(), "second lookup must come from cache")
}

func TestTranslateDistinguishesSourceLanguage(t *testing.T) {
	mem := storetest.New()
	oracle := &fakeOracle{}
	svc := New(mem, oracle, testConfig())
	ctx := context.Background()

	svc.Translate(ctx, "pain", "en", "fr", "u1")
	require.Equal(t, 1, oracle.translateCalls())

	// A fresh instance holds no in-process cache; the shared entry is
	// keyed by source, so the unknown-source request misses it.
	other := New(mem, oracle, testConfig())
	other.Translate(ctx, "pain", "en", "", "u2")
	assert.Equal(t, 2, oracle.translateCalls(), "known and unknown source cache separately")
}

func TestTranslateLocalCacheSurvivesSharedExpiry(t *testing.T) {
	mem := storetest.New()
	oracle := &fakeOracle{}
	svc := New(mem, oracle, testConfig())
	ctx := context.Background()

	svc.Translate(ctx, "hello", "es", "en", "u1")
	require.Equal(t, 1, oracle.translateCalls())

	// Shared entry expires; the in-process copy answers and repopulates it.
	mem.Advance(25 * time.Hour)
	got := svc.Translate(ctx, "hello", "es", "en", "u1")
	assert.Equal(t, "[es] hello", got)
	assert.Equal(t, 1, oracle.translateCalls())

	// Repopulated shared entry now serves a fresh service instance.
	other := New(mem, oracle, testConfig())
	assert.Equal(t, "[es] hello", other.Translate(ctx, "hello", "es", "en", "u9"))
	assert.Equal(t, 1, oracle.translateCalls())
}

func TestTranslateRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxRequests = 2
	mem := storetest.New()
	oracle := &fakeOracle{}
	svc := New(mem, oracle, cfg)
	ctx := context.Background()

	assert.Equal(t, "[es] one", svc.Translate(ctx, "one", "es", "en", "u1"))
	assert.Equal(t, "[es] two", svc.Translate(ctx, "two", "es", "en", "u1"))

	// Over the cap: original text, oracle untouched.
	before := oracle.translateCalls()
	assert.Equal(t, "three", svc.Translate(ctx, "three", "es", "en", "u1"))
	assert.Equal(t, before, oracle.translateCalls())

	// Other users have their own window.
	assert.Equal(t, "[es] three", svc.Translate(ctx, "three", "es", "en", "u2"))

	// The window expiring resets the counter.
	mem.Advance(61 * time.Second)
	assert.Equal(t, "[es] four", svc.Translate(ctx, "four", "es", "en", "u1"))
}

func TestTranslateAnonymousSkipsRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxRequests = 1
	oracle := &fakeOracle{}
	svc := New(storetest.New(), oracle, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		got := svc.Translate(ctx, strings.Repeat("x", i+1), "es", "en", "")
		assert.True(t, strings.HasPrefix(got, "[es] "))
	}
}

func TestTranslateOracleFailureReturnsOriginal(t *testing.T) {
	oracle := &fakeOracle{translateErr: errors.New("oracle down")}
	svc := New(storetest.New(), oracle, testConfig())

	got := svc.Translate(context.Background(), "hello", "es", "en", "u1")
	assert.Equal(t, "hello", got)

	// Failures are not cached; recovery retries the oracle.
	oracle.translateErr = nil
	got = svc.Translate(context.Background(), "hello", "es", "en", "u1")
	assert.Equal(t, "[es] hello", got)
}

func TestTranslateStoreOutageStillTranslates(t *testing.T) {
	mem := storetest.New()
	mem.SetUnavailable(true)
	oracle := &fakeOracle{}
	svc := New(mem, oracle, testConfig())

	got := svc.Translate(context.Background(), "hello", "es", "en", "u1")
	assert.Equal(t, "[es] hello", got)
}

func TestDetectLanguage(t *testing.T) {
	oracle := &fakeOracle{}
	svc := New(storetest.New(), oracle, testConfig())
	ctx := context.Background()

	assert.Equal(t, "es", svc.DetectLanguage(ctx, "hola"))
	assert.Equal(t, "es", svc.DetectLanguage(ctx, "hola"))
	assert.Equal(t, 1, oracle.detections, "second detection must come from cache")
}

func TestDetectLanguageFallbacks(t *testing.T) {
	ctx := context.Background()

	svc := New(storetest.New(), &fakeOracle{detectErr: errors.New("down")}, testConfig())
	assert.Equal(t, DefaultLanguage, svc.DetectLanguage(ctx, "hola"))

	svc = New(storetest.New(), &fakeOracle{detectResult: "Spanish"}, testConfig())
	assert.Equal(t, DefaultLanguage, svc.DetectLanguage(ctx, "hola"))

	svc = New(storetest.New(), &fakeOracle{}, testConfig())
	assert.Equal(t, DefaultLanguage, svc.DetectLanguage(ctx, ""))
}

func TestStats(t *testing.T) {
	mem := storetest.New()
	oracle := &fakeOracle{}
	svc := New(mem, oracle, testConfig())
	ctx := context.Background()

	svc.Translate(ctx, "hello", "es", "en", "u1") // miss
	svc.Translate(ctx, "hello", "es", "en", "u1") // hit
	svc.DetectLanguage(ctx, "hola")

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.EqualValues(t, 1, stats.CacheMisses)
	assert.EqualValues(t, 1, stats.TranslationsTotal)
	assert.EqualValues(t, 1, stats.DetectionsTotal)
}
