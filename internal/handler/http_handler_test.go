package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/internal/domain"
	"github.com/Yehonatan-Bar/ear-fish/internal/hub"
	"github.com/Yehonatan-Bar/ear-fish/internal/registry"
	"github.com/Yehonatan-Bar/ear-fish/internal/store/storetest"
	"github.com/Yehonatan-Bar/ear-fish/internal/translator"
)

type staticOracle struct{}

func (staticOracle) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return text, nil
}

func (staticOracle) DetectLanguage(ctx context.Context, text string) (string, error) {
	return "fr", nil
}

func setup(t *testing.T) (*gin.Engine, *registry.Registry, *storetest.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storetest.New()
	cfg := &config.Config{
		Cache: config.CacheConfig{
			TranslationTTL: 24 * time.Hour,
			DetectionTTL:   time.Hour,
			HistoryMax:     50,
		},
		Oracle: config.OracleConfig{Timeout: time.Second},
	}
	h := hub.New()
	reg := registry.New(mem, "test-instance", cfg.Cache.HistoryMax)
	tr := translator.New(mem, staticOracle{}, cfg)

	r := gin.New()
	NewHTTPHandler(h, reg, tr, mem, "test-instance", cfg.Cache.HistoryMax).RegisterRoutes(r)
	return r, reg, mem
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func data(t *testing.T, parsed map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := parsed["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", parsed)
	return d
}

func TestCreateRoom(t *testing.T) {
	r, _, _ := setup(t)

	w, parsed := doJSON(t, r, http.MethodPost, "/rooms", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	d := data(t, parsed)
	assert.NotEmpty(t, d["room_id"])
	assert.NotEmpty(t, d["created_at"])
}

func TestHealth(t *testing.T) {
	r, _, mem := setup(t)

	w, parsed := doJSON(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, parsed)
	assert.Equal(t, "ok", d["status"])
	assert.Equal(t, "test-instance", d["instance_id"])
	storeStatus := d["store_status"].(map[string]interface{})
	assert.Equal(t, true, storeStatus["connected"])

	mem.SetUnavailable(true)
	w, parsed = doJSON(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "degraded store must not fail the health endpoint")
	d = data(t, parsed)
	assert.Equal(t, "degraded", d["status"])
	storeStatus = d["store_status"].(map[string]interface{})
	assert.Equal(t, false, storeStatus["connected"])
}

func TestRoomStats(t *testing.T) {
	r, reg, _ := setup(t)
	ctx := context.Background()

	w, _ := doJSON(t, r, http.MethodGet, "/rooms/empty/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, reg.Join(ctx, "room-1", "c1", "en", "Alice"))
	require.NoError(t, reg.Join(ctx, "room-1", "c2", "es", "Bob"))
	require.NoError(t, reg.AppendHistory(ctx, "room-1", domain.Envelope{SenderID: "c1", OriginalText: "hi"}))

	w, parsed := doJSON(t, r, http.MethodGet, "/rooms/room-1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, parsed)
	assert.EqualValues(t, 2, d["active_users"])
	assert.EqualValues(t, 1, d["message_count"])
	assert.Len(t, d["users"].(map[string]interface{}), 2)
	assert.ElementsMatch(t, []interface{}{"en", "es"}, d["languages"].([]interface{}))
}

func TestRoomHistory(t *testing.T) {
	r, reg, _ := setup(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, reg.AppendHistory(ctx, "room-1", domain.Envelope{SenderID: "c1", OriginalText: text}))
	}

	w, parsed := doJSON(t, r, http.MethodGet, "/rooms/room-1/history?limit=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, parsed)
	assert.EqualValues(t, 2, d["count"])
	messages := d["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "three", messages[0].(map[string]interface{})["original_text"])
}

func TestGlobalStats(t *testing.T) {
	r, reg, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Join(ctx, "room-1", "c1", "en", "Alice"))
	require.NoError(t, reg.AppendHistory(ctx, "room-1", domain.Envelope{SenderID: "c1", OriginalText: "hi"}))

	w, parsed := doJSON(t, r, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, parsed)
	roomStats := d["room_stats"].(map[string]interface{})
	assert.EqualValues(t, 1, roomStats["active_rooms"])
	assert.EqualValues(t, 1, roomStats["total_messages"])
	assert.Contains(t, d, "translation_stats")
}

func TestGlobalStatsDegraded(t *testing.T) {
	r, _, mem := setup(t)
	mem.SetUnavailable(true)

	w, parsed := doJSON(t, r, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code, "stats stay best-effort during an outage")
	d := data(t, parsed)
	assert.Contains(t, d, "room_stats")
}

func TestDetectLanguage(t *testing.T) {
	r, _, _ := setup(t)

	w, parsed := doJSON(t, r, http.MethodPost, "/detect", `{"text":"bonjour"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, parsed)
	assert.Equal(t, "fr", d["language"])
	assert.EqualValues(t, detectConfidence, d["confidence"])

	w, _ = doJSON(t, r, http.MethodPost, "/detect", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
