package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Yehonatan-Bar/ear-fish/internal/hub"
	"github.com/Yehonatan-Bar/ear-fish/internal/registry"
	"github.com/Yehonatan-Bar/ear-fish/internal/store"
	"github.com/Yehonatan-Bar/ear-fish/internal/translator"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
	"github.com/Yehonatan-Bar/ear-fish/pkg/response"
)

// detectConfidence is reported with every detection result; the oracle
// gives no confidence of its own.
const detectConfidence = 0.95

// HTTPHandler serves the REST surface: room creation, health, stats,
// history, and language detection.
type HTTPHandler struct {
	hub        *hub.Hub
	registry   *registry.Registry
	translator *translator.Service
	store      store.Store
	instanceID string
	historyMax int
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(h *hub.Hub, reg *registry.Registry, tr *translator.Service, s store.Store, instanceID string, historyMax int) *HTTPHandler {
	return &HTTPHandler{
		hub:        h,
		registry:   reg,
		translator: tr,
		store:      s,
		instanceID: instanceID,
		historyMax: historyMax,
	}
}

// RegisterRoutes registers all routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:room_id/stats", h.RoomStats)
	r.GET("/rooms/:room_id/history", h.RoomHistory)
	r.GET("/stats", h.GlobalStats)
	r.POST("/detect", h.DetectLanguage)
}

// CreateRoom mints a fresh room identifier. Rooms have no stored
// existence until the first participant joins.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	response.Created(c, gin.H{
		"room_id":    uuid.New().String(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health reports instance liveness and store connectivity. A down
// store still answers 200; the payload says degraded.
func (h *HTTPHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	storeStatus := gin.H{"connected": true}
	latency, err := h.store.Ping(ctx)
	if err != nil {
		status = "degraded"
		storeStatus["connected"] = false
	} else {
		storeStatus["latency_ms"] = float64(latency.Microseconds()) / 1000
	}

	response.Success(c, gin.H{
		"status":            status,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"store_status":      storeStatus,
		"instance_id":       h.instanceID,
		"local_connections": h.hub.LocalCount(),
	})
}

// RoomStats returns the live view of one room, 404 when the room has
// no participants anywhere.
func (h *HTTPHandler) RoomStats(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("room_id")

	users, err := h.registry.RoomUsers(ctx, roomID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("room stats lookup failed")
		response.InternalError(c, "room stats unavailable")
		return
	}
	if len(users) == 0 {
		response.NotFound(c, "room not found")
		return
	}

	languages, err := h.registry.LanguagesInUse(ctx, roomID)
	if err != nil {
		languages = h.hub.Languages(roomID)
	}
	count, err := h.registry.MessageCount(ctx, roomID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("message count unavailable")
	}

	response.Success(c, gin.H{
		"room_id":       roomID,
		"active_users":  len(users),
		"users":         users,
		"languages":     languages,
		"message_count": count,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// RoomHistory returns recent messages, newest first.
func (h *HTTPHandler) RoomHistory(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("room_id")

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if query.Limit <= 0 || query.Limit > h.historyMax {
		query.Limit = h.historyMax
	}

	messages, err := h.registry.RecentHistory(ctx, roomID, query.Limit)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("history lookup failed")
		response.InternalError(c, "history unavailable")
		return
	}

	response.Success(c, gin.H{
		"room_id":  roomID,
		"messages": messages,
		"count":    len(messages),
	})
}

// GlobalStats aggregates room and translation counters. Best-effort:
// whatever part of the store answered is returned.
func (h *HTTPHandler) GlobalStats(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomStats, err := h.registry.Stats(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("room stats partially unavailable")
	}
	roomStats.LocalConnections = h.hub.LocalCount()
	translationStats, err := h.translator.Stats(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("translation stats unavailable")
	}

	response.Success(c, gin.H{
		"room_stats":        roomStats,
		"translation_stats": translationStats,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

// DetectLanguage identifies the language of a text sample.
func (h *HTTPHandler) DetectLanguage(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"language":   h.translator.DetectLanguage(ctx, req.Text),
		"confidence": detectConfidence,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
