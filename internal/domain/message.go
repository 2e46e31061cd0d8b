package domain

// Envelope is one chat message with its per-language translations. It is
// immutable once constructed; the translations map holds one entry per
// distinct room language other than the sender's.
type Envelope struct {
	SenderID       string            `json:"client_id"`
	Username       string            `json:"username"`
	OriginalText   string            `json:"original_text"`
	SenderLanguage string            `json:"sender_language"`
	Translations   map[string]string `json:"translations"`
	Timestamp      string            `json:"timestamp"`
}

// Participant is the shared-store view of one connected user. Any instance
// may read it, but only the instance named by InstanceID holds the live
// connection and may write to its socket.
type Participant struct {
	Language    string `json:"language"`
	Username    string `json:"username"`
	InstanceID  string `json:"instance_id"`
	ConnectedAt string `json:"connected_at"`
}

// RoomStats is the best-effort aggregate view over all rooms.
type RoomStats struct {
	ActiveRooms      int                `json:"active_rooms"`
	TotalMessages    int64              `json:"total_messages"`
	TopRooms         map[string]float64 `json:"top_rooms"`
	PopularLanguages map[string]float64 `json:"popular_languages"`
	LocalConnections int                `json:"local_connections"`
}

// TranslationStats are the shared translation counters.
type TranslationStats struct {
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	TranslationsTotal int64 `json:"translations_total"`
	DetectionsTotal   int64 `json:"detections_total"`
}
