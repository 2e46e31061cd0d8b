package domain

// WebSocket event kinds from client.
const (
	EventMessage        = "message"
	EventTyping         = "typing"
	EventLanguageChange = "language_change"
)

// WebSocket event kinds to client.
const (
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventLanguageChanged = "language_changed"
	EventHistory         = "history"
)

// BaseEvent carries only the discriminating kind; payloads are decoded a
// second time into the matching struct. Unknown kinds are ignored.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type MessageEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

type LanguageChangeEvent struct {
	Type     string `json:"type"`
	Language string `json:"language"`
}

// Server -> Client events

type UserJoinedEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Language  string `json:"language"`
	Timestamp string `json:"timestamp"`
}

type UserLeftEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

type TypingBroadcastEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"is_typing"`
	Timestamp string `json:"timestamp"`
}

type LanguageChangedEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Language  string `json:"language"`
	Timestamp string `json:"timestamp"`
}

// HistoryEvent replays recent messages to a newly connected client,
// oldest first.
type HistoryEvent struct {
	Type     string     `json:"type"`
	Messages []Envelope `json:"messages"`
}

// ChatBroadcastEvent carries a translated envelope to every local
// connection in the room.
type ChatBroadcastEvent struct {
	Type           string            `json:"type"`
	ClientID       string            `json:"client_id"`
	Username       string            `json:"username"`
	OriginalText   string            `json:"original_text"`
	SenderLanguage string            `json:"sender_language"`
	Translations   map[string]string `json:"translations"`
	Timestamp      string            `json:"timestamp"`
}
