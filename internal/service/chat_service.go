// Package service wires the local hub, the shared room registry, and
// the translator into the chat flow itself: connects, disconnects, and
// the per-event handling behind the WebSocket endpoint.
package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yehonatan-Bar/ear-fish/internal/audit"
	"github.com/Yehonatan-Bar/ear-fish/internal/domain"
	"github.com/Yehonatan-Bar/ear-fish/internal/hub"
	"github.com/Yehonatan-Bar/ear-fish/internal/registry"
	"github.com/Yehonatan-Bar/ear-fish/internal/translator"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

// ChatService drives one instance's share of the conversation. The hub
// holds this instance's sockets; everything cross-instance goes through
// the registry.
type ChatService struct {
	hub        *hub.Hub
	registry   *registry.Registry
	translator *translator.Service
}

// New creates the chat service.
func New(h *hub.Hub, reg *registry.Registry, tr *translator.Service) *ChatService {
	return &ChatService{hub: h, registry: reg, translator: tr}
}

// Connect registers the client locally, joins it into the shared room
// state, replays recent history to it, and announces it to the room.
// Registry failures degrade to local-only chat; the connection always
// proceeds.
func (s *ChatService) Connect(ctx context.Context, c *hub.Client) {
	s.hub.Add(c)

	if err := s.registry.Join(ctx, c.RoomID, c.ID, c.Language(), c.Username()); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, c.RoomID).
			Str(log.FieldClientID, c.ID).
			Msg("registry join failed, continuing local-only")
	}

	s.replayHistory(ctx, c)

	s.broadcast(ctx, c.RoomID, domain.UserJoinedEvent{
		Type:      domain.EventUserJoined,
		ClientID:  c.ID,
		Username:  c.Username(),
		Language:  c.Language(),
		Timestamp: now(),
	})

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, c.ID, c.RoomID, c.Language(), "client connected")
}

// Disconnect detaches the client and announces its departure. Safe to
// call twice; the second call finds nothing to remove and returns.
func (s *ChatService) Disconnect(ctx context.Context, roomID, clientID string) {
	removed := s.hub.Remove(roomID, clientID)
	if removed == nil {
		return
	}

	if err := s.registry.Leave(ctx, roomID, clientID); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldClientID, clientID).
			Msg("registry leave failed")
	}

	s.broadcast(ctx, roomID, domain.UserLeftEvent{
		Type:      domain.EventUserLeft,
		ClientID:  clientID,
		Username:  removed.Username(),
		Timestamp: now(),
	})

	audit.Log(ctx, audit.ActionLeaveRoom, clientID, roomID, "client disconnected")
}

// HandleInbound dispatches one raw frame from a client. Frames that do
// not decode or carry an unknown kind are dropped without a reply.
func (s *ChatService) HandleInbound(ctx context.Context, c *hub.Client, payload []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("undecodable frame dropped")
		return
	}

	switch base.Type {
	case domain.EventMessage:
		var ev domain.MessageEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		s.handleMessage(ctx, c, ev)
	case domain.EventTyping:
		var ev domain.TypingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		s.handleTyping(ctx, c, ev)
	case domain.EventLanguageChange:
		var ev domain.LanguageChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		s.handleLanguageChange(ctx, c, ev)
	default:
		log.Ctx(ctx).Debug().
			Str(log.FieldClientID, c.ID).
			Str("event_type", base.Type).
			Msg("unknown event kind ignored")
	}
}

// handleMessage translates the text for every other language in the
// room, appends the envelope to history, and fans it out locally.
func (s *ChatService) handleMessage(ctx context.Context, c *hub.Client, ev domain.MessageEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	senderLang := c.Language()
	targets, err := s.registry.LanguagesInUse(ctx, c.RoomID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, c.RoomID).
			Msg("language lookup failed, using local view")
		targets = s.hub.Languages(c.RoomID)
	}

	translations := make(map[string]string, len(targets))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		if target == senderLang {
			continue
		}
		g.Go(func() error {
			translated := s.translator.Translate(gctx, text, target, senderLang, c.ID)
			mu.Lock()
			translations[target] = translated
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	env := domain.Envelope{
		SenderID:       c.ID,
		Username:       c.Username(),
		OriginalText:   text,
		SenderLanguage: senderLang,
		Translations:   translations,
		Timestamp:      now(),
	}

	if err := s.registry.AppendHistory(ctx, c.RoomID, env); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, c.RoomID).
			Msg("history append failed, message delivered without persistence")
	}

	audit.Log(ctx, audit.ActionSendMessage, c.ID, c.RoomID, "message relayed")

	s.broadcast(ctx, c.RoomID, domain.ChatBroadcastEvent{
		Type:           domain.EventMessage,
		ClientID:       env.SenderID,
		Username:       env.Username,
		OriginalText:   env.OriginalText,
		SenderLanguage: env.SenderLanguage,
		Translations:   env.Translations,
		Timestamp:      env.Timestamp,
	})
}

// handleTyping relays the indicator to everyone else in the room.
func (s *ChatService) handleTyping(ctx context.Context, c *hub.Client, ev domain.TypingEvent) {
	s.broadcast(ctx, c.RoomID, domain.TypingBroadcastEvent{
		Type:      domain.EventTyping,
		ClientID:  c.ID,
		Username:  c.Username(),
		IsTyping:  ev.IsTyping,
		Timestamp: now(),
	}, c.ID)
}

// handleLanguageChange updates local and shared state, then tells the
// room. Future messages translate into the new language immediately.
func (s *ChatService) handleLanguageChange(ctx context.Context, c *hub.Client, ev domain.LanguageChangeEvent) {
	lang := strings.TrimSpace(ev.Language)
	if lang == "" {
		return
	}

	c.SetLanguage(lang)
	if err := s.registry.ChangeLanguage(ctx, c.RoomID, c.ID, lang); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, c.RoomID).
			Str(log.FieldClientID, c.ID).
			Msg("language change not persisted")
	}

	audit.LogWithDetail(ctx, audit.ActionChangeLanguage, c.ID, c.RoomID, lang, "language changed")

	s.broadcast(ctx, c.RoomID, domain.LanguageChangedEvent{
		Type:      domain.EventLanguageChanged,
		ClientID:  c.ID,
		Username:  c.Username(),
		Language:  lang,
		Timestamp: now(),
	})
}

// replayHistory sends the recent envelopes, oldest first, only to the
// client that just connected.
func (s *ChatService) replayHistory(ctx context.Context, c *hub.Client) {
	history, err := s.registry.RecentHistory(ctx, c.RoomID, 0)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldRoomID, c.RoomID).
			Msg("history replay skipped")
		return
	}
	if len(history) == 0 {
		return
	}

	// Stored newest-first; the client wants chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	payload, err := json.Marshal(domain.HistoryEvent{
		Type:     domain.EventHistory,
		Messages: history,
	})
	if err != nil {
		return
	}
	if err := c.Send(payload); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("history delivery failed")
	}
}

// broadcast marshals the event, fans it out, and disconnects every
// client that could not take the payload after the pass is complete.
func (s *ChatService) broadcast(ctx context.Context, roomID string, event interface{}, exclude ...string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("event marshal failed")
		return
	}

	failed := s.hub.Broadcast(roomID, payload, exclude...)
	for _, fc := range failed {
		log.Ctx(ctx).Warn().
			Str(log.FieldRoomID, roomID).
			Str(log.FieldClientID, fc.ID).
			Msg("delivery failed, disconnecting client")
		s.Disconnect(ctx, roomID, fc.ID)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
