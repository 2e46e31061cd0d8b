// Package registry owns the shared-store view of rooms: membership,
// per-participant metadata, recent history, and usage counters. Any
// instance can read it; writes are last-writer-wins with no locking, so
// every operation is individually idempotent and safe to repeat after a
// partial failure.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Yehonatan-Bar/ear-fish/internal/domain"
	"github.com/Yehonatan-Bar/ear-fish/internal/store"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

const (
	totalMessagesKey    = "total_messages"
	roomStatsKey        = "room_stats"
	popularLanguagesKey = "popular_languages"
	activeRoomsKey      = "active_rooms"

	topN = 10
)

func roomUsersKey(roomID string) string {
	return fmt.Sprintf("room:%s:users", roomID)
}

func roomLanguagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:languages", roomID)
}

func roomHistoryKey(roomID string) string {
	return fmt.Sprintf("room:%s:history", roomID)
}

func roomMessageCountKey(roomID string) string {
	return fmt.Sprintf("room:%s:message_count", roomID)
}

func userKey(clientID string) string {
	return fmt.Sprintf("user:%s", clientID)
}

// Registry is the distributed room registry.
type Registry struct {
	store      store.Store
	instanceID string
	historyMax int
}

// New creates a registry backed by the given store.
func New(s store.Store, instanceID string, historyMax int) *Registry {
	if historyMax <= 0 {
		historyMax = 50
	}
	return &Registry{store: s, instanceID: instanceID, historyMax: historyMax}
}

// Join adds a participant to a room. Calling it twice for the same
// participant overwrites metadata without duplicating membership. Each
// step is attempted even if an earlier one failed, so a crashed or
// degraded join self-heals on the next write.
func (r *Registry) Join(ctx context.Context, roomID, clientID, language, username string) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(r.store.SAdd(ctx, roomUsersKey(roomID), clientID))
	keep(r.store.HSet(ctx, userKey(clientID), map[string]string{
		"language":     language,
		"username":     username,
		"instance_id":  r.instanceID,
		"connected_at": time.Now().UTC().Format(time.RFC3339),
	}))
	keep(r.store.HSet(ctx, roomLanguagesKey(roomID), map[string]string{clientID: language}))
	keep(r.store.SAdd(ctx, activeRoomsKey, roomID))

	// Usage counters are best-effort.
	if err := r.store.ZIncrBy(ctx, roomStatsKey, 1, roomID); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("room stats update skipped")
	}
	if err := r.store.ZIncrBy(ctx, popularLanguagesKey, 1, language); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldLanguage, language).Msg("language stats update skipped")
	}

	if firstErr != nil {
		return fmt.Errorf("join %s/%s: %w", roomID, clientID, firstErr)
	}
	return nil
}

// Leave removes a participant. A participant already absent is a no-op.
// When the last participant leaves, the room's language hash, history, and
// counters are reclaimed.
func (r *Registry) Leave(ctx context.Context, roomID, clientID string) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(r.store.SRem(ctx, roomUsersKey(roomID), clientID))
	keep(r.store.Del(ctx, userKey(clientID)))
	keep(r.store.HDel(ctx, roomLanguagesKey(roomID), clientID))

	remaining, err := r.store.SCard(ctx, roomUsersKey(roomID))
	if err != nil {
		keep(err)
	} else if remaining == 0 {
		keep(r.store.Del(ctx,
			roomLanguagesKey(roomID),
			roomHistoryKey(roomID),
			roomMessageCountKey(roomID),
		))
		keep(r.store.SRem(ctx, activeRoomsKey, roomID))
		l := log.Ctx(ctx)
		l.Info().Str(log.FieldRoomID, roomID).Msg("room reclaimed, no users remaining")
	}

	if firstErr != nil {
		return fmt.Errorf("leave %s/%s: %w", roomID, clientID, firstErr)
	}
	return nil
}

// LanguagesInUse returns the distinct language codes of a room's current
// participants. On store failure the caller falls back to its own local
// knowledge.
func (r *Registry) LanguagesInUse(ctx context.Context, roomID string) ([]string, error) {
	vals, err := r.store.HVals(ctx, roomLanguagesKey(roomID))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(vals))
	langs := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		langs = append(langs, v)
	}
	return langs, nil
}

// ChangeLanguage updates a participant's stored language. The change is
// visible to the next LanguagesInUse call immediately.
func (r *Registry) ChangeLanguage(ctx context.Context, roomID, clientID, language string) error {
	var firstErr error
	if err := r.store.HSet(ctx, roomLanguagesKey(roomID), map[string]string{clientID: language}); err != nil {
		firstErr = err
	}
	if err := r.store.HSet(ctx, userKey(clientID), map[string]string{"language": language}); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return fmt.Errorf("change language %s/%s: %w", roomID, clientID, firstErr)
	}
	return nil
}

// RoomUsers returns participant metadata for everyone in the room.
func (r *Registry) RoomUsers(ctx context.Context, roomID string) (map[string]domain.Participant, error) {
	ids, err := r.store.SMembers(ctx, roomUsersKey(roomID))
	if err != nil {
		return nil, err
	}

	users := make(map[string]domain.Participant, len(ids))
	for _, id := range ids {
		data, err := r.store.HGetAll(ctx, userKey(id))
		if err != nil || len(data) == 0 {
			continue
		}
		users[id] = domain.Participant{
			Language:    data["language"],
			Username:    data["username"],
			InstanceID:  data["instance_id"],
			ConnectedAt: data["connected_at"],
		}
	}
	return users, nil
}

// AppendHistory pushes the envelope to the front of the room's history,
// truncates to the cap, and bumps the message counters. Counter failures
// never fail the append.
func (r *Registry) AppendHistory(ctx context.Context, roomID string, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := r.store.LPush(ctx, roomHistoryKey(roomID), string(data)); err != nil {
		return fmt.Errorf("append history %s: %w", roomID, err)
	}
	if err := r.store.LTrim(ctx, roomHistoryKey(roomID), 0, int64(r.historyMax-1)); err != nil {
		return fmt.Errorf("trim history %s: %w", roomID, err)
	}

	if _, err := r.store.Incr(ctx, totalMessagesKey, 0); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("total message counter skipped")
	}
	if _, err := r.store.Incr(ctx, roomMessageCountKey(roomID), 0); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("room message counter skipped")
	}
	return nil
}

// RecentHistory returns up to limit envelopes, newest first. Entries that
// fail to decode are skipped.
func (r *Registry) RecentHistory(ctx context.Context, roomID string, limit int) ([]domain.Envelope, error) {
	if limit <= 0 {
		limit = r.historyMax
	}
	raw, err := r.store.LRange(ctx, roomHistoryKey(roomID), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}

	envs := make([]domain.Envelope, 0, len(raw))
	for _, item := range raw {
		var env domain.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("skipping undecodable history entry")
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// MessageCount returns the number of messages ever sent in a room.
func (r *Registry) MessageCount(ctx context.Context, roomID string) (int64, error) {
	val, err := r.store.Get(ctx, roomMessageCountKey(roomID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, _ := strconv.ParseInt(val, 10, 64)
	return n, nil
}

// Stats gathers the best-effort global view: top rooms and languages by
// usage and the total message count. A partial result with an error is
// returned when the store is only partly reachable.
func (r *Registry) Stats(ctx context.Context) (domain.RoomStats, error) {
	var stats domain.RoomStats
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	active, err := r.store.SCard(ctx, activeRoomsKey)
	keep(err)
	stats.ActiveRooms = int(active)

	topRooms, err := r.store.ZRevRange(ctx, roomStatsKey, 0, topN-1)
	keep(err)
	stats.TopRooms = make(map[string]float64, len(topRooms))
	for _, m := range topRooms {
		stats.TopRooms[m.Member] = m.Score
	}

	topLangs, err := r.store.ZRevRange(ctx, popularLanguagesKey, 0, topN-1)
	keep(err)
	stats.PopularLanguages = make(map[string]float64, len(topLangs))
	for _, m := range topLangs {
		stats.PopularLanguages[m.Member] = m.Score
	}

	total, err := r.store.Get(ctx, totalMessagesKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		keep(err)
	}
	if total != "" {
		stats.TotalMessages, _ = strconv.ParseInt(total, 10, 64)
	}

	return stats, firstErr
}
