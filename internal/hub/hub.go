// Package hub tracks the WebSocket clients connected to this instance
// and fans payloads out to them. It only ever sees local connections;
// cross-instance state lives in the registry.
package hub

import "sync"

// Hub indexes local clients by room. All methods are safe for
// concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Client)}
}

// Add registers a client under its room. Adding a client whose ID is
// already present replaces and closes the previous one.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.RoomID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[c.RoomID] = room
	}
	prev := room[c.ID]
	room[c.ID] = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		prev.Close()
	}
}

// Remove detaches and closes a client. It returns the removed client,
// or nil when the client was not present, which makes repeated
// disconnects harmless.
func (h *Hub) Remove(roomID, clientID string) *Client {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	c, ok := room[clientID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	c.Close()
	return c
}

// Get returns the local client, or nil.
func (h *Hub) Get(roomID, clientID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID][clientID]
}

// Broadcast delivers the payload to every local client in the room,
// skipping the excluded IDs. Delivery failures never interrupt the
// pass; the clients that could not accept the payload are returned so
// the caller can disconnect them afterwards.
func (h *Hub) Broadcast(roomID string, payload []byte, exclude ...string) []*Client {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if _, ok := skip[id]; ok {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Languages returns the distinct languages of the room's local clients.
// It is the fallback view when the shared registry is unreachable.
func (h *Hub) Languages(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	langs := make([]string, 0, 4)
	for _, c := range h.rooms[roomID] {
		lang := c.Language()
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	return langs
}

// RoomClients returns a snapshot of the room's local clients.
func (h *Hub) RoomClients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	return clients
}

// LocalCount returns the number of clients connected to this instance.
func (h *Hub) LocalCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
