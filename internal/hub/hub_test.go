package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.Outbound():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestAddAndBroadcast(t *testing.T) {
	h := New()
	a := NewClient("a", "room-1", "en", "Alice", 8)
	b := NewClient("b", "room-1", "es", "Bob", 8)
	other := NewClient("c", "room-2", "en", "Carol", 8)
	h.Add(a)
	h.Add(b)
	h.Add(other)

	failed := h.Broadcast("room-1", []byte("hello"))
	assert.Empty(t, failed)

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(other), "other rooms must not receive the payload")
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := New()
	a := NewClient("a", "room-1", "en", "Alice", 8)
	b := NewClient("b", "room-1", "es", "Bob", 8)
	h.Add(a)
	h.Add(b)

	failed := h.Broadcast("room-1", []byte("typing"), "a")
	assert.Empty(t, failed)
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestBroadcastCollectsFailures(t *testing.T) {
	h := New()
	stuck := NewClient("stuck", "room-1", "en", "Alice", 1)
	ok := NewClient("ok", "room-1", "es", "Bob", 8)
	h.Add(stuck)
	h.Add(ok)

	require.NoError(t, stuck.Send([]byte("fill")))

	failed := h.Broadcast("room-1", []byte("hello"))
	require.Len(t, failed, 1)
	assert.Equal(t, "stuck", failed[0].ID)
	// Healthy clients still got the payload.
	assert.Len(t, drain(ok), 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := New()
	a := NewClient("a", "room-1", "en", "Alice", 8)
	h.Add(a)

	removed := h.Remove("room-1", "a")
	require.NotNil(t, removed)
	assert.Nil(t, h.Remove("room-1", "a"))
	assert.Nil(t, h.Get("room-1", "a"))
	assert.Zero(t, h.LocalCount())

	// Closed client refuses further sends.
	assert.ErrorIs(t, a.Send([]byte("x")), ErrClientGone)
}

func TestAddReplacesExistingClient(t *testing.T) {
	h := New()
	old := NewClient("a", "room-1", "en", "Alice", 8)
	h.Add(old)

	fresh := NewClient("a", "room-1", "en", "Alice", 8)
	h.Add(fresh)

	assert.Same(t, fresh, h.Get("room-1", "a"))
	assert.ErrorIs(t, old.Send([]byte("x")), ErrClientGone)
	assert.Equal(t, 1, h.LocalCount())
}

func TestLanguages(t *testing.T) {
	h := New()
	h.Add(NewClient("a", "room-1", "en", "Alice", 8))
	h.Add(NewClient("b", "room-1", "es", "Bob", 8))
	h.Add(NewClient("c", "room-1", "en", "Carol", 8))

	assert.ElementsMatch(t, []string{"en", "es"}, h.Languages("room-1"))
	assert.Empty(t, h.Languages("room-9"))
}

func TestSetLanguage(t *testing.T) {
	h := New()
	a := NewClient("a", "room-1", "en", "Alice", 8)
	h.Add(a)

	a.SetLanguage("fr")
	assert.Equal(t, "fr", a.Language())
	assert.ElementsMatch(t, []string{"fr"}, h.Languages("room-1"))
}

func TestCloseTwiceIsSafe(t *testing.T) {
	a := NewClient("a", "room-1", "en", "Alice", 8)
	a.Close()
	a.Close()
	assert.ErrorIs(t, a.Send([]byte("x")), ErrClientGone)
}
