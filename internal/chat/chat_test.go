package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the engine's notion of now.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine() (*Engine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	e := NewEngine(DefaultLimits())
	e.now = clock.now
	return e, clock
}

func TestHandleText(t *testing.T) {
	e, _ := newTestEngine()

	msg, err := e.HandleText("u1", "Alice", "hello room")
	require.NoError(t, err)
	assert.Equal(t, KindText, msg.Kind)
	assert.Equal(t, "hello room", msg.Content)
	assert.Equal(t, "u1", msg.AuthorID)
	assert.NotEmpty(t, msg.ID)
	assert.Len(t, e.Messages(), 1)
}

func TestHandleText_RateLimited(t *testing.T) {
	e, clock := newTestEngine()

	_, err := e.HandleText("u1", "Alice", "first")
	require.NoError(t, err)

	_, err = e.HandleText("u1", "Alice", "too fast")
	assert.Equal(t, ErrRateLimited, err)

	// A different user is not affected.
	_, err = e.HandleText("u2", "Bob", "hello")
	assert.NoError(t, err)

	clock.advance(DefaultLimits().MessageInterval)
	_, err = e.HandleText("u1", "Alice", "ok now")
	assert.NoError(t, err)
}

func TestHandleText_Rejections(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.HandleText("u1", "Alice", "   ")
	assert.Equal(t, ErrInvalidMessage, err)

	_, err = e.HandleText("u1", "Alice", strings.Repeat("x", DefaultLimits().MaxMessageLength+1))
	assert.Equal(t, ErrMessageTooLong, err)
}

func TestHistoryCap_EvictsOldestFirst(t *testing.T) {
	e, clock := newTestEngine()

	for i := 0; i < 150; i++ {
		_, err := e.HandleText("u1", "Alice", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		clock.advance(time.Second)
	}

	msgs := e.Messages()
	require.Len(t, msgs, 100)
	assert.Equal(t, "message 50", msgs[0].Content)
	assert.Equal(t, "message 149", msgs[99].Content)
}

func TestHandleQuick(t *testing.T) {
	e, _ := newTestEngine()

	msg, err := e.HandleQuick("u1", "Alice", "gg")
	require.NoError(t, err)
	assert.Equal(t, KindQuick, msg.Kind)
	assert.Equal(t, "Good game!", msg.Content)

	_, err = e.HandleQuick("u2", "Bob", "not-a-preset")
	assert.Equal(t, ErrInvalidMessage, err)
}

func TestCreateSystem_BypassesRateLimit(t *testing.T) {
	e, _ := newTestEngine()

	for i := 0; i < 5; i++ {
		msg := e.CreateSystem("Alice joined the room")
		assert.Equal(t, SystemAuthorID, msg.AuthorID)
		assert.Equal(t, KindSystem, msg.Kind)
	}
	assert.Len(t, e.Messages(), 5)
}

func TestHandleReaction(t *testing.T) {
	e, _ := newTestEngine()
	msg, err := e.HandleText("u1", "Alice", "nice dice")
	require.NoError(t, err)

	updated, err := e.HandleReaction("u2", msg.ID, "fire", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, updated.Reactions["fire"])

	// Adding twice is idempotent.
	updated, err = e.HandleReaction("u2", msg.ID, "fire", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, updated.Reactions["fire"])

	updated, err = e.HandleReaction("u2", msg.ID, "fire", true)
	require.NoError(t, err)
	assert.Empty(t, updated.Reactions["fire"])
}

func TestHandleReaction_Rejections(t *testing.T) {
	e, _ := newTestEngine()
	msg, err := e.HandleText("u1", "Alice", "hello")
	require.NoError(t, err)

	_, err = e.HandleReaction("u2", msg.ID, "not-a-token", false)
	assert.Equal(t, ErrInvalidMessage, err)

	_, err = e.HandleReaction("u2", "missing-id", "fire", false)
	assert.Equal(t, ErrMessageNotFound, err)
}

func TestHandleReaction_WindowLimit(t *testing.T) {
	e, clock := newTestEngine()
	msg, err := e.HandleText("u1", "Alice", "hello")
	require.NoError(t, err)

	limit := DefaultLimits().ReactionsPerWindow
	for i := 0; i < limit; i++ {
		_, err := e.HandleReaction("u2", msg.ID, "dice", i%2 == 1)
		require.NoError(t, err)
	}

	_, err = e.HandleReaction("u2", msg.ID, "dice", false)
	assert.Equal(t, ErrRateLimited, err)

	clock.advance(DefaultLimits().ReactionWindow)
	_, err = e.HandleReaction("u2", msg.ID, "dice", false)
	assert.NoError(t, err, "window slides")
}

func TestTyping(t *testing.T) {
	e, clock := newTestEngine()

	assert.True(t, e.TypingStart("u1"))
	assert.False(t, e.TypingStart("u1"), "typing updates are throttled")
	assert.Contains(t, e.ActiveTypers(), "u1")

	clock.advance(DefaultLimits().TypingTimeout + time.Second)
	assert.Empty(t, e.ActiveTypers(), "typing state expires")

	assert.True(t, e.TypingStart("u1"))
	e.TypingStop("u1")
	assert.Empty(t, e.ActiveTypers())
}

func TestPersistenceRoundTrip(t *testing.T) {
	e, clock := newTestEngine()
	_, err := e.HandleText("u1", "Alice", "persist me")
	require.NoError(t, err)
	clock.advance(time.Second)
	_, err = e.HandleQuick("u1", "Alice", "gl")
	require.NoError(t, err)

	msgs, err := e.MarshalMessages()
	require.NoError(t, err)
	rates, err := e.MarshalRateStates()
	require.NoError(t, err)

	restored := NewEngine(DefaultLimits())
	restored.now = clock.now
	require.NoError(t, restored.UnmarshalMessages(msgs))
	require.NoError(t, restored.UnmarshalRateStates(rates))

	assert.Len(t, restored.Messages(), 2)
	assert.Equal(t, "persist me", restored.Messages()[0].Content)

	// Restored rate state still throttles.
	_, err = restored.HandleText("u1", "Alice", "again")
	assert.Equal(t, ErrRateLimited, err)
}
