package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attach(b *Broadcaster, ids ...string) []*fakeSub {
	subs := make([]*fakeSub, len(ids))
	for i, id := range ids {
		subs[i] = newFakeSub(id)
		b.Attach(subs[i])
	}
	return subs
}

func TestBroadcaster_ToRoomIncludesSender(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b", "c")
	b.Subscribe("a", "general")
	b.Subscribe("b", "general")

	n := b.ToRoom("general", Event{Name: "ping", Data: 1}, IncludeSender("a"))

	assert.Equal(t, 2, n)
	assert.Len(t, subs[0].received(t), 1)
	assert.Len(t, subs[1].received(t), 1)
	assert.Empty(t, subs[2].received(t))
}

func TestBroadcaster_ToRoomExcludesSender(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b")
	b.Subscribe("a", "general")
	b.Subscribe("b", "general")

	n := b.ToRoom("general", Event{Name: "ping"}, ExcludeSender("a"))

	assert.Equal(t, 1, n)
	assert.Empty(t, subs[0].received(t))
	assert.Len(t, subs[1].received(t), 1)
}

func TestBroadcaster_SubscribeIsAdditive(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a")
	b.Subscribe("a", "general")
	b.Subscribe("a", "design")
	b.Subscribe("a", "design")

	b.ToRoom("general", Event{Name: "one"}, IncludeSender(""))
	b.ToRoom("design", Event{Name: "two"}, IncludeSender(""))

	frames := subs[0].received(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "one", frames[0].Event)
	assert.Equal(t, "two", frames[1].Event)
	assert.True(t, b.Subscribed("a", "general"))
	assert.True(t, b.Subscribed("a", "design"))
}

func TestBroadcaster_SubscribeRequiresAttach(t *testing.T) {
	b := NewBroadcaster(discardLogger())

	b.Subscribe("ghost", "general")

	assert.False(t, b.Subscribed("ghost", "general"))
}

func TestBroadcaster_DetachDropsSubscriptions(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b")
	b.Subscribe("a", "general")
	b.Subscribe("a", "random")
	b.Subscribe("b", "general")

	sub, ok := b.Detach("a")
	require.True(t, ok)
	assert.Equal(t, "a", sub.ID())
	assert.False(t, b.Subscribed("a", "general"))
	assert.False(t, b.Subscribed("a", "random"))

	b.ToRoom("general", Event{Name: "after"}, IncludeSender(""))
	b.ToAll(Event{Name: "global"})
	assert.Empty(t, subs[0].received(t))
	assert.Len(t, subs[1].received(t), 2)

	_, ok = b.Detach("a")
	assert.False(t, ok)
	assert.Equal(t, 1, b.Connected())
}

func TestBroadcaster_ToAllReachesEveryConnection(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b", "c")
	b.Subscribe("a", "general")

	n := b.ToAll(Event{Name: "users_update", Data: []User{}})

	assert.Equal(t, 3, n)
	for _, sub := range subs {
		assert.Len(t, sub.named(t, "users_update"), 1)
	}
}

func TestBroadcaster_ToConn(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b")

	assert.True(t, b.ToConn("b", Event{Name: "direct"}))
	assert.False(t, b.ToConn("ghost", Event{Name: "direct"}))

	assert.Empty(t, subs[0].received(t))
	assert.Len(t, subs[1].received(t), 1)
}

func TestBroadcaster_PerRoomOrder(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b", "c")
	for _, sub := range subs {
		b.Subscribe(sub.ID(), "general")
	}

	for i := 0; i < 50; i++ {
		b.ToRoom("general", Event{Name: fmt.Sprintf("e%d", i)}, IncludeSender("a"))
	}

	for _, sub := range subs {
		frames := sub.received(t)
		require.Len(t, frames, 50)
		for i, frame := range frames {
			assert.Equal(t, fmt.Sprintf("e%d", i), frame.Event)
		}
	}
}

func TestBroadcaster_SlowSubscriberIsEvicted(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a", "b")
	b.Subscribe("b", "general")
	subs[1].full = true

	n := b.ToAll(Event{Name: "x"})

	assert.Equal(t, 1, n)
	assert.Len(t, subs[0].received(t), 1)
	assert.Equal(t, 1, b.Connected())
	assert.False(t, b.Subscribed("b", "general"))

	// Later events no longer target it.
	assert.Equal(t, 1, b.ToAll(Event{Name: "y"}))

	evicted := b.TakeEvicted()
	require.Len(t, evicted, 1)
	assert.Equal(t, "b", evicted[0].ID())
	assert.Empty(t, b.TakeEvicted())
}

func TestBroadcaster_DetachAll(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	attach(b, "a", "b")
	b.Subscribe("a", "general")

	subs := b.DetachAll()

	assert.Len(t, subs, 2)
	assert.Zero(t, b.Connected())
	assert.False(t, b.Subscribed("a", "general"))
}

func TestBroadcaster_EventEnvelope(t *testing.T) {
	b := NewBroadcaster(discardLogger())
	subs := attach(b, "a")

	b.ToConn("a", typingNotice(true, "Alice", "general"))

	frames := subs[0].received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "user_typing", frames[0].Event)
	assert.JSONEq(t, `{"user":"Alice","room":"general"}`, string(frames[0].Data))
}
