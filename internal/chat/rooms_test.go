package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(id, room string) Message {
	return Message{ID: id, Room: room, User: "Alice", Text: "hello", Type: MessageTypeText, CreatedAt: testEpoch}
}

func TestRoomStore_DefaultRooms(t *testing.T) {
	store := NewRoomStore(0)

	summaries := store.Summaries()
	require.Len(t, summaries, 4)
	for i, id := range []string{"general", "development", "design", "random"} {
		assert.Equal(t, id, summaries[i].ID)
		assert.Equal(t, id, summaries[i].Name)
		assert.Zero(t, summaries[i].MessageCount)
		assert.Nil(t, summaries[i].LastMessage)
	}
}

func TestRoomStore_Find(t *testing.T) {
	store := NewRoomStore(0)

	room, ok := store.Find("design")
	require.True(t, ok)
	assert.Equal(t, "design", room.ID)
	assert.NotNil(t, room.Messages)

	_, ok = store.Find("nonexistent")
	assert.False(t, ok)
}

func TestRoomStore_AppendKeepsMostRecent(t *testing.T) {
	tests := []struct {
		name  string
		total int
	}{
		{name: "empty", total: 0},
		{name: "single", total: 1},
		{name: "just below limit", total: 99},
		{name: "at limit", total: 100},
		{name: "one over limit", total: 101},
		{name: "far over limit", total: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewRoomStore(MaxHistory)
			for i := 0; i < tt.total; i++ {
				require.NoError(t, store.Append(textMessage(fmt.Sprintf("m%d", i), "general")))
			}

			history, ok := store.Snapshot("general")
			require.True(t, ok)

			want := min(tt.total, MaxHistory)
			require.Len(t, history, want)
			first := tt.total - want
			for i, msg := range history {
				assert.Equal(t, fmt.Sprintf("m%d", first+i), msg.ID)
				assert.Equal(t, "general", msg.Room)
			}
		})
	}
}

func TestRoomStore_AppendUnknownRoom(t *testing.T) {
	store := NewRoomStore(0)

	err := store.Append(textMessage("m1", "nonexistent"))
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Zero(t, store.TotalMessages())
}

func TestRoomStore_RoomsAreIndependent(t *testing.T) {
	store := NewRoomStore(2)
	require.NoError(t, store.Append(textMessage("g1", "general")))
	require.NoError(t, store.Append(textMessage("r1", "random")))
	require.NoError(t, store.Append(textMessage("g2", "general")))
	require.NoError(t, store.Append(textMessage("g3", "general")))

	general, _ := store.Snapshot("general")
	random, _ := store.Snapshot("random")
	assert.Equal(t, []string{"g2", "g3"}, ids(general))
	assert.Equal(t, []string{"r1"}, ids(random))
	assert.Equal(t, 3, store.TotalMessages())
}

func TestRoomStore_SnapshotIsCopy(t *testing.T) {
	store := NewRoomStore(0)
	require.NoError(t, store.Append(textMessage("m1", "general")))

	history, _ := store.Snapshot("general")
	history[0].Text = "tampered"

	again, _ := store.Snapshot("general")
	assert.Equal(t, "hello", again[0].Text)
}

func TestRoomStore_SummariesLastMessage(t *testing.T) {
	store := NewRoomStore(0)
	require.NoError(t, store.Append(textMessage("m1", "development")))
	require.NoError(t, store.Append(textMessage("m2", "development")))

	var dev RoomSummary
	for _, s := range store.Summaries() {
		if s.ID == "development" {
			dev = s
		}
	}
	assert.Equal(t, 2, dev.MessageCount)
	require.NotNil(t, dev.LastMessage)
	assert.Equal(t, "m2", dev.LastMessage.ID)
}

func TestRoomStore_CustomRooms(t *testing.T) {
	store := NewRoomStore(10, "lobby", "lobby", "ops")

	summaries := store.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "lobby", summaries[0].ID)
	assert.Equal(t, "ops", summaries[1].ID)
}

func ids(messages []Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func BenchmarkRoomStore_Append(b *testing.B) {
	store := NewRoomStore(MaxHistory)
	msg := textMessage("bench", "general")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Append(msg)
	}
}
