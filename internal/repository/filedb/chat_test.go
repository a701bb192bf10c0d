package filedb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChatUsers(t *testing.T, store *repository.Store, handles ...string) {
	t.Helper()
	for _, h := range handles {
		_, err := store.Users.Create(context.Background(), newTestUser(h, models.GenderOther))
		require.NoError(t, err)
	}
}

func TestGetOrCreateIdentity(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	first, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, []string{"alice", "bob"}, first.Participants)

	// The reversed pair resolves to the same chat.
	second, err := store.Chats.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAppendMessageUpdatesSnapshot(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", "hello there", models.MessageText, "")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Read)

	got, err := store.Chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "hello there", got.LastMessage.Content)
	assert.Equal(t, "alice", got.LastMessage.Sender)
	assert.False(t, got.LastMessage.Read)
	assert.Len(t, got.ParticipantUsers, 2)
}

func TestAppendMediaMessagePlaceholderPreview(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	cases := []struct {
		typ  models.MessageType
		want string
	}{
		{models.MessageImage, "Image"},
		{models.MessageVideo, "Video"},
		{models.MessageVoice, "Voice Message"},
	}
	for _, tc := range cases {
		_, err := store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", "", tc.typ, "/uploads/chat/x")
		require.NoError(t, err)
		got, err := store.Chats.GetByID(ctx, chat.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastMessage)
		assert.Equal(t, tc.want, got.LastMessage.Content)
		assert.Equal(t, tc.typ, got.LastMessage.Type)
	}
}

func TestListMessagesBackwardWindow(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		_, err := store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", fmt.Sprintf("m%d", i), models.MessageText, "")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	// Skip the two newest, then a window of three just below them.
	msgs, err := store.Chats.ListMessages(ctx, chat.ID, 2, 3, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m6", msgs[0].Content)
	assert.Equal(t, "m7", msgs[1].Content)
	assert.Equal(t, "m8", msgs[2].Content)

	// A limit larger than the history returns everything oldest-first.
	all, err := store.Chats.ListMessages(ctx, chat.ID, 0, 20, nil)
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, "m1", all[0].Content)
	assert.Equal(t, "m10", all[9].Content)

	// Skipping past the start yields an empty page.
	empty, err := store.Chats.ListMessages(ctx, chat.ID, 50, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// So does a non-positive limit.
	empty, err = store.Chats.ListMessages(ctx, chat.ID, 0, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	empty, err = store.Chats.ListMessages(ctx, chat.ID, 2, -1, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListMessagesSince(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	var cutoff time.Time
	for i := 1; i <= 6; i++ {
		msg, err := store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", fmt.Sprintf("m%d", i), models.MessageText, "")
		require.NoError(t, err)
		if i == 4 {
			cutoff = msg.Timestamp
		}
		time.Sleep(2 * time.Millisecond)
	}

	// since ignores skip and limit and returns only strictly newer messages.
	msgs, err := store.Chats.ListMessages(ctx, chat.ID, 99, 1, &cutoff)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m5", msgs[0].Content)
	assert.Equal(t, "m6", msgs[1].Content)
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", "unread", models.MessageText, "")
	require.NoError(t, err)

	require.NoError(t, store.Chats.MarkRead(ctx, chat.ID, "bob"))

	msgs, err := store.Chats.ListMessages(ctx, chat.ID, 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read)

	got, err := store.Chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.True(t, got.LastMessage.Read)
}

func TestMarkReadLeavesSenderSnapshot(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob")
	chat, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = store.Chats.AppendMessage(ctx, chat.ID, "alice", "bob", "for bob", models.MessageText, "")
	require.NoError(t, err)

	// The sender reading their own chat does not flip the preview.
	require.NoError(t, store.Chats.MarkRead(ctx, chat.ID, "alice"))

	got, err := store.Chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.False(t, got.LastMessage.Read)

	msgs, err := store.Chats.ListMessages(ctx, chat.ID, 0, 10, nil)
	require.NoError(t, err)
	assert.False(t, msgs[0].Read)
}

func TestListForUserActivityOrder(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedChatUsers(t, store, "alice", "bob", "carol")
	older, err := store.Chats.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	newer, err := store.Chats.GetOrCreate(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = store.Chats.AppendMessage(ctx, older.ID, "bob", "alice", "old", models.MessageText, "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.Chats.AppendMessage(ctx, newer.ID, "carol", "alice", "new", models.MessageText, "")
	require.NoError(t, err)

	chats, err := store.Chats.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, newer.ID, chats[0].ID)
	assert.Equal(t, older.ID, chats[1].ID)

	// A stranger sees no chats.
	none, err := store.Chats.ListForUser(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetChatMalformedTreatedAsMissing(t *testing.T) {
	t.Parallel()
	store, fs := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fs, "/data/chats/broken.json", []byte("{nope"), 0o644))

	got, err := store.Chats.GetByID(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, got)
}
