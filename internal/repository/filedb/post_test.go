package filedb

import (
	"context"
	"testing"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuthor(t *testing.T, store *repository.Store, handle string) *models.User {
	t.Helper()
	user, err := store.Users.Create(context.Background(), newTestUser(handle, models.GenderOther))
	require.NoError(t, err)
	return user
}

func seedPost(t *testing.T, store *repository.Store, author, content, imageURL string) *models.Post {
	t.Helper()
	post, err := store.Posts.Create(context.Background(), author, &models.Post{
		UserID:   author,
		Username: author,
		Content:  content,
		ImageURL: imageURL,
	})
	require.NoError(t, err)
	return post
}

func TestPostRoundTrip(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "writer")
	created := seedPost(t, store, "writer", "first post", "")
	assert.NotEmpty(t, created.ID)
	assert.NotNil(t, created.Likes)
	assert.NotNil(t, created.Comments)

	got, err := store.Posts.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first post", got.Content)
	assert.Equal(t, "writer", got.UserID)
	require.NotNil(t, got.Author)
	assert.Equal(t, "writer", got.Author.Username)

	missing, err := store.Posts.GetByID(ctx, "no-such-post")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByAuthorNewestFirst(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "prolific")
	first := seedPost(t, store, "prolific", "older", "")
	time.Sleep(2 * time.Millisecond)
	second := seedPost(t, store, "prolific", "newer", "")

	posts, err := store.Posts.ListByAuthor(ctx, "prolific")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestLikeUnlikeIdempotent(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "liked")
	post := seedPost(t, store, "liked", "like me", "")

	for i := 0; i < 3; i++ {
		updated, err := store.Posts.Like(ctx, post.ID, "fan")
		require.NoError(t, err)
		assert.Equal(t, []string{"fan"}, updated.Likes)
	}

	updated, err := store.Posts.Unlike(ctx, post.ID, "fan")
	require.NoError(t, err)
	assert.Empty(t, updated.Likes)

	// Unliking again stays empty.
	updated, err = store.Posts.Unlike(ctx, post.ID, "fan")
	require.NoError(t, err)
	assert.Empty(t, updated.Likes)

	absent, err := store.Posts.Like(ctx, "no-such-post", "fan")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestCommentsOrderedWithAuthors(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "op")
	commenter := seedAuthor(t, store, "replier")
	post := seedPost(t, store, "op", "discuss", "")

	for _, text := range []string{"first", "second"} {
		_, err := store.Posts.AddComment(ctx, post.ID, models.Comment{
			UserID:   commenter.ID,
			Username: commenter.Username,
			Text:     text,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	comments, err := store.Posts.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)
	assert.NotEmpty(t, comments[0].ID)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "replier", comments[0].Author.Username)

	// Comments of a missing post are an empty list, not an error.
	none, err := store.Posts.ListComments(ctx, "no-such-post")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "owner")
	post := seedPost(t, store, "owner", "ephemeral", "")

	deleted, err := store.Posts.Delete(ctx, post.ID, "owner")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := store.Posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = store.Posts.Delete(ctx, post.ID, "owner")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSearchMatchesImagePostsRegardlessOfQuery(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "mixed")
	seedPost(t, store, "mixed", "a plain text post about dogs", "")
	withImage := seedPost(t, store, "mixed", "nothing relevant", "/uploads/posts/pic.png")

	results, err := store.Posts.Search(ctx, "dogs")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// A query matching nothing still surfaces every image post.
	results, err = store.Posts.Search(ctx, "qqqqq")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, withImage.ID, results[0].ID)
}

func TestFeedFollowingFilter(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	viewer := seedAuthor(t, store, "viewer")
	seedAuthor(t, store, "friend")
	seedAuthor(t, store, "stranger")
	seedPost(t, store, "friend", "from friend", "")
	seedPost(t, store, "stranger", "from stranger", "")

	// With no follows the feed is everyone.
	feed, err := store.Posts.Feed(ctx, viewer.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, feed, 2)

	require.NoError(t, store.Users.AddFollowing(ctx, viewer.ID, "friend"))
	feed, err = store.Posts.Feed(ctx, viewer.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "friend", feed[0].UserID)
	require.NotNil(t, feed[0].Author)
}

func TestFeedBlockedFilter(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	viewer := seedAuthor(t, store, "viewer")
	seedAuthor(t, store, "pest")
	seedAuthor(t, store, "fine")
	seedPost(t, store, "pest", "noise", "")
	seedPost(t, store, "fine", "signal", "")

	require.NoError(t, store.Users.Block(ctx, viewer.ID, "pest"))

	feed, err := store.Posts.Feed(ctx, viewer.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "fine", feed[0].UserID)
}

func TestFeedPagination(t *testing.T) {
	t.Parallel()
	store, _ := openTestStore(t)
	ctx := context.Background()

	viewer := seedAuthor(t, store, "viewer")
	seedAuthor(t, store, "busy")
	var ids []string
	for i := 0; i < 5; i++ {
		p := seedPost(t, store, "busy", "post", "")
		ids = append(ids, p.ID)
		time.Sleep(2 * time.Millisecond)
	}

	// Newest-first: skip the two newest, take the next two.
	feed, err := store.Posts.Feed(ctx, viewer.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, ids[2], feed[0].ID)
	assert.Equal(t, ids[1], feed[1].ID)

	// skip beyond the end is an empty page.
	feed, err = store.Posts.Feed(ctx, viewer.ID, 99, 2)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestMalformedPostSkipped(t *testing.T) {
	t.Parallel()
	store, fs := openTestStore(t)
	ctx := context.Background()

	seedAuthor(t, store, "author")
	good := seedPost(t, store, "author", "good", "")
	require.NoError(t, afero.WriteFile(fs, "/data/posts/author/bad.json", []byte("{oops"), 0o644))

	posts, err := store.Posts.ListByAuthor(ctx, "author")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, good.ID, posts[0].ID)
}
