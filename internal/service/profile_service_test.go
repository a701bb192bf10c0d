package service

import (
	"context"
	"testing"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicProfile(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewProfileService(store)
	ctx := context.Background()

	viewer := seedVerifiedUser(t, store, "viewer", models.GenderFemale)
	target := seedVerifiedUser(t, store, "target", models.GenderMale)

	_, err := store.Posts.Create(ctx, target.Username, &models.Post{
		UserID: target.ID, Username: target.Username, Content: "hello",
	})
	require.NoError(t, err)

	view, err := svc.PublicProfile(ctx, viewer.ID, "target")
	require.NoError(t, err)
	assert.Equal(t, "target", view.User.Username)
	require.Len(t, view.Posts, 1)
	assert.Equal(t, "hello", view.Posts[0].Content)
	assert.False(t, view.IsFollowing)
	assert.Zero(t, view.FollowersCount)

	_, err = svc.PublicProfile(ctx, viewer.ID, "ghost")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestToggleFollowKeepsBothEdges(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewProfileService(store)
	ctx := context.Background()

	follower := seedVerifiedUser(t, store, "follower", models.GenderFemale)
	seedVerifiedUser(t, store, "followee", models.GenderMale)

	following, err := svc.ToggleFollow(ctx, follower.ID, "followee")
	require.NoError(t, err)
	assert.True(t, following)

	a, err := store.Users.GetByHandle(ctx, "follower")
	require.NoError(t, err)
	b, err := store.Users.GetByHandle(ctx, "followee")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, a.Following)
	assert.Equal(t, []string{a.ID}, b.Followers)

	view, err := svc.PublicProfile(ctx, follower.ID, "followee")
	require.NoError(t, err)
	assert.True(t, view.IsFollowing)
	assert.Equal(t, 1, view.FollowersCount)

	// Toggling again removes both edges.
	following, err = svc.ToggleFollow(ctx, follower.ID, "followee")
	require.NoError(t, err)
	assert.False(t, following)

	a, err = store.Users.GetByHandle(ctx, "follower")
	require.NoError(t, err)
	b, err = store.Users.GetByHandle(ctx, "followee")
	require.NoError(t, err)
	assert.Empty(t, a.Following)
	assert.Empty(t, b.Followers)

	view, err = svc.PublicProfile(ctx, follower.ID, "followee")
	require.NoError(t, err)
	assert.False(t, view.IsFollowing)
}

func TestToggleFollowRejectsSelfAndGhosts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewProfileService(store)
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "loner", models.GenderOther)

	_, err := svc.ToggleFollow(ctx, user.ID, "loner")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.ToggleFollow(ctx, user.ID, "ghost")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUpdateProfilePartial(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewProfileService(store)
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "editable", models.GenderFemale)

	bio := "updated bio"
	updated, err := svc.UpdateProfile(ctx, user.ID, repository.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "updated bio", updated.Bio)
	// Untouched fields survive the partial update.
	assert.Equal(t, "Test", updated.FirstName)
	assert.Equal(t, "Test User", updated.DisplayName)
}
