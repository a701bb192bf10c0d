package service

import (
	"context"

	"bhabo/internal/models"
	"bhabo/internal/repository"
)

// ProfileService handles profile pages, edits and the follow graph.
type ProfileService struct {
	store *repository.Store
}

// NewProfileService creates a ProfileService.
func NewProfileService(store *repository.Store) *ProfileService {
	return &ProfileService{store: store}
}

// ProfileView is the assembled profile page: the public user, their posts in
// compact form and the viewer's relationship to them.
type ProfileView struct {
	User           *models.PublicUser   `json:"user"`
	Posts          []models.PostSummary `json:"posts"`
	FollowersCount int                  `json:"followersCount"`
	FollowingCount int                  `json:"followingCount"`
	IsFollowing    bool                 `json:"isFollowing"`
}

// PublicProfile assembles the profile page for handle as seen by viewerID.
func (s *ProfileService) PublicProfile(ctx context.Context, viewerID, handle string) (*ProfileView, error) {
	user, err := s.store.Users.GetByHandle(ctx, handle)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", handle)
	}

	posts, err := s.store.Posts.ListByAuthor(ctx, user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	summaries := make([]models.PostSummary, 0, len(posts))
	for _, p := range posts {
		summaries = append(summaries, p.Summarize())
	}

	isFollowing := false
	for _, f := range user.Followers {
		if f == viewerID {
			isFollowing = true
			break
		}
	}

	return &ProfileView{
		User:           user.Public(),
		Posts:          summaries,
		FollowersCount: len(user.Followers),
		FollowingCount: len(user.Following),
		IsFollowing:    isFollowing,
	}, nil
}

// UpdateProfile applies a partial profile edit and returns the fresh public view.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd repository.ProfileUpdate) (*models.PublicUser, error) {
	user, err := s.store.Users.UpdateProfileFields(ctx, userID, upd)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", userID)
	}
	return user.Public(), nil
}

// ToggleFollow follows targetHandle when not yet followed and unfollows it
// otherwise. Both sides of the edge are kept in step. Returns whether the
// viewer follows the target afterwards.
func (s *ProfileService) ToggleFollow(ctx context.Context, followerID, targetHandle string) (bool, error) {
	target, err := s.store.Users.GetByHandle(ctx, targetHandle)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if target == nil {
		return false, models.NewNotFoundError("user", targetHandle)
	}
	if target.ID == followerID {
		return false, models.NewValidationError("you cannot follow yourself")
	}

	following := false
	for _, f := range target.Followers {
		if f == followerID {
			following = true
			break
		}
	}

	if following {
		if err := s.store.Users.RemoveFollower(ctx, target.ID, followerID); err != nil {
			return false, models.NewInternalError(err)
		}
		if err := s.store.Users.RemoveFollowing(ctx, followerID, target.ID); err != nil {
			return false, models.NewInternalError(err)
		}
		return false, nil
	}

	if err := s.store.Users.AddFollower(ctx, target.ID, followerID); err != nil {
		return false, models.NewInternalError(err)
	}
	if err := s.store.Users.AddFollowing(ctx, followerID, target.ID); err != nil {
		return false, models.NewInternalError(err)
	}
	return true, nil
}
