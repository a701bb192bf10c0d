package service

import (
	"context"

	"bhabo/internal/models"
	"bhabo/internal/repository"
)

// Find-friends list sizing: two capped probes per presence bucket, merged
// and deduplicated.
const (
	findFriendsProbe = 5
	findFriendsCap   = 10
)

// SearchService handles global search and friend suggestions.
type SearchService struct {
	store *repository.Store
}

// NewSearchService creates a SearchService.
func NewSearchService(store *repository.Store) *SearchService {
	return &SearchService{store: store}
}

// SearchResults groups a query's matches. Posts are split so the client can
// render a media grid and a text list separately.
type SearchResults struct {
	Users      []*models.PublicUser `json:"users"`
	ImagePosts []*models.Post       `json:"imagePosts"`
	TextPosts  []*models.Post       `json:"textPosts"`
}

// Search matches users by handle or display name and posts by content, both
// as case-insensitive character subsequences.
func (s *SearchService) Search(ctx context.Context, query string) (*SearchResults, error) {
	users, err := s.store.Users.Search(ctx, query)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	posts, err := s.store.Posts.Search(ctx, query)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	results := &SearchResults{
		Users:      users,
		ImagePosts: []*models.Post{},
		TextPosts:  []*models.Post{},
	}
	for _, p := range posts {
		if p.HasMedia() {
			results.ImagePosts = append(results.ImagePosts, p)
		} else {
			results.TextPosts = append(results.TextPosts, p)
		}
	}
	return results, nil
}

// FindFriendsResult holds friend suggestions split by presence.
type FindFriendsResult struct {
	Online  []*models.PublicUser `json:"online"`
	Offline []*models.PublicUser `json:"offline"`
}

// FindFriends suggests people to meet, split into online and offline
// buckets. Each bucket is filled by two probes: first users of the opposite
// gender to the viewer, then anyone, deduplicated and capped.
func (s *SearchService) FindFriends(ctx context.Context, viewerID string) (*FindFriendsResult, error) {
	viewer, err := s.store.Users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if viewer == nil {
		return nil, models.NewNotFoundError("user", viewerID)
	}

	online, err := s.bucket(ctx, viewer, true)
	if err != nil {
		return nil, err
	}
	offline, err := s.bucket(ctx, viewer, false)
	if err != nil {
		return nil, err
	}
	return &FindFriendsResult{Online: online, Offline: offline}, nil
}

func (s *SearchService) bucket(ctx context.Context, viewer *models.User, online bool) ([]*models.PublicUser, error) {
	list := func(gender models.Gender) ([]*models.PublicUser, error) {
		if online {
			return s.store.Users.ListOnline(ctx, viewer.ID, gender, findFriendsProbe)
		}
		return s.store.Users.ListOffline(ctx, viewer.ID, gender, findFriendsProbe)
	}

	// The repository interprets the filter as "opposite gender of", so the
	// viewer's own gender selects their complement.
	preferred, err := list(viewer.Gender)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	anyone, err := list(models.GenderOther)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	seen := map[string]struct{}{}
	merged := []*models.PublicUser{}
	for _, u := range append(preferred, anyone...) {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		merged = append(merged, u)
		if len(merged) == findFriendsCap {
			break
		}
	}
	return merged, nil
}
