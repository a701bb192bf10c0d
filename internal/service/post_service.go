package service

import (
	"context"
	"path/filepath"
	"strings"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"github.com/spf13/afero"
)

// PostService handles posts, likes and comments. It also owns the uploaded
// media files a post may reference.
type PostService struct {
	store     *repository.Store
	fs        afero.Fs
	uploadDir string
}

// NewPostService creates a PostService. fs and uploadDir locate the media
// files referenced by post image URLs.
func NewPostService(store *repository.Store, fs afero.Fs, uploadDir string) *PostService {
	return &PostService{store: store, fs: fs, uploadDir: uploadDir}
}

// Create publishes a post. A post needs text, media, or both.
func (s *PostService) Create(ctx context.Context, userID, content, imageURL string) (*models.Post, error) {
	if strings.TrimSpace(content) == "" && imageURL == "" {
		return nil, models.NewValidationError("post must have content or media")
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", userID)
	}

	post := &models.Post{
		UserID:   user.ID,
		Username: user.Username,
		Content:  strings.TrimSpace(content),
		ImageURL: imageURL,
	}
	created, err := s.store.Posts.Create(ctx, user.Username, post)
	if err != nil {
		return nil, err
	}
	created.Author = user.Summary()
	return created, nil
}

// Get returns one post.
func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.store.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if post == nil {
		return nil, models.NewNotFoundError("post", id)
	}
	return post, nil
}

// ListByUser returns a user's posts newest-first.
func (s *PostService) ListByUser(ctx context.Context, handle string) ([]*models.Post, error) {
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
	return posts, nil
}

// Feed assembles the viewer's paginated feed.
func (s *PostService) Feed(ctx context.Context, viewerID string, skip, limit int) ([]*models.Post, error) {
	posts, err := s.store.Posts.Feed(ctx, viewerID, skip, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ToggleLike likes the post when the user has not liked it yet and removes
// the like otherwise. Returns the updated post.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	post, err := s.store.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if post == nil {
		return nil, models.NewNotFoundError("post", postID)
	}

	var updated *models.Post
	if post.LikedBy(userID) {
		updated, err = s.store.Posts.Unlike(ctx, postID, userID)
	} else {
		updated, err = s.store.Posts.Like(ctx, postID, userID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if updated == nil {
		return nil, models.NewNotFoundError("post", postID)
	}
	return updated, nil
}

// AddComment appends a comment to the post.
func (s *PostService) AddComment(ctx context.Context, postID, userID, text string) (*models.Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewValidationError("comment text is required")
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", userID)
	}

	comment := models.Comment{
		UserID:   user.ID,
		Username: user.Username,
		Text:     strings.TrimSpace(text),
	}
	post, err := s.store.Posts.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if post == nil {
		return nil, models.NewNotFoundError("post", postID)
	}
	return post, nil
}

// Comments returns the post's comments oldest-first.
func (s *PostService) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments, err := s.store.Posts.ListComments(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// Delete removes the caller's own post and, best effort, its media file.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if user == nil {
		return models.NewNotFoundError("user", userID)
	}
	post, err := s.store.Posts.GetByID(ctx, postID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if post == nil {
		return models.NewNotFoundError("post", postID)
	}
	if post.UserID != user.ID {
		return models.NewForbiddenError("you can only delete your own posts")
	}

	deleted, err := s.store.Posts.Delete(ctx, postID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !deleted {
		return models.NewNotFoundError("post", postID)
	}

	// The post is gone either way; a stale media file is only worth a log line.
	if post.ImageURL != "" {
		// Media is served at /uploads/<subdir>/<name> and stored at the
		// matching path under the upload dir.
		rel := strings.TrimPrefix(post.ImageURL, "/uploads/")
		if err := s.fs.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(rel))); err != nil {
			observability.GlobalLogger.Warn("removing post media",
				"post_id", postID, "file", rel, "error", err.Error())
		}
	}
	return nil
}
