package filedb

import (
	"context"
	"sort"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// postStore keeps one document per post at posts/<authorHandle>/<id>.json.
// Lookups by ID alone scan the author folders; posts carry their author
// handle in UserID so mutations go straight to the right file.
type postStore struct {
	db    *db
	users *userStore
}

var _ repository.PostRepository = (*postStore)(nil)

func (s *postStore) path(author, id string) string {
	return s.db.path("posts", author, id+".json")
}

func (s *postStore) normalize(post *models.Post) {
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
}

// locate finds the post file by scanning author folders. Corrupt documents
// are skipped and logged, which makes an ID whose file is corrupt look
// absent.
func (s *postStore) locate(id string) (*models.Post, string, error) {
	authors, err := s.db.listDirs(s.db.path("posts"))
	if err != nil {
		return nil, "", err
	}
	for _, author := range authors {
		path := s.path(author, id)
		if ok, err := afero.Exists(s.db.fs, path); err != nil || !ok {
			if err != nil {
				return nil, "", err
			}
			continue
		}
		var post models.Post
		if err := s.db.readJSON(path, &post); err != nil {
			s.db.log.SkippedRecord("post", id, err)
			continue
		}
		s.normalize(&post)
		return &post, author, nil
	}
	return nil, "", nil
}

// eachByAuthor decodes every post in one author's folder, skipping corrupt
// documents.
func (s *postStore) eachByAuthor(author string, fn func(*models.Post)) error {
	ids, err := s.db.listDocs(s.db.path("posts", author))
	if err != nil {
		return err
	}
	for _, id := range ids {
		var post models.Post
		if err := s.db.readJSON(s.path(author, id), &post); err != nil {
			s.db.log.SkippedRecord("post", id, err)
			continue
		}
		s.normalize(&post)
		fn(&post)
	}
	return nil
}

// eachPost visits every post of every author.
func (s *postStore) eachPost(fn func(*models.Post)) error {
	authors, err := s.db.listDirs(s.db.path("posts"))
	if err != nil {
		return err
	}
	for _, author := range authors {
		if err := s.eachByAuthor(author, fn); err != nil {
			return err
		}
	}
	return nil
}

// populate attaches the author summary to each post, newest first.
func (s *postStore) populate(posts []*models.Post) {
	summaries := map[string]*models.UserSummary{}
	for _, post := range posts {
		summary, ok := summaries[post.UserID]
		if !ok {
			if author, err := s.users.load(post.UserID); err == nil {
				summary = author.Summary()
			}
			summaries[post.UserID] = summary
		}
		post.Author = summary
	}
}

func sortNewestFirst(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func (s *postStore) Create(ctx context.Context, authorHandle string, post *models.Post) (*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "create")()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.UserID = authorHandle
	s.normalize(post)
	if err := s.db.writeJSON(s.path(authorHandle, post.ID), post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "get")()
	post, _, err := s.locate(id)
	if err != nil || post == nil {
		return nil, err
	}
	s.populate([]*models.Post{post})
	return post, nil
}

func (s *postStore) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "list_by_author")()
	posts := []*models.Post{}
	if err := s.eachByAuthor(authorID, func(p *models.Post) {
		posts = append(posts, p)
	}); err != nil {
		return nil, err
	}
	sortNewestFirst(posts)
	s.populate(posts)
	return posts, nil
}

// mutate locates the post, applies fn and writes it back. Missing posts
// yield (nil, nil).
func (s *postStore) mutate(id string, fn func(*models.Post)) (*models.Post, error) {
	post, author, err := s.locate(id)
	if err != nil || post == nil {
		return nil, err
	}
	fn(post)
	if err := s.db.writeJSON(s.path(author, post.ID), post); err != nil {
		return nil, err
	}
	s.populate([]*models.Post{post})
	return post, nil
}

func (s *postStore) Like(ctx context.Context, id, userID string) (*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "like")()
	return s.mutate(id, func(p *models.Post) {
		if !p.LikedBy(userID) {
			p.Likes = append(p.Likes, userID)
		}
	})
}

func (s *postStore) Unlike(ctx context.Context, id, userID string) (*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "unlike")()
	return s.mutate(id, func(p *models.Post) {
		p.Likes = without(p.Likes, userID)
	})
}

func (s *postStore) AddComment(ctx context.Context, id string, comment models.Comment) (*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "add_comment")()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	return s.mutate(id, func(p *models.Post) {
		p.Comments = append(p.Comments, comment)
	})
}

func (s *postStore) ListComments(ctx context.Context, id string) ([]models.Comment, error) {
	defer observability.ObserveStoreOp("file", "post", "list_comments")()
	post, _, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return []models.Comment{}, nil
	}
	comments := append([]models.Comment{}, post.Comments...)
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	summaries := map[string]*models.UserSummary{}
	for i := range comments {
		summary, ok := summaries[comments[i].UserID]
		if !ok {
			if commenter, err := s.users.load(comments[i].UserID); err == nil {
				summary = commenter.Summary()
			}
			summaries[comments[i].UserID] = summary
		}
		comments[i].Author = summary
	}
	return comments, nil
}

func (s *postStore) Delete(ctx context.Context, id, authorHandle string) (bool, error) {
	defer observability.ObserveStoreOp("file", "post", "delete")()
	path := s.path(authorHandle, id)
	ok, err := afero.Exists(s.db.fs, path)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.db.fs.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}

func (s *postStore) Search(ctx context.Context, query string) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "search")()
	re := repository.FuzzyRegexp(query)
	posts := []*models.Post{}
	if err := s.eachPost(func(p *models.Post) {
		// Every post carrying an image matches regardless of the query.
		if re.MatchString(p.Content) || p.ImageURL != "" {
			posts = append(posts, p)
		}
	}); err != nil {
		return nil, err
	}
	sortNewestFirst(posts)
	s.populate(posts)
	return posts, nil
}

func (s *postStore) Feed(ctx context.Context, viewerID string, skip, limit int) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("file", "post", "feed")()
	viewer, err := s.users.load(viewerID)
	if err != nil {
		return nil, err
	}
	var following, blocked []string
	if viewer != nil {
		following = viewer.Following
		blocked = viewer.BlockedUsers
	}
	keep := func(p *models.Post) bool {
		if len(following) > 0 {
			return contains(following, p.UserID)
		}
		return !contains(blocked, p.UserID)
	}
	posts := []*models.Post{}
	if err := s.eachPost(func(p *models.Post) {
		if keep(p) {
			posts = append(posts, p)
		}
	}); err != nil {
		return nil, err
	}
	sortNewestFirst(posts)
	if skip < 0 {
		skip = 0
	}
	if skip >= len(posts) {
		return []*models.Post{}, nil
	}
	posts = posts[skip:]
	if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}
	s.populate(posts)
	return posts, nil
}
