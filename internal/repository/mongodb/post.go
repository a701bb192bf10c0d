package mongodb

import (
	"context"
	"errors"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type postStore struct {
	coll  *mongo.Collection
	users *userStore
}

var _ repository.PostRepository = (*postStore)(nil)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

// populate attaches author cards with one batched lookup.
func (s *postStore) populate(ctx context.Context, posts []*models.Post) error {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	cards, err := s.users.summaries(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Author = cards[p.UserID]
	}
	return nil
}

func (s *postStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*models.Post, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	posts := []*models.Post{}
	for i := range docs {
		posts = append(posts, docs[i].toModel())
	}
	if err := s.populate(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *postStore) Create(ctx context.Context, authorHandle string, post *models.Post) (*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "create")()
	authorOID, ok := oidFromHex(post.UserID)
	if !ok {
		return nil, models.NewValidationError("invalid post author")
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	doc := &postDoc{
		UserID:    authorOID,
		Username:  authorHandle,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		Likes:     oidsFromHex(post.Likes),
		Comments:  []commentDoc{},
		CreatedAt: post.CreatedAt,
	}
	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	post.ID = result.InsertedID.(bson.ObjectID).Hex()
	post.Username = authorHandle
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	return post, nil
}

func (s *postStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "get")()
	oid, ok := oidFromHex(id)
	if !ok {
		return nil, nil
	}
	var doc postDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	post := doc.toModel()
	if err := s.populate(ctx, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postStore) ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "list_by_author")()
	oid, ok := oidFromHex(authorID)
	if !ok {
		return []*models.Post{}, nil
	}
	return s.find(ctx, bson.M{"userId": oid}, options.Find().SetSort(newestFirst))
}

// findOneAndUpdate applies update to the post and returns the post-update
// document with its author populated, or (nil, nil) when absent.
func (s *postStore) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.Post, error) {
	oid, ok := oidFromHex(id)
	if !ok {
		return nil, nil
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc postDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	post := doc.toModel()
	if err := s.populate(ctx, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postStore) Like(ctx context.Context, id, userID string) (*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "like")()
	userOID, ok := oidFromHex(userID)
	if !ok {
		return nil, nil
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$addToSet": bson.M{"likes": userOID}})
}

func (s *postStore) Unlike(ctx context.Context, id, userID string) (*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "unlike")()
	userOID, ok := oidFromHex(userID)
	if !ok {
		return nil, nil
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$pull": bson.M{"likes": userOID}})
}

func (s *postStore) AddComment(ctx context.Context, id string, comment models.Comment) (*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "add_comment")()
	authorOID, ok := oidFromHex(comment.UserID)
	if !ok {
		return nil, nil
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	doc := commentDoc{
		ID:        bson.NewObjectID(),
		UserID:    authorOID,
		Username:  comment.Username,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$push": bson.M{"comments": doc}})
}

func (s *postStore) ListComments(ctx context.Context, id string) ([]models.Comment, error) {
	defer observability.ObserveStoreOp("mongo", "post", "list_comments")()
	post, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return []models.Comment{}, nil
	}
	ids := make([]string, 0, len(post.Comments))
	for _, c := range post.Comments {
		ids = append(ids, c.UserID)
	}
	cards, err := s.users.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments := append([]models.Comment{}, post.Comments...)
	for i := range comments {
		comments[i].Author = cards[comments[i].UserID]
	}
	return comments, nil
}

func (s *postStore) Delete(ctx context.Context, id, authorHandle string) (bool, error) {
	defer observability.ObserveStoreOp("mongo", "post", "delete")()
	oid, ok := oidFromHex(id)
	if !ok {
		return false, nil
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, "username": authorHandle})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (s *postStore) Search(ctx context.Context, query string) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "search")()
	pattern := repository.FuzzyPattern(query)
	// Image posts match regardless of the query text.
	filter := bson.M{"$or": bson.A{
		bson.M{"content": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"imageUrl": bson.M{"$exists": true, "$ne": ""}},
	}}
	return s.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (s *postStore) Feed(ctx context.Context, viewerID string, skip, limit int) ([]*models.Post, error) {
	defer observability.ObserveStoreOp("mongo", "post", "feed")()
	filter := bson.M{}
	if viewer, err := s.users.GetByID(ctx, viewerID); err != nil {
		return nil, err
	} else if viewer != nil {
		if len(viewer.Following) > 0 {
			filter["userId"] = bson.M{"$in": oidsFromHex(viewer.Following)}
		} else if len(viewer.BlockedUsers) > 0 {
			filter["userId"] = bson.M{"$nin": oidsFromHex(viewer.BlockedUsers)}
		}
	}
	opts := options.Find().SetSort(newestFirst)
	if skip > 0 {
		opts = opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.find(ctx, filter, opts)
}
