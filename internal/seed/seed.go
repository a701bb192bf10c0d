// Package seed provides helpers to create demo data through the persistence
// facade. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// Options controls how much demo data gets created.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// Password is assigned to every seeded account so demo logins work.
	Password string
}

// DefaultOptions is a small but lively data set.
func DefaultOptions() Options {
	return Options{Users: 12, PostsPerUser: 4, CommentsPerPost: 2, Password: "password123"}
}

// Factory builds domain entities and persists them through the facade, so
// seeding works identically against both backends.
type Factory struct {
	store *repository.Store
	opts  Options
	rng   *rand.Rand
}

// NewFactory creates a Factory bound to the provided store.
func NewFactory(store *repository.Store, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		store: store,
		opts:  opts,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run seeds users, a follow graph, posts with likes and comments, and a few
// chats with messages.
func (f *Factory) Run(ctx context.Context) error {
	users, err := f.createUsers(ctx)
	if err != nil {
		return err
	}
	if err := f.createFollows(ctx, users); err != nil {
		return err
	}
	posts, err := f.createPosts(ctx, users)
	if err != nil {
		return err
	}
	if err := f.createEngagement(ctx, users, posts); err != nil {
		return err
	}
	return f.createChats(ctx, users)
}

func (f *Factory) createUsers(ctx context.Context) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(f.opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	genders := []models.Gender{models.GenderMale, models.GenderFemale, models.GenderOther}
	users := make([]*models.User, 0, f.opts.Users)
	for i := 0; i < f.opts.Users; i++ {
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		user := &models.User{
			Username:   fmt.Sprintf("%s_%s%d", gofakeit.Adjective(), gofakeit.NounAbstract(), i),
			FirstName:  first,
			LastName:   last,
			Email:      gofakeit.Email(),
			Birthday:   gofakeit.DateRange(time.Now().AddDate(-45, 0, 0), time.Now().AddDate(-18, 0, 0)),
			Gender:     genders[f.rng.Intn(len(genders))],
			Password:   string(hash),
			Bio:        gofakeit.Quote(),
			IsVerified: true,
			IsOnline:   f.rng.Intn(2) == 0,
			CreatedAt:  time.Now().AddDate(0, 0, -f.rng.Intn(90)),
		}
		created, err := f.store.Users.Create(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("seeding user %q: %w", user.Username, err)
		}
		users = append(users, created)
	}
	return users, nil
}

func (f *Factory) createFollows(ctx context.Context, users []*models.User) error {
	for _, follower := range users {
		for _, target := range users {
			if target.ID == follower.ID || f.rng.Intn(3) != 0 {
				continue
			}
			if err := f.store.Users.AddFollower(ctx, target.ID, follower.ID); err != nil {
				return err
			}
			if err := f.store.Users.AddFollowing(ctx, follower.ID, target.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Factory) createPosts(ctx context.Context, users []*models.User) ([]*models.Post, error) {
	var posts []*models.Post
	for _, user := range users {
		for i := 0; i < f.opts.PostsPerUser; i++ {
			post := &models.Post{
				UserID:    user.ID,
				Username:  user.Username,
				Content:   gofakeit.Paragraph(1, 2, 8, " "),
				CreatedAt: time.Now().Add(-time.Duration(f.rng.Intn(90*24)) * time.Hour),
			}
			created, err := f.store.Posts.Create(ctx, user.Username, post)
			if err != nil {
				return nil, fmt.Errorf("seeding post for %q: %w", user.Username, err)
			}
			posts = append(posts, created)
		}
	}
	return posts, nil
}

func (f *Factory) createEngagement(ctx context.Context, users []*models.User, posts []*models.Post) error {
	for _, post := range posts {
		for _, user := range users {
			if f.rng.Intn(4) == 0 {
				if _, err := f.store.Posts.Like(ctx, post.ID, user.ID); err != nil {
					return err
				}
			}
		}
		for i := 0; i < f.opts.CommentsPerPost; i++ {
			commenter := users[f.rng.Intn(len(users))]
			comment := models.Comment{
				UserID:   commenter.ID,
				Username: commenter.Username,
				Text:     gofakeit.Sentence(8),
			}
			if _, err := f.store.Posts.AddComment(ctx, post.ID, comment); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Factory) createChats(ctx context.Context, users []*models.User) error {
	if len(users) < 2 {
		return nil
	}
	pairs := len(users) / 2
	for i := 0; i < pairs; i++ {
		a, b := users[2*i], users[2*i+1]
		chat, err := f.store.Chats.GetOrCreate(ctx, a.ID, b.ID)
		if err != nil {
			return err
		}
		turns := 2 + f.rng.Intn(5)
		for t := 0; t < turns; t++ {
			sender, receiver := a, b
			if t%2 == 1 {
				sender, receiver = b, a
			}
			if _, err := f.store.Chats.AppendMessage(ctx, chat.ID, sender.ID, receiver.ID,
				gofakeit.SentenceSimple(), models.MessageText, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
