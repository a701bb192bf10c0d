// Command main seeds the configured backend with demo data.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"bhabo/internal/config"
	"bhabo/internal/repository"
	"bhabo/internal/repository/filedb"
	"bhabo/internal/repository/mongodb"
	"bhabo/internal/seed"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	users := flag.Int("users", 12, "number of users to create")
	postsPerUser := flag.Int("posts", 4, "posts per user")
	commentsPerPost := flag.Int("comments", 2, "comments per post")
	password := flag.String("password", "password123", "password for all seeded accounts")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var store *repository.Store
	switch cfg.DBBackend {
	case config.BackendMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Close(context.Background())
		store = client.Store()
	case config.BackendFile:
		store, err = filedb.Open(afero.NewOsFs(), cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to open file store: %v", err)
		}
	}

	factory := seed.NewFactory(store, seed.Options{
		Users:           *users,
		PostsPerUser:    *postsPerUser,
		CommentsPerPost: *commentsPerPost,
		Password:        *password,
	})
	if err := factory.Run(ctx); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users (backend: %s)", *users, cfg.DBBackend)
}
