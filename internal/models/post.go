package models

import "time"

// Post is a user's post. Content and ImageURL are both optional but at least
// one must be set; likes are a set of user IDs, comments are append-only.
type Post struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`

	// Author is the populated public summary of the post owner. It is filled
	// on read paths and never persisted.
	Author *UserSummary `json:"author,omitempty"`
}

// HasMedia reports whether the post carries an uploaded image or video.
func (p *Post) HasMedia() bool {
	return p.ImageURL != ""
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is embedded in a Post. Comments are ordered by creation time
// ascending when surfaced.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	// Author is populated on read paths, never persisted.
	Author *UserSummary `json:"author,omitempty"`
}

// PostSummary is the compact post shape embedded in public profiles.
type PostSummary struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Summarize returns the compact profile-page view of the post.
func (p *Post) Summarize() PostSummary {
	return PostSummary{
		ID:            p.ID,
		Content:       p.Content,
		ImageURL:      p.ImageURL,
		LikesCount:    len(p.Likes),
		CommentsCount: len(p.Comments),
		CreatedAt:     p.CreatedAt,
	}
}
