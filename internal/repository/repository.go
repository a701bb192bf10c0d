// Package repository defines the persistence facade: one contract implemented
// by the document-store backend (repository/mongodb) and the flat-file
// backend (repository/filedb). The active backend is selected once at
// startup and injected into the services; callers cannot tell which one is
// behind the interface.
//
// Not-found is never an error at this layer: single-record lookups return
// (nil, nil) and listings return an empty slice. Errors mean the backend
// itself failed.
package repository

import (
	"context"
	"time"

	"bhabo/internal/models"
)

// UserUpdate is a partial update applied to a stored user. Nil pointer
// fields are left untouched; the Clear flags wipe the matching one-time code
// together with its expiry.
type UserUpdate struct {
	Password                 *string
	IsVerified               *bool
	IsTyping                 *bool
	VerificationCode         *string
	VerificationCodeExpires  *time.Time
	ClearVerificationCode    bool
	ResetPasswordCode        *string
	ResetPasswordCodeExpires *time.Time
	ClearResetPasswordCode   bool
}

// ProfileUpdate is the subset of user fields a profile edit may touch. Nil
// means "keep the stored value", mirroring an absent form field.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	DisplayName    *string
	Bio            *string
	ProfilePicture *string
}

// UserRepository is the user half of the persistence facade.
type UserRepository interface {
	// GetByHandle returns the user with the given username, or nil.
	GetByHandle(ctx context.Context, handle string) (*models.User, error)
	// GetByID returns the user with the given backend identifier, or nil.
	// For the file backend identifiers are handles and this is GetByHandle.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// FindByIdentifier resolves a username or an email address, or nil.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	// Create persists a new user and returns it with its ID assigned.
	// Handle/email uniqueness is enforced by the caller; the document
	// backend additionally surfaces index violations as validation errors.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Update applies a partial update and returns the updated user, or nil
	// when the user does not exist.
	Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error)
	// UpdateProfileFields applies a profile edit and returns the updated
	// user, or nil when the user does not exist.
	UpdateProfileFields(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error)

	// Follow-graph mutators. All four are idempotent set operations and
	// no-ops when the subject user does not exist.
	AddFollower(ctx context.Context, targetID, followerID string) error
	RemoveFollower(ctx context.Context, targetID, followerID string) error
	AddFollowing(ctx context.Context, followerID, targetID string) error
	RemoveFollowing(ctx context.Context, followerID, targetID string) error

	// Search returns public views of users whose handle or display name
	// matches query as a case-insensitive character subsequence.
	Search(ctx context.Context, query string) ([]*models.PublicUser, error)

	// SetOnline flips the presence flag.
	SetOnline(ctx context.Context, id string, online bool) error

	// Block/Unblock are idempotent mutations of the blocker's block set.
	Block(ctx context.Context, blockerID, targetID string) error
	Unblock(ctx context.Context, blockerID, targetID string) error
	// IsBlocked reports whether id has targetID in its block set.
	IsBlocked(ctx context.Context, id, targetID string) (bool, error)

	// ListOnline and ListOffline return public views of users by presence,
	// excluding excludeID. A non-empty genderFilter selects users of the
	// OPPOSITE gender from the filter value ("show me the opposite gender");
	// GenderOther or empty applies no gender constraint.
	ListOnline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error)
	ListOffline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error)
}

// PostRepository is the post half of the persistence facade.
type PostRepository interface {
	// Create persists a new post under authorHandle and returns it with a
	// generated ID.
	Create(ctx context.Context, authorHandle string, post *models.Post) (*models.Post, error)
	// GetByID returns the post with its author summary populated, or nil.
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// ListByAuthor returns the author's posts newest-first.
	ListByAuthor(ctx context.Context, authorID string) ([]*models.Post, error)
	// Like/Unlike add or remove userID from the like set. Both are
	// idempotent and return the updated post, or nil when the post is absent.
	Like(ctx context.Context, id, userID string) (*models.Post, error)
	Unlike(ctx context.Context, id, userID string) (*models.Post, error)
	// AddComment appends a comment with a generated id and timestamp and
	// returns the updated post, or nil when the post is absent.
	AddComment(ctx context.Context, id string, comment models.Comment) (*models.Post, error)
	// ListComments returns the post's comments oldest-first with commenter
	// summaries populated.
	ListComments(ctx context.Context, id string) ([]models.Comment, error)
	// Delete removes the post owned by authorHandle. False when absent.
	Delete(ctx context.Context, id, authorHandle string) (bool, error)
	// Search returns posts whose content matches query as a subsequence,
	// plus every post carrying a non-empty image URL regardless of the
	// query. Newest-first.
	Search(ctx context.Context, query string) ([]*models.Post, error)
	// Feed assembles the viewer's feed: posts by followees when the viewer
	// follows anyone, otherwise all posts except those by blocked authors.
	// Newest-first, offset/limit paginated, author summaries populated.
	Feed(ctx context.Context, viewerID string, skip, limit int) ([]*models.Post, error)
}

// ChatRepository is the chat/message half of the persistence facade.
type ChatRepository interface {
	// GetOrCreate canonicalizes the pair by sorting and returns the existing
	// chat for it, or creates one. At most one chat exists per unordered pair.
	GetOrCreate(ctx context.Context, participantA, participantB string) (*models.Chat, error)
	// GetByID returns the chat with participant public views populated, or nil.
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	// ListForUser returns the user's chats ordered by last activity
	// descending, participants populated.
	ListForUser(ctx context.Context, userID string) ([]*models.Chat, error)
	// AppendMessage stores a new message and refreshes the parent chat's
	// lastMessage snapshot and updatedAt. Empty content is replaced by the
	// message type's placeholder in the snapshot.
	AppendMessage(ctx context.Context, chatID, senderID, receiverID, content string, typ models.MessageType, mediaURL string) (*models.Message, error)
	// ListMessages returns a page of the chat's messages sorted ascending.
	// With since set it returns every message strictly newer than since and
	// ignores skip/limit. Otherwise the page is the window
	// [len-(skip+limit), len-skip) over the oldest-first list, i.e.
	// pagination counts backward from the newest message.
	ListMessages(ctx context.Context, chatID string, skip, limit int, since *time.Time) ([]*models.Message, error)
	// MarkRead flips read on every unread message addressed to readerID and
	// on the chat's lastMessage snapshot when its sender is someone else.
	MarkRead(ctx context.Context, chatID, readerID string) error
}

// Store bundles the three repositories of the active backend.
type Store struct {
	Users UserRepository
	Posts PostRepository
	Chats ChatRepository
}
