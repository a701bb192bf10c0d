package service

import (
	"context"
	"strings"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"
)

// ChatService handles direct messages, read receipts, typing flags and
// blocking. Chats are two-party and identified by their unordered
// participant pair.
type ChatService struct {
	store *repository.Store
}

// NewChatService creates a ChatService.
func NewChatService(store *repository.Store) *ChatService {
	return &ChatService{store: store}
}

// blockedEitherWay reports whether a blocks b or b blocks a.
func (s *ChatService) blockedEitherWay(ctx context.Context, a, b string) (bool, error) {
	if blocked, err := s.store.Users.IsBlocked(ctx, a, b); err != nil || blocked {
		return blocked, err
	}
	return s.store.Users.IsBlocked(ctx, b, a)
}

// StartChat opens (or returns) the chat between the caller and the user
// named by identifier. Blocked pairs cannot open chats.
func (s *ChatService) StartChat(ctx context.Context, userID, identifier string) (*models.Chat, error) {
	other, err := s.store.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if other == nil {
		return nil, models.NewNotFoundError("user", identifier)
	}
	if other.ID == userID {
		return nil, models.NewValidationError("you cannot chat with yourself")
	}
	if blocked, err := s.blockedEitherWay(ctx, userID, other.ID); err != nil {
		return nil, models.NewInternalError(err)
	} else if blocked {
		return nil, models.NewForbiddenError("messaging is not available for this user")
	}

	chat, err := s.store.Chats.GetOrCreate(ctx, userID, other.ID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// ChatList returns the caller's chats, most recently active first.
func (s *ChatService) ChatList(ctx context.Context, userID string) ([]*models.Chat, error) {
	chats, err := s.store.Chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return chats, nil
}

// chatForParticipant loads the chat and checks membership.
func (s *ChatService) chatForParticipant(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if chat == nil {
		return nil, models.NewNotFoundError("chat", chatID)
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("you are not part of this chat")
	}
	return chat, nil
}

// SendMessage appends a message to the chat. Blocks in either direction
// stop delivery.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID, content string, typ models.MessageType, mediaURL string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" && mediaURL == "" {
		return nil, models.NewValidationError("message must have content or media")
	}
	chat, err := s.chatForParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	receiverID := chat.OtherParticipant(senderID)
	if receiverID == "" {
		return nil, models.NewInternalError(nil)
	}
	if blocked, err := s.blockedEitherWay(ctx, senderID, receiverID); err != nil {
		return nil, models.NewInternalError(err)
	} else if blocked {
		return nil, models.NewForbiddenError("messaging is not available for this user")
	}

	msg, err := s.store.Chats.AppendMessage(ctx, chatID, senderID, receiverID, strings.TrimSpace(content), typ, mediaURL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return msg, nil
}

// Messages returns a page of the chat's messages. With since set, every
// message strictly newer than it is returned and skip/limit are ignored.
func (s *ChatService) Messages(ctx context.Context, chatID, userID string, skip, limit int, since *time.Time) ([]*models.Message, error) {
	if _, err := s.chatForParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Chats.ListMessages(ctx, chatID, skip, limit, since)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

// MarkRead flips the caller's unread messages in the chat to read.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string) error {
	if _, err := s.chatForParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.store.Chats.MarkRead(ctx, chatID, userID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ToggleBlock blocks the target when not blocked and unblocks otherwise.
// Returns whether the target is blocked afterwards.
func (s *ChatService) ToggleBlock(ctx context.Context, userID, targetID string) (bool, error) {
	if userID == targetID {
		return false, models.NewValidationError("you cannot block yourself")
	}
	target, err := s.store.Users.GetByID(ctx, targetID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if target == nil {
		return false, models.NewNotFoundError("user", targetID)
	}

	blocked, err := s.store.Users.IsBlocked(ctx, userID, targetID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if blocked {
		if err := s.store.Users.Unblock(ctx, userID, targetID); err != nil {
			return false, models.NewInternalError(err)
		}
		return false, nil
	}
	if err := s.store.Users.Block(ctx, userID, targetID); err != nil {
		return false, models.NewInternalError(err)
	}
	return true, nil
}

// HasBlocked reports whether userID blocks targetID.
func (s *ChatService) HasBlocked(ctx context.Context, userID, targetID string) (bool, error) {
	blocked, err := s.store.Users.IsBlocked(ctx, userID, targetID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return blocked, nil
}

// SetTyping flips the caller's typing flag.
func (s *ChatService) SetTyping(ctx context.Context, userID string, typing bool) error {
	if _, err := s.store.Users.Update(ctx, userID, repository.UserUpdate{IsTyping: &typing}); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// TypingStatus reports whether the other user is typing. A block in either
// direction conceals the flag instead of revealing the relationship.
func (s *ChatService) TypingStatus(ctx context.Context, viewerID, otherID string) (bool, error) {
	if blocked, err := s.blockedEitherWay(ctx, viewerID, otherID); err != nil {
		return false, models.NewInternalError(err)
	} else if blocked {
		return false, nil
	}
	other, err := s.store.Users.GetByID(ctx, otherID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if other == nil {
		return false, models.NewNotFoundError("user", otherID)
	}
	return other.IsTyping, nil
}
