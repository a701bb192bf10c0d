package filedb

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"github.com/google/uuid"
)

// chatStore keeps chat documents at chats/<id>.json and their messages at
// messages/<chatId>/<id>.json. Participants are stored sorted so the
// unordered pair is the chat's identity.
type chatStore struct {
	db    *db
	users *userStore
}

var _ repository.ChatRepository = (*chatStore)(nil)

func (s *chatStore) chatPath(id string) string {
	return s.db.path("chats", id+".json")
}

func (s *chatStore) messagePath(chatID, id string) string {
	return s.db.path("messages", chatID, id+".json")
}

func sortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// eachChat decodes every chat document, skipping corrupt ones.
func (s *chatStore) eachChat(fn func(*models.Chat) bool) error {
	ids, err := s.db.listDocs(s.db.path("chats"))
	if err != nil {
		return err
	}
	for _, id := range ids {
		var chat models.Chat
		if err := s.db.readJSON(s.chatPath(id), &chat); err != nil {
			s.db.log.SkippedRecord("chat", id, err)
			continue
		}
		if !fn(&chat) {
			return nil
		}
	}
	return nil
}

// populate attaches the public views of the chat participants. Participants
// whose user document is gone are left out.
func (s *chatStore) populate(chat *models.Chat) {
	chat.ParticipantUsers = []*models.PublicUser{}
	for _, handle := range chat.Participants {
		user, err := s.users.load(handle)
		if err != nil || user == nil {
			continue
		}
		chat.ParticipantUsers = append(chat.ParticipantUsers, user.Public())
	}
}

func (s *chatStore) GetOrCreate(ctx context.Context, participantA, participantB string) (*models.Chat, error) {
	defer observability.ObserveStoreOp("file", "chat", "get_or_create")()
	pair := sortedPair(participantA, participantB)
	var found *models.Chat
	err := s.eachChat(func(c *models.Chat) bool {
		if len(c.Participants) == 2 && c.Participants[0] == pair[0] && c.Participants[1] == pair[1] {
			found = c
			return false
		}
		return true
	})
	if err != nil || found != nil {
		return found, err
	}
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:           uuid.NewString(),
		Participants: pair,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.writeJSON(s.chatPath(chat.ID), chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *chatStore) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	defer observability.ObserveStoreOp("file", "chat", "get")()
	var chat models.Chat
	err := s.db.readJSON(s.chatPath(id), &chat)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case errors.Is(err, errMalformed):
		s.db.log.SkippedRecord("chat", id, err)
		return nil, nil
	default:
		return nil, err
	}
	s.populate(&chat)
	return &chat, nil
}

func (s *chatStore) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	defer observability.ObserveStoreOp("file", "chat", "list_for_user")()
	chats := []*models.Chat{}
	if err := s.eachChat(func(c *models.Chat) bool {
		if c.HasParticipant(userID) {
			chats = append(chats, c)
		}
		return true
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].ActivityTime().After(chats[j].ActivityTime())
	})
	for _, chat := range chats {
		s.populate(chat)
	}
	return chats, nil
}

func (s *chatStore) AppendMessage(ctx context.Context, chatID, senderID, receiverID, content string, typ models.MessageType, mediaURL string) (*models.Message, error) {
	defer observability.ObserveStoreOp("file", "chat", "append_message")()
	if typ == "" {
		typ = models.MessageText
	}
	msg := &models.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       typ,
		MediaURL:   mediaURL,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.db.writeJSON(s.messagePath(chatID, msg.ID), msg); err != nil {
		return nil, err
	}

	// Refresh the parent chat's preview snapshot. A missing or corrupt chat
	// document does not lose the message; it is re-stubbed or skipped.
	var chat models.Chat
	err := s.db.readJSON(s.chatPath(chatID), &chat)
	switch {
	case err == nil:
	case errors.Is(err, errMalformed):
		s.db.log.RepairedRecord("chat", chatID, err)
		chat = models.Chat{ID: chatID, Participants: sortedPair(senderID, receiverID), CreatedAt: msg.Timestamp}
	case errors.Is(err, os.ErrNotExist):
		s.db.log.SkippedRecord("chat", chatID, err)
		return msg, nil
	default:
		return nil, err
	}
	preview := content
	if preview == "" {
		preview = typ.Placeholder()
	}
	chat.LastMessage = &models.LastMessage{
		Sender:    senderID,
		Content:   preview,
		Type:      typ,
		Timestamp: msg.Timestamp,
	}
	chat.UpdatedAt = msg.Timestamp
	if err := s.db.writeJSON(s.chatPath(chatID), &chat); err != nil {
		return nil, err
	}
	return msg, nil
}

// loadMessages returns the chat's messages oldest-first, skipping corrupt
// documents. Untyped messages default to text.
func (s *chatStore) loadMessages(chatID string) ([]*models.Message, error) {
	ids, err := s.db.listDocs(s.db.path("messages", chatID))
	if err != nil {
		return nil, err
	}
	msgs := []*models.Message{}
	for _, id := range ids {
		var msg models.Message
		if err := s.db.readJSON(s.messagePath(chatID, id), &msg); err != nil {
			s.db.log.SkippedRecord("message", id, err)
			continue
		}
		if msg.Type == "" {
			msg.Type = models.MessageText
		}
		msgs = append(msgs, &msg)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (s *chatStore) ListMessages(ctx context.Context, chatID string, skip, limit int, since *time.Time) ([]*models.Message, error) {
	defer observability.ObserveStoreOp("file", "chat", "list_messages")()
	msgs, err := s.loadMessages(chatID)
	if err != nil {
		return nil, err
	}
	if since != nil {
		newer := []*models.Message{}
		for _, m := range msgs {
			if m.Timestamp.After(*since) {
				newer = append(newer, m)
			}
		}
		return newer, nil
	}
	// Page backward from the newest message: skip newest entries, then take
	// up to limit immediately older ones, still returned oldest-first. A
	// non-positive limit is an empty page, not the whole history.
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	end := len(msgs) - skip
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return msgs[start:end], nil
}

func (s *chatStore) MarkRead(ctx context.Context, chatID, readerID string) error {
	defer observability.ObserveStoreOp("file", "chat", "mark_read")()
	ids, err := s.db.listDocs(s.db.path("messages", chatID))
	if err != nil {
		return err
	}
	for _, id := range ids {
		var msg models.Message
		if err := s.db.readJSON(s.messagePath(chatID, id), &msg); err != nil {
			s.db.log.SkippedRecord("message", id, err)
			continue
		}
		if msg.ReceiverID != readerID || msg.Read {
			continue
		}
		msg.Read = true
		if err := s.db.writeJSON(s.messagePath(chatID, id), &msg); err != nil {
			return err
		}
	}

	var chat models.Chat
	err = s.db.readJSON(s.chatPath(chatID), &chat)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errMalformed) {
			return nil
		}
		return err
	}
	if chat.LastMessage != nil && chat.LastMessage.Sender != readerID && !chat.LastMessage.Read {
		chat.LastMessage.Read = true
		return s.db.writeJSON(s.chatPath(chatID), &chat)
	}
	return nil
}
