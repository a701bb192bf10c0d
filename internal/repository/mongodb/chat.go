package mongodb

import (
	"context"
	"errors"
	"sort"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type chatStore struct {
	chats    *mongo.Collection
	messages *mongo.Collection
	users    *userStore
}

var _ repository.ChatRepository = (*chatStore)(nil)

// sortedPair canonicalizes the participant pair by hex order so the stored
// array is the chat's identity.
func sortedPair(a, b bson.ObjectID) []bson.ObjectID {
	if b.Hex() < a.Hex() {
		a, b = b, a
	}
	return []bson.ObjectID{a, b}
}

// populate attaches the participants' public views.
func (s *chatStore) populate(ctx context.Context, chat *models.Chat) error {
	chat.ParticipantUsers = []*models.PublicUser{}
	for _, id := range chat.Participants {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user != nil {
			chat.ParticipantUsers = append(chat.ParticipantUsers, user.Public())
		}
	}
	return nil
}

func (s *chatStore) GetOrCreate(ctx context.Context, participantA, participantB string) (*models.Chat, error) {
	defer observability.ObserveStoreOp("mongo", "chat", "get_or_create")()
	oidA, okA := oidFromHex(participantA)
	oidB, okB := oidFromHex(participantB)
	if !okA || !okB {
		return nil, models.NewValidationError("invalid chat participant")
	}
	pair := sortedPair(oidA, oidB)
	filter := bson.M{"participants": pair}

	var doc chatDoc
	err := s.chats.FindOne(ctx, filter).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	now := time.Now().UTC()
	doc = chatDoc{Participants: pair, CreatedAt: now, UpdatedAt: now}
	result, err := s.chats.InsertOne(ctx, &doc)
	if err != nil {
		// A concurrent creator won the unique participants index; use theirs.
		if mongo.IsDuplicateKeyError(err) {
			if err := s.chats.FindOne(ctx, filter).Decode(&doc); err != nil {
				return nil, err
			}
			return doc.toModel(), nil
		}
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)
	return doc.toModel(), nil
}

func (s *chatStore) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	defer observability.ObserveStoreOp("mongo", "chat", "get")()
	oid, ok := oidFromHex(id)
	if !ok {
		return nil, nil
	}
	var doc chatDoc
	err := s.chats.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chat := doc.toModel()
	if err := s.populate(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *chatStore) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	defer observability.ObserveStoreOp("mongo", "chat", "list_for_user")()
	oid, ok := oidFromHex(userID)
	if !ok {
		return []*models.Chat{}, nil
	}
	cursor, err := s.chats.Find(ctx, bson.M{"participants": oid})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []chatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	chats := []*models.Chat{}
	for i := range docs {
		chats = append(chats, docs[i].toModel())
	}
	// Order by last activity, which is the last message time when one
	// exists and the creation time otherwise.
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].ActivityTime().After(chats[j].ActivityTime())
	})
	for _, chat := range chats {
		if err := s.populate(ctx, chat); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func (s *chatStore) AppendMessage(ctx context.Context, chatID, senderID, receiverID, content string, typ models.MessageType, mediaURL string) (*models.Message, error) {
	defer observability.ObserveStoreOp("mongo", "chat", "append_message")()
	chatOID, okC := oidFromHex(chatID)
	senderOID, okS := oidFromHex(senderID)
	receiverOID, okR := oidFromHex(receiverID)
	if !okC || !okS || !okR {
		return nil, models.NewValidationError("invalid message addressing")
	}
	if typ == "" {
		typ = models.MessageText
	}
	doc := &messageDoc{
		ChatID:     chatOID,
		SenderID:   senderOID,
		ReceiverID: receiverOID,
		Content:    content,
		Type:       typ,
		MediaURL:   mediaURL,
		Timestamp:  time.Now().UTC(),
	}
	result, err := s.messages.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)

	preview := content
	if preview == "" {
		preview = typ.Placeholder()
	}
	snapshot := lastMessageDoc{
		Sender:    senderOID,
		Content:   preview,
		Type:      typ,
		Timestamp: doc.Timestamp,
	}
	_, err = s.chats.UpdateOne(ctx, bson.M{"_id": chatOID},
		bson.M{"$set": bson.M{"lastMessage": snapshot, "updatedAt": doc.Timestamp}})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *chatStore) ListMessages(ctx context.Context, chatID string, skip, limit int, since *time.Time) ([]*models.Message, error) {
	defer observability.ObserveStoreOp("mongo", "chat", "list_messages")()
	chatOID, ok := oidFromHex(chatID)
	if !ok {
		return []*models.Message{}, nil
	}
	oldestFirst := bson.D{{Key: "timestamp", Value: 1}}

	if since != nil {
		return s.findMessages(ctx,
			bson.M{"chatId": chatOID, "timestamp": bson.M{"$gt": *since}},
			options.Find().SetSort(oldestFirst))
	}

	// Page backward from the newest message: the window is
	// [total-(skip+limit), total-skip) over the oldest-first sequence. A
	// non-positive limit is an empty page, not the whole history.
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	total, err := s.messages.CountDocuments(ctx, bson.M{"chatId": chatOID})
	if err != nil {
		return nil, err
	}
	end := total - int64(skip)
	if end < 0 {
		end = 0
	}
	start := end - int64(limit)
	if start < 0 {
		start = 0
	}
	if end <= start {
		return []*models.Message{}, nil
	}
	opts := options.Find().SetSort(oldestFirst).SetSkip(start).SetLimit(end - start)
	return s.findMessages(ctx, bson.M{"chatId": chatOID}, opts)
}

func (s *chatStore) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*models.Message, error) {
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := []*models.Message{}
	for i := range docs {
		msgs = append(msgs, docs[i].toModel())
	}
	return msgs, nil
}

func (s *chatStore) MarkRead(ctx context.Context, chatID, readerID string) error {
	defer observability.ObserveStoreOp("mongo", "chat", "mark_read")()
	chatOID, okC := oidFromHex(chatID)
	readerOID, okR := oidFromHex(readerID)
	if !okC || !okR {
		return nil
	}
	_, err := s.messages.UpdateMany(ctx,
		bson.M{"chatId": chatOID, "receiverId": readerOID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	// The snapshot flips only when someone else sent the last message.
	_, err = s.chats.UpdateOne(ctx,
		bson.M{"_id": chatOID, "lastMessage.read": false, "lastMessage.sender": bson.M{"$ne": readerOID}},
		bson.M{"$set": bson.M{"lastMessage.read": true}})
	return err
}
