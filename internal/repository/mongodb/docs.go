package mongodb

import (
	"time"

	"bhabo/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// The *Doc types are the stored collection shapes. References between
// entities are ObjectIDs in the database and hex strings in the domain
// models; the converters below translate in both directions, dropping hex
// strings that do not parse.

type userDoc struct {
	ID                       bson.ObjectID   `bson:"_id,omitempty"`
	Username                 string          `bson:"username"`
	FirstName                string          `bson:"firstName"`
	LastName                 string          `bson:"lastName"`
	DisplayName              string          `bson:"displayName"`
	Email                    string          `bson:"email"`
	Birthday                 time.Time       `bson:"birthday"`
	Gender                   models.Gender   `bson:"gender"`
	Password                 string          `bson:"password"`
	ProfilePicture           string          `bson:"profilePicture"`
	Bio                      string          `bson:"bio"`
	IsVerified               bool            `bson:"isVerified"`
	VerificationCode         string          `bson:"verificationCode,omitempty"`
	VerificationCodeExpires  *time.Time      `bson:"verificationCodeExpires,omitempty"`
	ResetPasswordCode        string          `bson:"resetPasswordCode,omitempty"`
	ResetPasswordCodeExpires *time.Time      `bson:"resetPasswordCodeExpires,omitempty"`
	Followers                []bson.ObjectID `bson:"followers"`
	Following                []bson.ObjectID `bson:"following"`
	IsOnline                 bool            `bson:"isOnline"`
	IsTyping                 bool            `bson:"isTyping"`
	BlockedUsers             []bson.ObjectID `bson:"blockedUsers"`
	CreatedAt                time.Time       `bson:"createdAt"`
}

type commentDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	UserID    bson.ObjectID `bson:"userId"`
	Username  string        `bson:"username"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"createdAt"`
}

type postDoc struct {
	ID        bson.ObjectID   `bson:"_id,omitempty"`
	UserID    bson.ObjectID   `bson:"userId"`
	Username  string          `bson:"username"`
	Content   string          `bson:"content"`
	ImageURL  string          `bson:"imageUrl,omitempty"`
	Likes     []bson.ObjectID `bson:"likes"`
	Comments  []commentDoc    `bson:"comments"`
	CreatedAt time.Time       `bson:"createdAt"`
}

type lastMessageDoc struct {
	Sender    bson.ObjectID      `bson:"sender"`
	Content   string             `bson:"content"`
	Type      models.MessageType `bson:"type"`
	Timestamp time.Time          `bson:"timestamp"`
	Read      bool               `bson:"read"`
}

type chatDoc struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	Participants []bson.ObjectID `bson:"participants"`
	LastMessage  *lastMessageDoc `bson:"lastMessage"`
	CreatedAt    time.Time       `bson:"createdAt"`
	UpdatedAt    time.Time       `bson:"updatedAt"`
}

type messageDoc struct {
	ID         bson.ObjectID      `bson:"_id,omitempty"`
	ChatID     bson.ObjectID      `bson:"chatId"`
	SenderID   bson.ObjectID      `bson:"senderId"`
	ReceiverID bson.ObjectID      `bson:"receiverId"`
	Content    string             `bson:"content"`
	Type       models.MessageType `bson:"type"`
	MediaURL   string             `bson:"mediaUrl,omitempty"`
	Timestamp  time.Time          `bson:"timestamp"`
	Read       bool               `bson:"read"`
}

// oidFromHex parses hex, reporting failure instead of erroring so invalid
// identifiers can be treated as missing records.
func oidFromHex(hex string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(hex)
	return oid, err == nil
}

func oidsFromHex(hexes []string) []bson.ObjectID {
	oids := []bson.ObjectID{}
	for _, h := range hexes {
		if oid, ok := oidFromHex(h); ok {
			oids = append(oids, oid)
		}
	}
	return oids
}

func hexesFromOIDs(oids []bson.ObjectID) []string {
	hexes := []string{}
	for _, oid := range oids {
		hexes = append(hexes, oid.Hex())
	}
	return hexes
}

func (d *userDoc) toModel() *models.User {
	u := &models.User{
		ID:                       d.ID.Hex(),
		Username:                 d.Username,
		FirstName:                d.FirstName,
		LastName:                 d.LastName,
		DisplayName:              d.DisplayName,
		Email:                    d.Email,
		Birthday:                 d.Birthday,
		Gender:                   d.Gender,
		Password:                 d.Password,
		ProfilePicture:           d.ProfilePicture,
		Bio:                      d.Bio,
		IsVerified:               d.IsVerified,
		VerificationCode:         d.VerificationCode,
		VerificationCodeExpires:  d.VerificationCodeExpires,
		ResetPasswordCode:        d.ResetPasswordCode,
		ResetPasswordCodeExpires: d.ResetPasswordCodeExpires,
		Followers:                hexesFromOIDs(d.Followers),
		Following:                hexesFromOIDs(d.Following),
		IsOnline:                 d.IsOnline,
		IsTyping:                 d.IsTyping,
		BlockedUsers:             hexesFromOIDs(d.BlockedUsers),
		CreatedAt:                d.CreatedAt,
	}
	u.Normalize()
	return u
}

func userDocFromModel(u *models.User) *userDoc {
	return &userDoc{
		Username:                 u.Username,
		FirstName:                u.FirstName,
		LastName:                 u.LastName,
		DisplayName:              u.DisplayName,
		Email:                    u.Email,
		Birthday:                 u.Birthday,
		Gender:                   u.Gender,
		Password:                 u.Password,
		ProfilePicture:           u.ProfilePicture,
		Bio:                      u.Bio,
		IsVerified:               u.IsVerified,
		VerificationCode:         u.VerificationCode,
		VerificationCodeExpires:  u.VerificationCodeExpires,
		ResetPasswordCode:        u.ResetPasswordCode,
		ResetPasswordCodeExpires: u.ResetPasswordCodeExpires,
		Followers:                oidsFromHex(u.Followers),
		Following:                oidsFromHex(u.Following),
		IsOnline:                 u.IsOnline,
		IsTyping:                 u.IsTyping,
		BlockedUsers:             oidsFromHex(u.BlockedUsers),
		CreatedAt:                u.CreatedAt,
	}
}

func (d *postDoc) toModel() *models.Post {
	p := &models.Post{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Username:  d.Username,
		Content:   d.Content,
		ImageURL:  d.ImageURL,
		Likes:     hexesFromOIDs(d.Likes),
		Comments:  make([]models.Comment, 0, len(d.Comments)),
		CreatedAt: d.CreatedAt,
	}
	for _, c := range d.Comments {
		p.Comments = append(p.Comments, c.toModel())
	}
	return p
}

func (d commentDoc) toModel() models.Comment {
	return models.Comment{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Username:  d.Username,
		Text:      d.Text,
		CreatedAt: d.CreatedAt,
	}
}

func (d *chatDoc) toModel() *models.Chat {
	c := &models.Chat{
		ID:           d.ID.Hex(),
		Participants: hexesFromOIDs(d.Participants),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.LastMessage != nil {
		c.LastMessage = &models.LastMessage{
			Sender:    d.LastMessage.Sender.Hex(),
			Content:   d.LastMessage.Content,
			Type:      d.LastMessage.Type,
			Timestamp: d.LastMessage.Timestamp,
			Read:      d.LastMessage.Read,
		}
	}
	return c
}

func (d *messageDoc) toModel() *models.Message {
	typ := d.Type
	if typ == "" {
		typ = models.MessageText
	}
	return &models.Message{
		ID:         d.ID.Hex(),
		ChatID:     d.ChatID.Hex(),
		SenderID:   d.SenderID.Hex(),
		ReceiverID: d.ReceiverID.Hex(),
		Content:    d.Content,
		Type:       typ,
		MediaURL:   d.MediaURL,
		Timestamp:  d.Timestamp,
		Read:       d.Read,
	}
}
