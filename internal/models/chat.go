package models

import "time"

// MessageType classifies a chat message payload.
type MessageType string

// Message types supported by the chat flow.
const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageVoice MessageType = "voice"
)

// Placeholder returns the text shown in a chat preview when a message has no
// textual content.
func (t MessageType) Placeholder() string {
	switch t {
	case MessageImage:
		return "Image"
	case MessageVideo:
		return "Video"
	case MessageVoice:
		return "Voice Message"
	}
	return "Media"
}

// LastMessage is the denormalized preview snapshot stored on a Chat. It must
// be kept in sync manually whenever a message is appended or read.
type LastMessage struct {
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
}

// Chat is a two-party conversation. Participants are stored canonically
// sorted so an unordered pair always maps to the same chat.
type Chat struct {
	ID           string       `json:"_id"`
	Participants []string     `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`

	// ParticipantUsers carries the populated public views of the two
	// participants on read paths. Never persisted.
	ParticipantUsers []*PublicUser `json:"participantUsers,omitempty"`
}

// HasParticipant reports whether userID is one of the two chat members.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the member that is not userID, or "" when userID
// is not a member or the chat is malformed.
func (c *Chat) OtherParticipant(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ActivityTime is the timestamp chats are ordered by: the last message time
// when present, the creation time otherwise.
func (c *Chat) ActivityTime() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

// Message is one chat message. It is mutated only to flip Read.
type Message struct {
	ID         string      `json:"_id"`
	ChatID     string      `json:"chatId"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	MediaURL   string      `json:"mediaUrl,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Read       bool        `json:"read"`
}
