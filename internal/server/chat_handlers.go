package server

import (
	"path/filepath"
	"strings"

	"bhabo/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetChatList handles GET /api/chat/list
func (s *Server) GetChatList(c *fiber.Ctx) error {
	chats, err := s.chatService.ChatList(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// StartChat handles POST /api/chat/start-chat
func (s *Server) StartChat(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username is required"))
	}

	chat, err := s.chatService.StartChat(c.Context(), currentUserID(c), req.Username)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"chat": chat})
}

// GetMessages handles GET /api/chat/:chatId/messages?skip=&limit=&sinceTimestamp=
func (s *Server) GetMessages(c *fiber.Ctx) error {
	since, err := parseSince(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 20)

	msgs, err := s.chatService.Messages(c.Context(), c.Params("chatId"), currentUserID(c), skip, limit, since)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// SendMessage handles POST /api/chat/:chatId/send
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.chatService.SendMessage(c.Context(), c.Params("chatId"), currentUserID(c),
		req.Content, models.MessageText, "")
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// SendMediaMessage handles POST /api/chat/:chatId/send-media. The media file
// determines the message type; an optional caption travels as content.
func (s *Server) SendMediaMessage(c *fiber.Ctx) error {
	file, err := c.FormFile("media")
	if err != nil || file == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("A media file is required"))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	typ := messageTypeForExt(ext)
	if typ == models.MessageText {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unsupported media type"))
	}

	url, err := s.saveUpload(file, "chat", mergeExts(imageExts, videoExts, audioExts))
	if err != nil {
		return respondServiceError(c, err)
	}

	msg, err := s.chatService.SendMessage(c.Context(), c.Params("chatId"), currentUserID(c),
		c.FormValue("content"), typ, url)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// MarkRead handles POST /api/chat/:chatId/mark-read
func (s *Server) MarkRead(c *fiber.Ctx) error {
	if err := s.chatService.MarkRead(c.Context(), c.Params("chatId"), currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Messages marked as read"})
}

// resolveTarget resolves the :targetUsername parameter to a user.
func (s *Server) resolveTarget(c *fiber.Ctx) (*models.User, error) {
	handle := c.Params("targetUsername")
	user, err := s.store.Users.GetByHandle(c.Context(), handle)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", handle)
	}
	return user, nil
}

// ToggleBlock handles POST /api/chat/:targetUsername/toggle-block
func (s *Server) ToggleBlock(c *fiber.Ctx) error {
	target, err := s.resolveTarget(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	blocked, err := s.chatService.ToggleBlock(c.Context(), currentUserID(c), target.ID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"blocked": blocked})
}

// SetTyping handles POST /api/chat/:targetUsername/typing. The target
// parameter is accepted for route symmetry; the flag lives on the caller.
func (s *Server) SetTyping(c *fiber.Ctx) error {
	var req struct {
		Typing bool `json:"typing"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.chatService.SetTyping(c.Context(), currentUserID(c), req.Typing); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"typing": req.Typing})
}

// GetTypingStatus handles GET /api/chat/:targetUsername/typing-status
func (s *Server) GetTypingStatus(c *fiber.Ctx) error {
	target, err := s.resolveTarget(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	typing, err := s.chatService.TypingStatus(c.Context(), currentUserID(c), target.ID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"typing": typing})
}
