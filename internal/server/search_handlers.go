package server

import (
	"strings"

	"bhabo/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Search handles GET /api/search?q=
func (s *Server) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Query parameter q is required"))
	}

	results, err := s.searchService.Search(c.Context(), query)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(results)
}

// FindFriends handles GET /api/search/find-friends
func (s *Server) FindFriends(c *fiber.Ctx) error {
	result, err := s.searchService.FindFriends(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}
