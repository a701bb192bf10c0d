package server

import (
	"bhabo/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/post/create. Content and media both arrive as
// multipart form data; either may be omitted but not both.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	content := c.FormValue("content")

	imageURL := ""
	if file, err := c.FormFile("media"); err == nil && file != nil {
		url, err := s.saveUpload(file, "posts", mergeExts(imageExts, videoExts))
		if err != nil {
			return respondServiceError(c, err)
		}
		imageURL = url
	}

	post, err := s.postService.Create(c.Context(), currentUserID(c), content, imageURL)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

// GetFeed handles GET /api/post/feed?skip=&limit=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 10)

	posts, err := s.postService.Feed(c.Context(), currentUserID(c), skip, limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetPost handles GET /api/post/:postId
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.Get(c.Context(), c.Params("postId"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// ToggleLike handles POST /api/post/:postId/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	post, err := s.postService.ToggleLike(c.Context(), c.Params("postId"), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"post":  post,
		"liked": post.LikedBy(currentUserID(c)),
	})
}

// AddComment handles POST /api/post/:postId/comment
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.AddComment(c.Context(), c.Params("postId"), currentUserID(c), req.Text)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

// GetComments handles GET /api/post/:postId/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.postService.Comments(c.Context(), c.Params("postId"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// DeletePost handles DELETE /api/post/:postId
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.Context(), c.Params("postId"), currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

func mergeExts(sets ...map[string]bool) map[string]bool {
	merged := map[string]bool{}
	for _, set := range sets {
		for ext := range set {
			merged[ext] = true
		}
	}
	return merged
}
