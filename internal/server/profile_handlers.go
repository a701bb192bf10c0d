package server

import (
	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profile/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.store.Users.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("user", currentUserID(c)))
	}
	return c.JSON(fiber.Map{"user": user.Public()})
}

// GetProfile handles GET /api/profile/:username
func (s *Server) GetProfile(c *fiber.Ctx) error {
	view, err := s.profileService.PublicProfile(c.Context(), currentUserID(c), c.Params("username"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// UpdateProfile handles POST /api/profile/update. The avatar arrives as an
// optional multipart file alongside the text fields.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var upd repository.ProfileUpdate

	// Absent form fields stay nil so the stored values survive.
	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Expected multipart form data"))
	}
	field := func(name string) *string {
		if vals, ok := form.Value[name]; ok && len(vals) > 0 {
			v := vals[0]
			return &v
		}
		return nil
	}
	upd.FirstName = field("firstName")
	upd.LastName = field("lastName")
	upd.DisplayName = field("displayName")
	upd.Bio = field("bio")

	if files, ok := form.File["profilePicture"]; ok && len(files) > 0 {
		url, err := s.saveUpload(files[0], "avatars", imageExts)
		if err != nil {
			return respondServiceError(c, err)
		}
		upd.ProfilePicture = &url
	}

	user, err := s.profileService.UpdateProfile(c.Context(), currentUserID(c), upd)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// UpdatePassword handles POST /api/profile/update-password
func (s *Server) UpdatePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Current and new password are required"))
	}

	if err := s.authService.ChangePassword(c.Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// ToggleFollow handles POST /api/profile/:username/toggle-follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	following, err := s.profileService.ToggleFollow(c.Context(), currentUserID(c), c.Params("username"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}
