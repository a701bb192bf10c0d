package server

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bhabo/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// currentUserID returns the authenticated user's backend ID from locals.
func currentUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals("userID").(string); ok {
		return id
	}
	return ""
}

// queryInt parses an integer query parameter with a default.
func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// respondServiceError maps an AppError (or plain error) to its HTTP response.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// allowed upload extensions by kind
var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true}
	audioExts = map[string]bool{".mp3": true, ".ogg": true, ".wav": true, ".m4a": true, ".webm": true}
)

const maxUploadBytes = 25 << 20

// saveUpload stores the uploaded file under the upload directory with a
// generated name and returns its public URL path.
func (s *Server) saveUpload(file *multipart.FileHeader, subdir string, allowedExts map[string]bool) (string, error) {
	if file.Size > maxUploadBytes {
		return "", models.NewValidationError("file too large")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return "", models.NewValidationError(fmt.Sprintf("file type %q is not allowed", ext))
	}

	name := uuid.NewString() + ext
	dir := filepath.Join(s.config.UploadDir, subdir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", models.NewInternalError(err)
	}

	src, err := file.Open()
	if err != nil {
		return "", models.NewInternalError(err)
	}
	defer src.Close()

	if err := afero.WriteReader(s.fs, filepath.Join(dir, name), src); err != nil {
		return "", models.NewInternalError(err)
	}
	return "/uploads/" + subdir + "/" + name, nil
}

// messageTypeForExt classifies a chat media upload by extension.
func messageTypeForExt(ext string) models.MessageType {
	switch {
	case imageExts[ext]:
		return models.MessageImage
	case videoExts[ext]:
		return models.MessageVideo
	case audioExts[ext]:
		return models.MessageVoice
	}
	return models.MessageText
}

// parseSince parses the optional sinceTimestamp query parameter (RFC 3339 or
// Unix milliseconds).
func parseSince(c *fiber.Ctx) (*time.Time, error) {
	raw := c.Query("sinceTimestamp")
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts := time.UnixMilli(ms)
		return &ts, nil
	}
	return nil, models.NewValidationError("sinceTimestamp must be RFC 3339 or Unix milliseconds")
}
