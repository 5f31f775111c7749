package validation

import (
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Image uploads are limited to formats the vision model accepts.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

const MaxImageSize = 10 * 1024 * 1024

type Config struct {
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware gates request bodies before they reach a handler. Per-file
// checks happen in ValidateImage because the multipart form is only parsed
// once, inside the handler.
func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					if cfg.Logger != nil {
						cfg.Logger.Warn("Rejected unsupported content type",
							zap.String("content_type", contentType),
							zap.String("path", c.Path()),
						)
					}
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		return c.Next()
	}
}

// ValidateImage checks one uploaded file against the size and format limits.
func ValidateImage(fh *multipart.FileHeader) error {
	if fh.Size > MaxImageSize {
		return fmt.Errorf("image %q exceeds the 10MB limit", fh.Filename)
	}

	contentType := fh.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return fmt.Errorf("image %q has unsupported type %q; use JPEG, PNG, or WebP", fh.Filename, contentType)
	}

	return nil
}
