package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/internal/auth"
	"github.com/krishi-mitra/backend/internal/diagnosis"
	"github.com/krishi-mitra/backend/internal/middleware/validation"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/models"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

type DiagnosisHandler struct {
	service *diagnosis.Service
	stores  *storage.Selector
}

func NewDiagnosisHandler(service *diagnosis.Service, stores *storage.Selector) *DiagnosisHandler {
	return &DiagnosisHandler{
		service: service,
		stores:  stores,
	}
}

// HandleDiagnose analyzes one photo and saves the result to the caller's
// history.
func (h *DiagnosisHandler) HandleDiagnose(c *fiber.Ctx) error {
	images, err := readImages(c, "image", 1)
	if err != nil {
		return errorResponse(c, err)
	}

	result, err := h.service.Analyze(c.UserContext(), images[0])
	if err != nil {
		return errorResponse(c, err)
	}

	h.persist(c, result)

	return c.JSON(result)
}

// HandleDiagnoseBatch fans several photos out concurrently and answers with
// every analysis that settled successfully.
func (h *DiagnosisHandler) HandleDiagnoseBatch(c *fiber.Ctx) error {
	images, err := readImages(c, "images", 10)
	if err != nil {
		return errorResponse(c, err)
	}

	identity := auth.FromContext(c)
	outcome, err := h.service.AnalyzeBatch(c.UserContext(), identity.UserID, images)
	if err != nil {
		return errorResponse(c, err)
	}

	for _, result := range outcome.Results {
		h.persist(c, result)
	}

	return c.JSON(outcome)
}

func (h *DiagnosisHandler) persist(c *fiber.Ctx, result *diagnosis.Result) {
	identity := auth.FromContext(c)

	rec := recordFromResult(result)
	rec.Language = c.FormValue("language")

	store := h.stores.For(identity.Guest)
	if err := store.SaveDiagnosis(c.UserContext(), identity.UserID, rec); err != nil {
		// History is best effort; the analysis itself already succeeded.
		logger.Error("Failed to save diagnosis to history",
			zap.String("user_id", identity.UserID),
			zap.Bool("guest", identity.Guest),
			zap.Error(err),
		)
	}
}

func recordFromResult(result *diagnosis.Result) *models.DiagnosisRecord {
	details, _ := json.Marshal(result)
	return &models.DiagnosisRecord{
		DiseaseName: result.En.DiseaseName,
		Symptoms:    result.En.Symptoms,
		Treatment:   result.En.Treatment,
		Prevention:  result.En.Prevention,
		IsHealthy:   result.IsHealthy,
		Confidence:  result.Confidence,
		Details:     details,
	}
}

// readImages pulls validated image parts out of the multipart form.
func readImages(c *fiber.Ctx, field string, max int) ([]ai.ImagePart, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apierr.BadRequest("Request must be multipart/form-data with at least one image.")
	}

	files := form.File[field]
	if len(files) == 0 {
		return nil, apierr.BadRequest("At least one image file is required.")
	}
	if len(files) > max {
		return nil, apierr.BadRequest("Too many images in one request.")
	}

	images := make([]ai.ImagePart, 0, len(files))
	for _, fh := range files {
		if err := validation.ValidateImage(fh); err != nil {
			return nil, apierr.BadRequest(err.Error())
		}

		data, err := readFile(fh)
		if err != nil {
			return nil, apierr.Internal("Failed to read the uploaded image.", err)
		}

		images = append(images, ai.ImagePart{
			Data:     data,
			MimeType: fh.Header.Get("Content-Type"),
		})
	}

	return images, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// errorResponse renders a typed service error as the client-facing shape.
func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(apierr.StatusOf(err)).JSON(fiber.Map{
		"error": apierr.MessageOf(err),
	})
}
