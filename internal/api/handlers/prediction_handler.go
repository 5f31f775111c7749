package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/prediction"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

type PredictionHandler struct {
	predictor prediction.Predictor
	estimator *prediction.Estimator
}

func NewPredictionHandler(predictor prediction.Predictor, estimator *prediction.Estimator) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		estimator: estimator,
	}
}

// HandlePredictYield relays a complete feature vector to the configured
// model backend.
func (h *PredictionHandler) HandlePredictYield(c *fiber.Ctx) error {
	var raw map[string]interface{}
	if err := c.BodyParser(&raw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	features, err := prediction.ValidateRaw(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.predictor.Predict(c.UserContext(), features)
	if err != nil {
		logger.Error("Yield prediction failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(result)
}

// HandleEstimateInputs asks the vision model to fill in whatever features it
// can infer from field photos plus a location string.
func (h *PredictionHandler) HandleEstimateInputs(c *fiber.Ctx) error {
	images, err := readImages(c, "images", 5)
	if err != nil {
		return errorResponse(c, err)
	}

	location := c.FormValue("location")
	if location == "" {
		return errorResponse(c, apierr.BadRequest("A location is required to estimate inputs."))
	}

	estimate, err := h.estimator.EstimateInputs(c.UserContext(), location, images)
	if err != nil {
		logger.Error("Input estimation failed", zap.String("location", location), zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"estimated_features": estimate})
}
