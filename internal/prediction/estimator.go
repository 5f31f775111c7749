package prediction

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

const maxEstimateImages = 5

// Estimator asks the vision model to fill in whatever yield features it can
// infer from field photos and a location hint. The model is told to omit
// features it cannot ground, so the returned map is deliberately partial and
// never validated against the full feature set.
type Estimator struct {
	model ModelClient
}

// ModelClient is the slice of the AI client the estimator needs.
type ModelClient interface {
	GenerateVision(ctx context.Context, prompt string, images []ai.ImagePart) (string, error)
}

func NewEstimator(model ModelClient) *Estimator {
	return &Estimator{model: model}
}

func (e *Estimator) EstimateInputs(ctx context.Context, location string, images []ai.ImagePart) (map[string]float64, error) {
	if len(images) == 0 {
		return nil, apierr.BadRequest("At least one image file is required.")
	}
	if len(images) > maxEstimateImages {
		return nil, apierr.BadRequest("Too many images in one request.")
	}
	if location == "" {
		return nil, apierr.BadRequest("A location is required to estimate inputs.")
	}

	text, err := e.model.GenerateVision(ctx, ai.EstimateInputsPrompt(location), images)
	if err != nil {
		return nil, err
	}

	raw, err := ai.ExtractJSONObject(text)
	if err != nil {
		return nil, apierr.BadGateway("The AI returned a malformed estimate. Please try again.", err)
	}

	var all map[string]interface{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, apierr.BadGateway("The AI returned a malformed estimate. Please try again.", err)
	}

	estimate := make(map[string]float64)
	for _, name := range ai.FeatureNames {
		if v, ok := all[name].(float64); ok {
			estimate[name] = v
		}
	}

	logger.Info("Estimated prediction inputs",
		zap.String("location", location),
		zap.Int("images", len(images)),
		zap.Int("features", len(estimate)),
	)

	return estimate, nil
}
