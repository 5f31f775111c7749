package diagnosis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/internal/realtime"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
	"github.com/krishi-mitra/backend/pkg/utils"
)

// MalformedMode selects what Analyze does when the model output fails the
// strict parser.
type MalformedMode string

const (
	// MalformedError fails the image (the default).
	MalformedError MalformedMode = "error"
	// MalformedPlaceholder substitutes the fixed "Analysis Incomplete" result.
	MalformedPlaceholder MalformedMode = "placeholder"
)

// ModelClient is the slice of the AI client the orchestrator needs.
type ModelClient interface {
	GenerateVision(ctx context.Context, prompt string, images []ai.ImagePart) (string, error)
}

// Cache holds normalized results keyed by image fingerprint. Implementations
// must treat their own failures as misses.
type Cache interface {
	GetDiagnosis(ctx context.Context, key string, out interface{}) (bool, error)
	SetDiagnosis(ctx context.Context, key string, value interface{}) error
}

// Service orchestrates single-image diagnosis and the multi-image fan-out.
type Service struct {
	model     ModelClient
	cache     Cache
	hub       *realtime.Hub
	malformed MalformedMode
	maxBatch  int
}

func NewService(model ModelClient, cache Cache, hub *realtime.Hub, malformed MalformedMode) *Service {
	if malformed == "" {
		malformed = MalformedError
	}
	return &Service{
		model:     model,
		cache:     cache,
		hub:       hub,
		malformed: malformed,
		maxBatch:  10,
	}
}

// Analyze runs one image through the model and normalizes the reply.
func (s *Service) Analyze(ctx context.Context, image ai.ImagePart) (*Result, error) {
	start := time.Now()

	cacheKey := utils.HashBytes(image.Data)
	if s.cache != nil {
		var cached Result
		hit, err := s.cache.GetDiagnosis(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Diagnosis cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("diagnosis").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("diagnosis").Inc()
	}

	text, err := s.model.GenerateVision(ctx, ai.DiagnosisPrompt, []ai.ImagePart{image})
	if err != nil {
		metrics.DiagnosisTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}

	result, err := s.normalize(text)
	if err != nil {
		metrics.DiagnosisTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetDiagnosis(ctx, cacheKey, result); err != nil {
			logger.Warn("Failed to cache diagnosis", zap.Error(err))
		}
	}

	metrics.DiagnosisTotal.WithLabelValues("ok").Inc()
	metrics.DiagnosisDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	metrics.ConfidenceScore.Observe(result.Confidence)

	logger.Info("Plant diagnosed",
		zap.String("disease", result.En.DiseaseName),
		zap.Bool("is_healthy", result.IsHealthy),
		zap.Float64("confidence", result.Confidence),
	)

	return result, nil
}

// normalize applies the strict extraction and schema validation, degrading to
// the placeholder result only when configured to.
func (s *Service) normalize(text string) (*Result, error) {
	raw, err := ai.ExtractJSONObject(text)
	if err == nil {
		var result *Result
		result, err = DecodeResult(raw)
		if err == nil {
			return result, nil
		}
	}

	if s.malformed == MalformedPlaceholder {
		logger.Warn("Malformed model output, substituting placeholder", zap.Error(err))
		return PlaceholderResult(), nil
	}

	return nil, apierr.BadGateway("The AI returned a malformed analysis. Please try again.", err)
}

// BatchOutcome is the settle-all summary of one fan-out.
type BatchOutcome struct {
	Results []*Result `json:"results"`
	Failed  int       `json:"failed"`
}

// AnalyzeBatch dispatches every image concurrently, waits for all of them to
// settle, and keeps the successes in input order. Sibling calls are never
// cancelled because one of them failed; only zero successes fails the batch.
// Progress events go to subscribers of the given identity.
func (s *Service) AnalyzeBatch(ctx context.Context, identity string, images []ai.ImagePart) (*BatchOutcome, error) {
	if len(images) == 0 {
		return nil, apierr.BadRequest("At least one image file is required.")
	}
	if len(images) > s.maxBatch {
		return nil, apierr.BadRequest("Too many images in one request.")
	}

	start := time.Now()
	results := make([]*Result, len(images))

	// Workers always return nil so the group never cancels siblings.
	var g errgroup.Group
	for i := range images {
		i := i
		g.Go(func() error {
			s.publish(identity, realtime.Event{Type: "started", Index: i})

			result, err := s.Analyze(ctx, images[i])
			if err != nil {
				logger.Error("Image analysis failed in batch",
					zap.Int("index", i),
					zap.Error(err),
				)
				s.publish(identity, realtime.Event{Type: "failed", Index: i, Error: apierr.MessageOf(err)})
				return nil
			}

			results[i] = result
			s.publish(identity, realtime.Event{Type: "succeeded", Index: i, Disease: result.En.DiseaseName})
			return nil
		})
	}
	g.Wait()

	outcome := &BatchOutcome{Results: make([]*Result, 0, len(images))}
	for _, r := range results {
		if r != nil {
			outcome.Results = append(outcome.Results, r)
		} else {
			outcome.Failed++
		}
	}

	metrics.DiagnosisDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())

	if len(outcome.Results) == 0 {
		return nil, apierr.BadGateway("All analyses failed. Please try again with clearer photos.", errors.New("every image in the batch failed"))
	}

	logger.Info("Batch analysis settled",
		zap.Int("requested", len(images)),
		zap.Int("succeeded", len(outcome.Results)),
		zap.Int("failed", outcome.Failed),
	)

	return outcome, nil
}

func (s *Service) publish(identity string, ev realtime.Event) {
	if s.hub != nil && identity != "" {
		s.hub.Publish(identity, ev)
	}
}
