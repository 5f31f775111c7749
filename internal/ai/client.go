package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/circuitbreaker"
	"github.com/krishi-mitra/backend/pkg/logger"
)

// ImagePart is one inline image attached to a vision request.
type ImagePart struct {
	Data     []byte
	MimeType string
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to the Gemini API through its OpenAI-compatible
// chat-completions surface. Calls are bounded by a per-request deadline and
// guarded by a circuit breaker; there is no automatic retry.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	cb := circuitbreaker.New("gemini", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("AI client initialized",
		zap.String("model", cfg.Model),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
	}
}

// GenerateVision sends the prompt with inline images and returns the raw
// model text. On deadline expiry the transport-level call is cancelled, not
// abandoned.
func (c *Client) GenerateVision(ctx context.Context, prompt string, images []ImagePart) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: dataURL(img),
			},
		})
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				},
			},
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return err
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("model returned no choices")
		}

		metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

		logger.Debug("Vision completion generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		content = resp.Choices[0].Message.Content
		return nil
	})

	if err != nil {
		return "", classifyError(err)
	}

	return content, nil
}

func dataURL(img ImagePart) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MimeType, base64.StdEncoding.EncodeToString(img.Data))
}

// classifyError maps transport and vendor failures onto the typed service
// errors the orchestration layer surfaces to callers.
func classifyError(err error) error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.Timeout("Request to the AI service timed out.", err)
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return apierr.Unavailable("The AI service is temporarily unavailable.", err)
	}

	var vendorErr *openai.APIError
	if errors.As(err, &vendorErr) {
		switch vendorErr.HTTPStatusCode {
		case 401, 403:
			return apierr.New(400, "AI service rejected the configured API key. Please check the credential.", err)
		case 408, 504:
			return apierr.Timeout("Request to the AI service timed out.", err)
		default:
			if vendorErr.HTTPStatusCode >= 500 {
				return apierr.Unavailable("The AI service returned an upstream error.", err)
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apierr.Timeout("Request to the AI service timed out.", err)
		}
		return apierr.Unavailable("Failed to connect to the AI service.", err)
	}

	return apierr.Internal("Failed to analyze the image due to an unexpected error.", err)
}
