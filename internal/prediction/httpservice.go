package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

// HTTPPredictor relays feature vectors to a standalone model service over
// HTTP. The service owns the model; this side only moves JSON.
type HTTPPredictor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPredictor(baseURL string, timeout time.Duration) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPredictor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, features Features) (*Result, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return nil, apierr.Internal("Failed to encode prediction request.", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Internal("Failed to build prediction request.", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.PredictionTotal.WithLabelValues("http", "unreachable").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierr.Timeout("The prediction service timed out.", err)
		}
		return nil, apierr.Unavailable("The prediction service is unreachable.", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.PredictionTotal.WithLabelValues("http", "read_error").Inc()
		return nil, apierr.Unavailable("Failed to read the prediction service response.", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.PredictionTotal.WithLabelValues("http", "upstream_error").Inc()
		return nil, upstreamError(resp.StatusCode, data)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.PredictionTotal.WithLabelValues("http", "malformed").Inc()
		return nil, apierr.BadGateway("The prediction service returned a malformed response.", err)
	}

	metrics.PredictionTotal.WithLabelValues("http", "ok").Inc()
	logger.Debug("Yield predicted over HTTP", zap.Float64("predicted_yield", result.PredictedYield))

	return &result, nil
}

// upstreamError surfaces the service's own error message when its body is the
// conventional {"error": "..."} shape, falling back to the status code.
func upstreamError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := fmt.Sprintf("The prediction service returned status %d.", status)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	if status >= 400 && status < 500 {
		return apierr.New(status, msg, fmt.Errorf("prediction service status %d", status))
	}
	return apierr.BadGateway(msg, fmt.Errorf("prediction service status %d", status))
}
