package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/pkg/apierr"
	"github.com/krishi-mitra/backend/pkg/logger"
)

// ProcessPredictor runs the model as a short-lived child process per request.
// Features go in as JSON on stdin; the result comes back as JSON on stdout.
// On failure the script writes {"error": "..."} to stderr and exits non-zero.
type ProcessPredictor struct {
	interpreter string
	scriptPath  string
	timeout     time.Duration
}

func NewProcessPredictor(interpreter, scriptPath string, timeout time.Duration) *ProcessPredictor {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProcessPredictor{
		interpreter: interpreter,
		scriptPath:  scriptPath,
		timeout:     timeout,
	}
}

func (p *ProcessPredictor) Predict(ctx context.Context, features Features) (*Result, error) {
	input, err := json.Marshal(features)
	if err != nil {
		return nil, apierr.Internal("Failed to encode prediction request.", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.interpreter, p.scriptPath)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, p.classifyRunError(ctx, err, stderr.Bytes())
	}

	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		metrics.PredictionTotal.WithLabelValues("process", "malformed").Inc()
		return nil, apierr.BadGateway("The prediction script returned a malformed response.", err)
	}

	metrics.PredictionTotal.WithLabelValues("process", "ok").Inc()
	logger.Debug("Yield predicted via child process", zap.Float64("predicted_yield", result.PredictedYield))

	return &result, nil
}

func (p *ProcessPredictor) classifyRunError(ctx context.Context, err error, stderr []byte) error {
	if ctx.Err() == context.DeadlineExceeded {
		metrics.PredictionTotal.WithLabelValues("process", "timeout").Inc()
		return apierr.Timeout("The prediction script timed out.", err)
	}

	var startErr *exec.Error
	if errors.As(err, &startErr) {
		metrics.PredictionTotal.WithLabelValues("process", "spawn_error").Inc()
		return apierr.Unavailable("The prediction script failed to start.", err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		metrics.PredictionTotal.WithLabelValues("process", "script_error").Inc()
		var payload struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(bytes.TrimSpace(stderr), &payload); jsonErr == nil && payload.Error != "" {
			return apierr.BadGateway(payload.Error, err)
		}
		return apierr.BadGateway("The prediction script exited with an error.", err)
	}

	metrics.PredictionTotal.WithLabelValues("process", "unknown_error").Inc()
	return apierr.Internal("Prediction failed unexpectedly.", err)
}
