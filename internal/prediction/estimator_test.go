package prediction

import (
	"context"
	"strings"
	"testing"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/pkg/apierr"
)

type stubModel struct {
	lastPrompt string
	reply      string
	err        error
}

func (s *stubModel) GenerateVision(ctx context.Context, prompt string, images []ai.ImagePart) (string, error) {
	s.lastPrompt = prompt
	return s.reply, s.err
}

func estImage() ai.ImagePart {
	return ai.ImagePart{Data: []byte{1}, MimeType: "image/jpeg"}
}

func TestEstimateInputs_PartialMap(t *testing.T) {
	model := &stubModel{reply: `{
		"Temperature_Celsius": 26.0,
		"Rainfall_mm": 800,
		"Agricultural_Input_Score": 1
	}`}
	est := NewEstimator(model)

	got, err := est.EstimateInputs(context.Background(), "Nagpur, Maharashtra", []ai.ImagePart{estImage()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d features, want 3: %v", len(got), got)
	}
	if got["Temperature_Celsius"] != 26.0 {
		t.Errorf("Temperature_Celsius = %v, want 26", got["Temperature_Celsius"])
	}
	if _, ok := got["Growing_Degree_Days"]; ok {
		t.Error("omitted feature should stay omitted")
	}

	if !strings.Contains(model.lastPrompt, "Nagpur, Maharashtra") {
		t.Error("location not threaded into the prompt")
	}
}

func TestEstimateInputs_IgnoresUnknownKeys(t *testing.T) {
	model := &stubModel{reply: `{"Temperature_Celsius": 26.0, "Soil_Moisture": 0.4}`}
	est := NewEstimator(model)

	got, err := est.EstimateInputs(context.Background(), "Pune", []ai.ImagePart{estImage()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %v, want only Temperature_Celsius", got)
	}
}

func TestEstimateInputs_Validation(t *testing.T) {
	est := NewEstimator(&stubModel{reply: `{}`})

	if _, err := est.EstimateInputs(context.Background(), "Pune", nil); apierr.StatusOf(err) != 400 {
		t.Errorf("no images: status = %d, want 400", apierr.StatusOf(err))
	}

	six := make([]ai.ImagePart, 6)
	for i := range six {
		six[i] = estImage()
	}
	if _, err := est.EstimateInputs(context.Background(), "Pune", six); apierr.StatusOf(err) != 400 {
		t.Errorf("too many images: status = %d, want 400", apierr.StatusOf(err))
	}

	if _, err := est.EstimateInputs(context.Background(), "", []ai.ImagePart{estImage()}); apierr.StatusOf(err) != 400 {
		t.Errorf("no location: status = %d, want 400", apierr.StatusOf(err))
	}
}

func TestEstimateInputs_MalformedReply(t *testing.T) {
	est := NewEstimator(&stubModel{reply: "I could not determine the conditions."})

	_, err := est.EstimateInputs(context.Background(), "Pune", []ai.ImagePart{estImage()})
	if apierr.StatusOf(err) != 502 {
		t.Errorf("status = %d, want 502", apierr.StatusOf(err))
	}
}
