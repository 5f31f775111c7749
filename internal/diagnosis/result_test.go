package diagnosis

import (
	"encoding/json"
	"strings"
	"testing"
)

const diseaseJSON = `{
	"is_healthy": false,
	"confidence": 0.85,
	"en": {
		"disease_name": "Early Blight",
		"symptoms": ["Dark concentric spots on lower leaves", "Yellowing around lesions"],
		"treatment": "Remove affected leaves.\nApply a copper-based fungicide.",
		"prevention": "Rotate crops.\nWater at the base of the plant."
	},
	"hi": {
		"disease_name": "अगेती झुलसा",
		"symptoms": ["निचली पत्तियों पर गहरे धब्बे"],
		"treatment": "प्रभावित पत्तियां हटाएं।",
		"prevention": "फसल चक्र अपनाएं।"
	}
}`

func TestDecodeResult_MirrorsUpstreamFields(t *testing.T) {
	r, err := DecodeResult(json.RawMessage(diseaseJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.IsHealthy {
		t.Error("is_healthy = true, want false")
	}
	if r.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", r.Confidence)
	}
	if r.En.DiseaseName != "Early Blight" {
		t.Errorf("en.disease_name = %q", r.En.DiseaseName)
	}
	if len(r.En.Symptoms) != 2 {
		t.Errorf("en.symptoms length = %d, want 2", len(r.En.Symptoms))
	}
	if r.Hi.DiseaseName != "अगेती झुलसा" {
		t.Errorf("hi.disease_name = %q", r.Hi.DiseaseName)
	}
}

func TestDecodeResult_HealthyRequiresAdvice(t *testing.T) {
	healthy := `{
		"is_healthy": true,
		"confidence": 0.9,
		"en": {"disease_name": "Healthy Plant", "advice": "Keep watering regularly."},
		"hi": {"disease_name": "स्वस्थ पौधा", "advice": "नियमित पानी दें।"}
	}`

	r, err := DecodeResult(json.RawMessage(healthy))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsHealthy {
		t.Error("is_healthy = false, want true")
	}
	if r.En.Advice == "" || r.Hi.Advice == "" {
		t.Error("advice blocks not mirrored")
	}

	missingAdvice := `{
		"is_healthy": true,
		"confidence": 0.9,
		"en": {"disease_name": "Healthy Plant"},
		"hi": {"disease_name": "स्वस्थ पौधा", "advice": "नियमित पानी दें।"}
	}`
	if _, err := DecodeResult(json.RawMessage(missingAdvice)); err == nil {
		t.Error("expected rejection for healthy block without advice")
	}
}

func TestDecodeResult_ClampsConfidence(t *testing.T) {
	over := strings.Replace(diseaseJSON, "0.85", "1.7", 1)
	r, err := DecodeResult(json.RawMessage(over))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", r.Confidence)
	}

	under := strings.Replace(diseaseJSON, "0.85", "-0.2", 1)
	r, err = DecodeResult(json.RawMessage(under))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Confidence != 0 {
		t.Errorf("confidence = %v, want clamped to 0", r.Confidence)
	}
}

func TestDecodeResult_Rejections(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"is_healthy": false, "confidence": 0.5, "verdict": "bad",
			"en": {"disease_name": "Rust", "symptoms": ["a"], "treatment": "b", "prevention": "c"},
			"hi": {"disease_name": "र", "symptoms": ["a"], "treatment": "b", "prevention": "c"}}`,
		"missing hi block": `{"is_healthy": false, "confidence": 0.5,
			"en": {"disease_name": "Rust", "symptoms": ["a"], "treatment": "b", "prevention": "c"}}`,
		"missing symptoms": `{"is_healthy": false, "confidence": 0.5,
			"en": {"disease_name": "Rust", "treatment": "b", "prevention": "c"},
			"hi": {"disease_name": "र", "symptoms": ["a"], "treatment": "b", "prevention": "c"}}`,
		"symptoms wrong type": `{"is_healthy": false, "confidence": 0.5,
			"en": {"disease_name": "Rust", "symptoms": "spots", "treatment": "b", "prevention": "c"},
			"hi": {"disease_name": "र", "symptoms": ["a"], "treatment": "b", "prevention": "c"}}`,
		"missing disease name": `{"is_healthy": false, "confidence": 0.5,
			"en": {"symptoms": ["a"], "treatment": "b", "prevention": "c"},
			"hi": {"disease_name": "र", "symptoms": ["a"], "treatment": "b", "prevention": "c"}}`,
	}

	for name, raw := range cases {
		if _, err := DecodeResult(json.RawMessage(raw)); err == nil {
			t.Errorf("%s: expected rejection, got success", name)
		}
	}
}

func TestPlaceholderResult(t *testing.T) {
	r := PlaceholderResult()
	if r.Confidence != 0 {
		t.Errorf("placeholder confidence = %v, want 0", r.Confidence)
	}
	if r.En.DiseaseName != "Analysis Incomplete" {
		t.Errorf("placeholder en name = %q", r.En.DiseaseName)
	}
	if r.Hi.DiseaseName == "" {
		t.Error("placeholder hi block empty")
	}
}
