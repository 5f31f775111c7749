package diagnosis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LanguageBlock is one language's half of a diagnosis. Disease cases carry
// symptoms/treatment/prevention; healthy cases carry advice instead.
type LanguageBlock struct {
	DiseaseName string   `json:"disease_name"`
	Symptoms    []string `json:"symptoms,omitempty"`
	Treatment   string   `json:"treatment,omitempty"`
	Prevention  string   `json:"prevention,omitempty"`
	Advice      string   `json:"advice,omitempty"`
}

// Result is the normalized output of one image analysis. Confidence is only
// meaningful for unhealthy plants; healthy results keep it at whatever the
// model reported and clients suppress it.
type Result struct {
	IsHealthy  bool          `json:"is_healthy"`
	Confidence float64       `json:"confidence"`
	En         LanguageBlock `json:"en"`
	Hi         LanguageBlock `json:"hi"`
}

// DecodeResult validates a model-produced JSON object against the bilingual
// schema. Unknown fields and structural mismatches are rejections, never
// guesses; the only normalization applied is clamping confidence to [0,1].
func DecodeResult(raw json.RawMessage) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var r Result
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("diagnosis does not match schema: %w", err)
	}

	if err := validateBlock("en", r.En, r.IsHealthy); err != nil {
		return nil, err
	}
	if err := validateBlock("hi", r.Hi, r.IsHealthy); err != nil {
		return nil, err
	}

	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}

	return &r, nil
}

func validateBlock(lang string, b LanguageBlock, healthy bool) error {
	if b.DiseaseName == "" {
		return fmt.Errorf("diagnosis %s block is missing disease_name", lang)
	}

	if healthy {
		if b.Advice == "" {
			return fmt.Errorf("healthy diagnosis %s block is missing advice", lang)
		}
		return nil
	}

	if len(b.Symptoms) == 0 {
		return fmt.Errorf("diagnosis %s block is missing symptoms", lang)
	}
	if b.Treatment == "" {
		return fmt.Errorf("diagnosis %s block is missing treatment", lang)
	}
	if b.Prevention == "" {
		return fmt.Errorf("diagnosis %s block is missing prevention", lang)
	}

	return nil
}

// PlaceholderResult is the fixed "Analysis Incomplete" substitute used when
// malformed model output is configured to degrade instead of fail.
func PlaceholderResult() *Result {
	return &Result{
		IsHealthy:  false,
		Confidence: 0,
		En: LanguageBlock{
			DiseaseName: "Analysis Incomplete",
			Symptoms:    []string{"Could not parse the AI response."},
			Treatment:   "The analysis from the AI was malformed. Please try again.",
			Prevention:  "Ensure the subject is centered and in focus.",
		},
		Hi: LanguageBlock{
			DiseaseName: "विश्लेषण अधूरा",
			Symptoms:    []string{"AI प्रतिक्रिया को पढ़ा नहीं जा सका।"},
			Treatment:   "AI से प्राप्त विश्लेषण विकृत था। कृपया पुनः प्रयास करें।",
			Prevention:  "सुनिश्चित करें कि पौधा केंद्रित और फोकस में है।",
		},
	}
}
