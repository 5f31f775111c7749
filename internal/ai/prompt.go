package ai

import (
	"fmt"
	"strings"
)

// DiagnosisPrompt instructs the model to answer with a single bilingual JSON
// object. The structure is the contract the strict parser in this package
// enforces; anything else is rejected.
const DiagnosisPrompt = `You are an expert agricultural AI assistant. Analyze this plant image for diseases, pest damage, nutrient deficiencies and environmental stress.

Respond ONLY with a single valid JSON object following this exact structure:
{
  "is_healthy": false,
  "confidence": 0.85,
  "en": {
    "disease_name": "Name of the disease",
    "symptoms": ["Observed symptom 1", "Observed symptom 2"],
    "treatment": "3-5 actionable treatment steps, separated by newlines.",
    "prevention": "2-3 actionable prevention tips, separated by newlines."
  },
  "hi": {
    "disease_name": "बीमारी का नाम",
    "symptoms": ["लक्षण 1", "लक्षण 2"],
    "treatment": "उपचार के चरण।",
    "prevention": "बचाव के उपाय।"
  }
}

If the plant is healthy, set "is_healthy" to true, use "Healthy Plant" (en) and "स्वस्थ पौधा" (hi) as disease_name, omit symptoms/treatment/prevention, and instead include an "advice" string in each language block with tips for keeping the plant healthy.

Guidelines:
- "confidence" must be a number between 0.0 and 1.0.
- Keep recommendations simple and practical for farmers.
- Focus on organic and accessible treatments when possible.
- If you are unsure, lower the confidence and suggest consulting an expert.
- Do not wrap the JSON in markdown or add any other text.`

// FeatureNames lists the yield-model inputs the estimation prompt may fill.
var FeatureNames = []string{
	"Temperature_Celsius",
	"Rainfall_mm",
	"Days_to_Harvest",
	"Agricultural_Input_Score",
	"Temperature_Stress_Index",
	"Rainfall_Intensity",
	"Growing_Degree_Days",
	"Temp_Rainfall_Interaction",
}

// EstimateInputsPrompt asks the model to estimate yield-model features from
// field photos. Fields it cannot estimate must be omitted, never guessed.
func EstimateInputsPrompt(location string) string {
	return fmt.Sprintf(`You are an agronomy assistant. Based on these field photos and the location "%s", estimate values for the following crop yield model features:
%s

Respond ONLY with a single valid JSON object mapping feature names to numeric values, for example: {"Temperature_Celsius": 28, "Rainfall_mm": 900}.

Rules:
- Include a feature ONLY if the images and location give you a reasonable basis for the estimate.
- OMIT any feature you cannot estimate. Never guess or fill in defaults.
- Values must be plain numbers, no units or strings.
- Do not wrap the JSON in markdown or add any other text.`, location, "- "+strings.Join(FeatureNames, "\n- "))
}
