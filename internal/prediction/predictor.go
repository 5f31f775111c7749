package prediction

import (
	"context"
	"fmt"
)

// Features is the exact input vector the yield model was trained on. Field
// names match the model's training columns, so the JSON tags are deliberately
// not snake_case.
type Features struct {
	TemperatureCelsius      float64 `json:"Temperature_Celsius"`
	RainfallMM              float64 `json:"Rainfall_mm"`
	DaysToHarvest           float64 `json:"Days_to_Harvest"`
	AgriculturalInputScore  float64 `json:"Agricultural_Input_Score"`
	TemperatureStressIndex  float64 `json:"Temperature_Stress_Index"`
	RainfallIntensity       float64 `json:"Rainfall_Intensity"`
	GrowingDegreeDays       float64 `json:"Growing_Degree_Days"`
	TempRainfallInteraction float64 `json:"Temp_Rainfall_Interaction"`
}

// Result is the model's answer, in the same units as the training target.
type Result struct {
	PredictedYield float64 `json:"predicted_yield"`
}

// Predictor is one strategy for reaching the yield model. Exactly one
// implementation is active per process, chosen by configuration.
type Predictor interface {
	Predict(ctx context.Context, features Features) (*Result, error)
}

// ValidateRaw checks that a request body carries every feature the model
// expects, before any backend is invoked. Raw maps are used so that a missing
// key can be told apart from an explicit zero.
func ValidateRaw(raw map[string]interface{}) (Features, error) {
	var f Features
	get := func(key string) (float64, error) {
		v, ok := raw[key]
		if !ok {
			return 0, fmt.Errorf("missing required feature %q", key)
		}
		n, ok := v.(float64)
		if !ok {
			return 0, fmt.Errorf("feature %q must be a number", key)
		}
		return n, nil
	}

	var err error
	if f.TemperatureCelsius, err = get("Temperature_Celsius"); err != nil {
		return f, err
	}
	if f.RainfallMM, err = get("Rainfall_mm"); err != nil {
		return f, err
	}
	if f.DaysToHarvest, err = get("Days_to_Harvest"); err != nil {
		return f, err
	}
	if f.AgriculturalInputScore, err = get("Agricultural_Input_Score"); err != nil {
		return f, err
	}
	if f.TemperatureStressIndex, err = get("Temperature_Stress_Index"); err != nil {
		return f, err
	}
	if f.RainfallIntensity, err = get("Rainfall_Intensity"); err != nil {
		return f, err
	}
	if f.GrowingDegreeDays, err = get("Growing_Degree_Days"); err != nil {
		return f, err
	}
	if f.TempRainfallInteraction, err = get("Temp_Rainfall_Interaction"); err != nil {
		return f, err
	}

	return f, nil
}
