package alert

import (
	"fmt"

	"vigil/internal/models"
)

// Display colors, shared with the dashboard styling.
const (
	colorNormal  = "#2E7D32"
	colorWarning = "#F9A826"
	colorDanger  = "#C62828"
	colorPrimary = "#0A2463"
	colorMuted   = "#626973"
)

// DisplayStatus is the value/status/color triple observers render for one sensor.
type DisplayStatus struct {
	Value  string `json:"value"`
	Status string `json:"status"`
	Color  string `json:"color"`
}

// Classify derives the display classification for a sensor value using the
// same threshold boundaries as Evaluate, keeping the alerting path and the
// display path consistent. A nil value is a distinct "No Data" state, never
// a numeric zero.
func (e *Evaluator) Classify(kind models.SensorKind, value *float64) DisplayStatus {
	if value == nil {
		return DisplayStatus{Value: "--", Status: "No Data", Color: colorMuted}
	}
	v := *value

	switch kind {
	case models.KindTemperature:
		s := DisplayStatus{Value: fmt.Sprintf("%.1f", v)}
		switch {
		case v >= e.th.TempHigh:
			s.Status, s.Color = "High", colorDanger
		case v <= e.th.TempLow:
			s.Status, s.Color = "Low", colorWarning
		default:
			s.Status, s.Color = "Normal", colorNormal
		}
		return s
	case models.KindHeartRate:
		s := DisplayStatus{Value: fmt.Sprintf("%.0f", v)}
		switch {
		case v >= e.th.HeartRateHigh:
			s.Status, s.Color = "High", colorDanger
		case v > 0 && v <= e.th.HeartRateLow:
			s.Status, s.Color = "Low", colorWarning
		case v >= e.th.HeartRateLow && v < e.th.HeartRateHigh:
			s.Status, s.Color = "Normal", colorNormal
		default:
			s.Status, s.Color = "No Reading", colorMuted
		}
		return s
	case models.KindAlcohol:
		s := DisplayStatus{Value: fmt.Sprintf("%.2f", v)}
		switch {
		case v >= e.th.AlcoholDetected:
			s.Status, s.Color = "Detected", colorDanger
		case v > 0:
			s.Status, s.Color = "Trace", colorWarning
		default:
			s.Status, s.Color = "None", colorNormal
		}
		return s
	case models.KindMotion:
		s := DisplayStatus{Value: fmt.Sprintf("%.1f", v)}
		if v >= e.th.MotionMagnitude || -v >= e.th.MotionMagnitude {
			s.Status, s.Color = "Motion", colorWarning
		} else {
			s.Status, s.Color = "Still", colorNormal
		}
		return s
	default:
		return DisplayStatus{Value: fmt.Sprintf("%.1f", v), Status: "OK", Color: colorPrimary}
	}
}
