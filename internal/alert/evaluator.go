package alert

import (
	"math"

	"vigil/internal/models"
)

// Thresholds holds the alert condition boundaries. All are externally
// configurable; the defaults match the hardware deployment.
type Thresholds struct {
	TempHigh        float64 `json:"temp_high"`
	TempLow         float64 `json:"temp_low"`
	HeartRateHigh   float64 `json:"heart_rate_high"`
	HeartRateLow    float64 `json:"heart_rate_low"`
	AlcoholDetected float64 `json:"alcohol_detected"`
	MotionMagnitude float64 `json:"motion_magnitude"`
}

// DefaultThresholds returns the stock threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempHigh:        37.5,
		TempLow:         35.0,
		HeartRateHigh:   100,
		HeartRateLow:    60,
		AlcoholDetected: 0.1,
		MotionMagnitude: 5.0,
	}
}

// Evaluator decides which alert condition, if any, a reading activates.
type Evaluator struct {
	th Thresholds
}

func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Thresholds returns the active threshold table.
func (e *Evaluator) Thresholds() Thresholds {
	return e.th
}

// Evaluate returns the single active alert kind for the value, if any.
// Checks run in fixed order so overlapping ranges break ties deterministically:
// the normal heart-rate band is only reached after the high and low checks fail.
// A nil value never evaluates to an alert.
func (e *Evaluator) Evaluate(kind models.SensorKind, value *float64) (Kind, bool) {
	if value == nil {
		return "", false
	}
	v := *value

	switch kind {
	case models.KindTemperature:
		if v >= e.th.TempHigh {
			return KindHighTemperature, true
		}
		if v <= e.th.TempLow {
			return KindLowTemperature, true
		}
	case models.KindHeartRate:
		if v >= e.th.HeartRateHigh {
			return KindHighHeartRate, true
		}
		if v > 0 && v <= e.th.HeartRateLow {
			return KindLowHeartRate, true
		}
		if v >= e.th.HeartRateLow && v < e.th.HeartRateHigh {
			return KindNormalHeartRate, true
		}
	case models.KindAlcohol:
		if v >= e.th.AlcoholDetected {
			return KindAlcoholDetected, true
		}
	case models.KindMotion:
		if math.Abs(v) >= e.th.MotionMagnitude {
			return KindMotionDetected, true
		}
	}
	return "", false
}
