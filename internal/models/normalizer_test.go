package models_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"vigil/internal/models"
)

func TestNormalizeCanonicalKey(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.SensorKind
		payload string
		want    float64
	}{
		{"temp key", models.KindTemperature, `{"temp": 37.6}`, 37.6},
		{"temperature key", models.KindTemperature, `{"temperature": 36.2}`, 36.2},
		{"bpm key", models.KindHeartRate, `{"bpm": 72}`, 72},
		{"pulse_rate key", models.KindHeartRate, `{"pulse_rate": 88}`, 88},
		{"alcohol_level key", models.KindAlcohol, `{"alcohol_level": 0.04}`, 0.04},
		{"alcohol key", models.KindAlcohol, `{"alcohol": 0.12}`, 0.12},
		{"distance value key", models.KindDistance, `{"value": 42.5}`, 42.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := models.Normalize(tt.kind, []byte(tt.payload), time.Now())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Value == nil || *r.Value != tt.want {
				t.Errorf("got %v, want %v", r.Value, tt.want)
			}
		})
	}
}

func TestNormalizeCanonicalKeyWinsOverEarlierNumeric(t *testing.T) {
	// battery appears first in document order but temp is the canonical key.
	r, err := models.Normalize(models.KindTemperature, []byte(`{"battery": 88, "temp": 37.6}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.Value != 37.6 {
		t.Errorf("canonical key lost to document order: got %v", *r.Value)
	}
}

func TestNormalizeFirstNumericFieldInDocumentOrder(t *testing.T) {
	r, err := models.Normalize(models.KindTemperature, []byte(`{"unit": "C", "reading": 36.9, "battery": 88}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.Value != 36.9 {
		t.Errorf("got %v, want 36.9 (first numeric in document order)", *r.Value)
	}
}

func TestNormalizeBareScalar(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{"integer", "72", 72},
		{"float", "37.6", 37.6},
		{"quoted number", `"0.05"`, 0.05},
		{"padded", "  64  ", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := models.Normalize(models.KindHeartRate, []byte(tt.payload), time.Now())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *r.Value != tt.want {
				t.Errorf("got %v, want %v", *r.Value, tt.want)
			}
		})
	}
}

func TestNormalizeQuotedNumericField(t *testing.T) {
	r, err := models.Normalize(models.KindTemperature, []byte(`{"temp": "37.1"}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.Value != 37.1 {
		t.Errorf("got %v, want 37.1", *r.Value)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"non-numeric text", "offline"},
		{"object without numeric field", `{"status": "ok", "unit": "C"}`},
		{"truncated object", `{"temp": 37.`},
		{"array", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.Normalize(models.KindTemperature, []byte(tt.payload), time.Now())
			if !errors.Is(err, models.ErrMalformedPayload) {
				t.Errorf("got err=%v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	_, err := models.Normalize(models.SensorKind("humidty"), []byte(`{"value": 40}`), time.Now())
	if !errors.Is(err, models.ErrUnknownKind) {
		t.Errorf("got err=%v, want ErrUnknownKind", err)
	}
}

func TestNormalizeNeverCoercesToZero(t *testing.T) {
	r, err := models.Normalize(models.KindAlcohol, []byte(`{"status": "warming up"}`), time.Now())
	if err == nil {
		t.Fatalf("expected error, got reading %+v", r)
	}
	if r != nil {
		t.Errorf("malformed payload produced a reading: %+v", r)
	}
}

func TestNormalizeVectorMagnitude(t *testing.T) {
	r, err := models.Normalize(models.KindMotion, []byte(`{"x": 3, "y": 4, "z": 0}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.Value != 5 {
		t.Errorf("got %v, want 5", *r.Value)
	}

	r, err = models.Normalize(models.KindMotion, []byte(`{"x": 1, "y": 2, "z": 2}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*r.Value-3) > 1e-9 {
		t.Errorf("got %v, want 3", *r.Value)
	}
}

func TestNormalizeVectorMissingAxisFallsBack(t *testing.T) {
	// Without a z axis the vector path does not apply; first numeric field wins.
	r, err := models.Normalize(models.KindMotion, []byte(`{"x": 3, "y": 4}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.Value != 3 {
		t.Errorf("got %v, want 3 (first numeric field)", *r.Value)
	}
}

func TestNormalizePreservesRawFields(t *testing.T) {
	r, err := models.Normalize(models.KindTemperature, []byte(`{"temp": 37.6, "unit": "C"}`), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Raw["unit"] != "C" {
		t.Errorf("raw fields not preserved: %v", r.Raw)
	}
}
