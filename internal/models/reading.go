package models

import (
	"errors"
	"reflect"
	"time"
)

// SensorKind identifies one logical sensor stream
type SensorKind string

const (
	KindTemperature SensorKind = "temperature"
	KindHeartRate   SensorKind = "heart_rate"
	KindAlcohol     SensorKind = "alcohol"
	KindMotion      SensorKind = "motion_magnitude"
	KindDistance    SensorKind = "distance"
	KindWeight      SensorKind = "weight"
)

// Normalization errors
var (
	ErrMalformedPayload = errors.New("malformed sensor payload")
	ErrUnknownKind      = errors.New("unknown sensor kind")
)

// Reading is one typed, timestamped sensor value. A nil Value means the sensor
// produced no usable data; it is never coerced to zero. Immutable once constructed.
type Reading struct {
	Kind      SensorKind     `json:"kind"`
	Value     *float64       `json:"value"`
	Raw       map[string]any `json:"raw,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewReading creates a reading with the given value
func NewReading(kind SensorKind, value float64, raw map[string]any, ts time.Time) *Reading {
	return &Reading{Kind: kind, Value: &value, Raw: raw, Timestamp: ts}
}

// EmptyReading creates a reading carrying no value for the given kind
func EmptyReading(kind SensorKind, raw map[string]any, ts time.Time) *Reading {
	return &Reading{Kind: kind, Raw: raw, Timestamp: ts}
}

// Equal compares value and raw fields; timestamps are excluded so an
// unchanged sensor never looks "changed" just because wall-clock time advanced.
func (r *Reading) Equal(other *Reading) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Kind != other.Kind {
		return false
	}
	if (r.Value == nil) != (other.Value == nil) {
		return false
	}
	if r.Value != nil && *r.Value != *other.Value {
		return false
	}
	return reflect.DeepEqual(r.Raw, other.Raw)
}

// Document is a named collection of readings representing one full snapshot
// from a source. It is superseded, never mutated; adapters clone before publishing.
type Document map[SensorKind]*Reading

// Clone returns a shallow copy of the document. Readings themselves are
// immutable, so sharing them between snapshots is safe.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, r := range d {
		out[k] = r
	}
	return out
}

// Equal reports structural equality, field for field, timestamps excluded.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for k, r := range d {
		o, ok := other[k]
		if !ok || !r.Equal(o) {
			return false
		}
	}
	return true
}
