package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// canonicalKeys lists, per sensor kind, the payload keys that carry the value.
// Resolution order is fixed: canonical key, then first numeric field in document
// order, then bare scalar parse. Behavior here is an explicit priority list, not
// incidental key iteration.
var canonicalKeys = map[SensorKind][]string{
	KindTemperature: {"temp", "temperature"},
	KindHeartRate:   {"bpm", "pulse_rate"},
	KindAlcohol:     {"alcohol_level", "alcohol"},
	KindMotion:      {"magnitude"},
	KindDistance:    {"distance", "value"},
	KindWeight:      {"weight", "value"},
}

// axisKeys are the component keys of a vector payload (gyro/accel). A motion
// payload carrying all three is reduced to its magnitude.
var axisKeys = [3]string{"x", "y", "z"}

type payloadField struct {
	key string
	raw json.RawMessage
}

// Normalize parses a raw bus payload into a Reading for the given kind.
// Payloads may be a JSON object with a canonical key, a JSON object with an
// unrecognized key set (first numeric field wins), or a bare numeric literal.
// Anything else fails with ErrMalformedPayload; "no data" is never coerced to 0.
func Normalize(kind SensorKind, payload []byte, ts time.Time) (*Reading, error) {
	// Topic maps are configuration; a typoed kind must fail loudly, not
	// silently produce readings no evaluator rule will ever match.
	if _, ok := canonicalKeys[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	fields, isObject, err := decodeOrderedObject(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if !isObject {
		// Bare scalar: text or number with no structure.
		v, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(string(trimmed)), `"`), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: not an object or numeric literal", ErrMalformedPayload)
		}
		return NewReading(kind, v, nil, ts), nil
	}

	raw := rawFields(fields)

	if kind == KindMotion {
		if mag, ok := vectorMagnitude(fields); ok {
			return NewReading(kind, mag, raw, ts), nil
		}
	}

	// 1. Canonical key.
	for _, key := range canonicalKeys[kind] {
		for _, f := range fields {
			if f.key != key {
				continue
			}
			if v, ok := numericValue(f.raw); ok {
				return NewReading(kind, v, raw, ts), nil
			}
		}
	}

	// 2. First field whose value parses as a number, in document order.
	for _, f := range fields {
		if v, ok := numericValue(f.raw); ok {
			return NewReading(kind, v, raw, ts), nil
		}
	}

	// 3. No numeric field anywhere: malformed, never a zero value.
	return nil, fmt.Errorf("%w: no numeric field in object", ErrMalformedPayload)
}

// decodeOrderedObject decodes a top-level JSON object preserving field order.
// Returns isObject=false when the payload is valid JSON but not an object, or
// is not JSON at all (the caller then attempts a bare scalar parse).
func decodeOrderedObject(payload []byte) ([]payloadField, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false, nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, false, nil
	}

	var fields []payloadField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, true, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, true, fmt.Errorf("unexpected token %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, true, err
		}
		fields = append(fields, payloadField{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, true, err
	}
	return fields, true, nil
}

// numericValue extracts a float from a raw JSON value. Quoted numeric strings
// count: upstream firmware is not consistent about quoting.
func numericValue(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// vectorMagnitude computes sqrt(x²+y²+z²) when all three axes are present.
func vectorMagnitude(fields []payloadField) (float64, bool) {
	var sum float64
	for _, axis := range axisKeys {
		found := false
		for _, f := range fields {
			if f.key != axis {
				continue
			}
			v, ok := numericValue(f.raw)
			if !ok {
				return 0, false
			}
			sum += v * v
			found = true
			break
		}
		if !found {
			return 0, false
		}
	}
	return math.Sqrt(sum), true
}

// rawFields materializes the ordered fields into a plain map for the Reading.
func rawFields(fields []payloadField) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		var v any
		if err := json.Unmarshal(f.raw, &v); err != nil {
			v = string(f.raw)
		}
		out[f.key] = v
	}
	return out
}
