package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("unknown sample kind")
	ErrMissingKind = errors.New("sample has no type tag")
)

// Each variant marshals with its kind tag in front of its own fields. The
// local "plain" types drop the MarshalJSON method so the embedded fields are
// encoded with the default rules.

func (s Accelerometer) MarshalJSON() ([]byte, error) {
	type plain Accelerometer
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s Gyroscope) MarshalJSON() ([]byte, error) {
	type plain Gyroscope
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s LinearAccel) MarshalJSON() ([]byte, error) {
	type plain LinearAccel
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s Barometer) MarshalJSON() ([]byte, error) {
	type plain Barometer
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s Gravity) MarshalJSON() ([]byte, error) {
	type plain Gravity
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s Pressure) MarshalJSON() ([]byte, error) {
	type plain Pressure
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s RotationVector) MarshalJSON() ([]byte, error) {
	type plain RotationVector
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s GPSSpeed) MarshalJSON() ([]byte, error) {
	type plain GPSSpeed
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

func (s GPSLocation) MarshalJSON() ([]byte, error) {
	type plain GPSLocation
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{s.Kind(), plain(s)})
}

// Marshal encodes a single sample with its kind tag.
func Marshal(s Sample) ([]byte, error) {
	if s == nil {
		return nil, ErrMissingKind
	}
	return json.Marshal(s)
}

// Unmarshal decodes one tagged sample object.
func Unmarshal(data []byte) (Sample, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if head.Type == "" {
		return nil, ErrMissingKind
	}

	kind, err := ParseKind(head.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, head.Type)
	}

	switch kind {
	case KindAccelerometer:
		return decodeAs[Accelerometer](data)
	case KindGyroscope:
		return decodeAs[Gyroscope](data)
	case KindLinearAccel:
		return decodeAs[LinearAccel](data)
	case KindBarometer:
		return decodeAs[Barometer](data)
	case KindGravity:
		return decodeAs[Gravity](data)
	case KindPressure:
		return decodeAs[Pressure](data)
	case KindRotationVector:
		return decodeAs[RotationVector](data)
	case KindGPSSpeed:
		return decodeAs[GPSSpeed](data)
	default:
		return decodeAs[GPSLocation](data)
	}
}

func decodeAs[T Sample](data []byte) (Sample, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", v.Kind(), err)
	}
	return v, nil
}

// EncodeAll renders samples as the export document: a JSON array in the
// given order.
func EncodeAll(samples []Sample) ([]byte, error) {
	if samples == nil {
		samples = []Sample{}
	}
	return json.Marshal(samples)
}

// DecodeAll parses an export document back into samples, preserving order.
func DecodeAll(data []byte) ([]Sample, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	samples := make([]Sample, 0, len(raw))
	for i, item := range raw {
		s, err := Unmarshal(item)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// DecodeBatch accepts either a single tagged object or an array of them, the
// two shapes devices publish.
func DecodeBatch(data []byte) ([]Sample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return DecodeAll(trimmed)
	}
	s, err := Unmarshal(trimmed)
	if err != nil {
		return nil, err
	}
	return []Sample{s}, nil
}
