package metrics

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMultipleVariants is returned when an envelope populates more than one variant
var ErrMultipleVariants = errors.New("metrics envelope populates more than one variant")

// Envelope is the wire form of Metrics: an object with at most one of the
// keys code, document, image or video. An empty object is None.
type Envelope struct {
	Metrics Metrics
}

type envelopeWire struct {
	Code     *Code     `json:"code,omitempty" yaml:"code,omitempty"`
	Document *Document `json:"document,omitempty" yaml:"document,omitempty"`
	Image    *Image    `json:"image,omitempty" yaml:"image,omitempty"`
	Video    *Video    `json:"video,omitempty" yaml:"video,omitempty"`
}

func toWire(m Metrics) envelopeWire {
	var w envelopeWire
	switch v := OrNone(m).(type) {
	case Code:
		w.Code = &v
	case Document:
		w.Document = &v
	case Image:
		w.Image = &v
	case Video:
		w.Video = &v
	}
	return w
}

func fromWire(w envelopeWire) (Metrics, error) {
	var found []Metrics
	if w.Code != nil {
		found = append(found, *w.Code)
	}
	if w.Document != nil {
		found = append(found, *w.Document)
	}
	if w.Image != nil {
		found = append(found, *w.Image)
	}
	if w.Video != nil {
		found = append(found, *w.Video)
	}

	switch len(found) {
	case 0:
		return None{}, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w (%d present)", ErrMultipleVariants, len(found))
	}
}

// MarshalJSON implements json.Marshaler
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(e.Metrics))
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m, err := fromWire(w)
	if err != nil {
		return err
	}
	e.Metrics = m
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (e Envelope) MarshalYAML() (interface{}, error) {
	return toWire(e.Metrics), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (e *Envelope) UnmarshalYAML(node *yaml.Node) error {
	var w envelopeWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	m, err := fromWire(w)
	if err != nil {
		return err
	}
	e.Metrics = m
	return nil
}

// EncodeJSON serializes metrics for storage
func EncodeJSON(m Metrics) (string, error) {
	data, err := json.Marshal(Envelope{Metrics: m})
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses stored metrics; an empty string is None
func DecodeJSON(s string) (Metrics, error) {
	if s == "" {
		return None{}, nil
	}
	var e Envelope
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return e.Metrics, nil
}
