package domain

import "fmt"

// Payload is the opaque telemetry body of a sample. Only "accuracy" and
// "errors" are ever interpreted.
type Payload map[string]any

// PoseSample is one telemetry entry. Timestamp is client supplied epoch time.
type PoseSample struct {
	UserID    ParticipantID `json:"user_id"`
	Timestamp float64       `json:"timestamp"`
	Payload   Payload       `json:"pose_data"`
}

// Accuracy reports the numeric "accuracy" field, if present.
func (p Payload) Accuracy() (float64, bool) {
	v, ok := p["accuracy"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Errors returns the "errors" list. Non-string entries are formatted.
func (p Payload) Errors() []string {
	switch list := p["errors"].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}
