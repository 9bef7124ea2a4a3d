// internal/data/envelope.go
package data

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message types on the WebSocket wire. One type field discriminates payload
// shape in both directions.
const (
	TypeCameraFrame         = "camera_frame"
	TypeJoinSession         = "JOIN_SESSION"
	TypePrediction          = "prediction"
	TypeLiveStream          = "live_stream"
	TypeSessionConnected    = "SESSION_CONNECTED"
	TypeSessionDisconnected = "SESSION_DISCONNECTED"
	TypeAlert               = "alert"
	TypeHistory             = "history"
	TypeWelcome             = "welcome"
	TypeError               = "error"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type CameraFramePayload struct {
	SiteID string `json:"site_id"`
	Image  string `json:"image"` // base64, optionally a data URL
}

type JoinSessionPayload struct {
	SessionID string `json:"session_id"`
}

// Inbound is the decoded form of a client message. Exactly one payload field
// is set, matching Type.
type Inbound struct {
	Type        string
	CameraFrame *CameraFramePayload
	JoinSession *JoinSessionPayload
}

// ParseInbound decodes a client message into its tagged-union form.
func ParseInbound(raw []byte) (*Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch envelope.Type {
	case TypeCameraFrame:
		var p CameraFramePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", TypeCameraFrame, err)
		}
		return &Inbound{Type: envelope.Type, CameraFrame: &p}, nil
	case TypeJoinSession:
		var p JoinSessionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", TypeJoinSession, err)
		}
		return &Inbound{Type: envelope.Type, JoinSession: &p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}
}

// DecodeImage turns a base64 (or data-URL) image payload into raw bytes.
func DecodeImage(b64 string) ([]byte, error) {
	if i := strings.IndexByte(b64, ','); i >= 0 {
		b64 = b64[i+1:]
	}
	b64 = strings.TrimSpace(b64)
	if pad := len(b64) % 4; pad != 0 {
		b64 += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("decode image: empty payload")
	}
	return raw, nil
}

func marshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All outbound payloads are plain structs and maps; this cannot fail
		// for them, but never crash the hub over a broadcast.
		return []byte(`{"type":"error","message":"encode failure"}`)
	}
	return b
}

func MarshalPrediction(p Prediction) []byte {
	return marshal(map[string]interface{}{"type": TypePrediction, "data": p})
}

func MarshalLiveStream(image string, p Prediction) []byte {
	return marshal(map[string]interface{}{"type": TypeLiveStream, "image": image, "prediction": p})
}

func MarshalSessionConnected(sessionID, producerID, siteID string) []byte {
	return marshal(map[string]interface{}{
		"type":        TypeSessionConnected,
		"session_id":  sessionID,
		"producer_id": producerID,
		"site_id":     siteID,
	})
}

func MarshalSessionDisconnected(sessionID string) []byte {
	return marshal(map[string]interface{}{"type": TypeSessionDisconnected, "session_id": sessionID})
}

func MarshalAlert(a Alert) []byte {
	return marshal(map[string]interface{}{"type": TypeAlert, "payload": a})
}

func MarshalHistory(predictions []Prediction) []byte {
	return marshal(map[string]interface{}{"type": TypeHistory, "payload": predictions})
}

func MarshalWelcome(connectionID, siteID string) []byte {
	return marshal(map[string]interface{}{"type": TypeWelcome, "connection_id": connectionID, "site_id": siteID})
}

func MarshalError(message string) []byte {
	return marshal(map[string]interface{}{"type": TypeError, "message": message})
}
