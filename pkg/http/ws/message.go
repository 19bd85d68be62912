package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeRequestSession = "request_session"
	TypePing           = "ping"

	// Server -> Client
	TypeSessionUpdate = "session_update"
	TypeSessionClosed = "session_closed"
	TypeResultReady   = "result_ready"
	TypeError         = "error"
	TypePong          = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}

// Client Messages (incoming)

type RequestSessionPayload struct {
	Test string `json:"test"`
}

// Server Messages (outgoing)

type ResultReadyPayload struct {
	Test        string          `json:"test"`
	SessionID   string          `json:"session_id"`
	Result      json.RawMessage `json:"result"`
	SubmittedAt string          `json:"submitted_at"`
}

type SessionClosedPayload struct {
	Test      string `json:"test"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
