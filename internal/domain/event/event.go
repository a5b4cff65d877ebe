package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event represents a domain event emitted after a workflow transition.
// Recipient is the identity that should be notified; SubjectKind/SubjectID
// locate the workflow subject the event concerns.
type Event struct {
	ID          string                 `json:"id"`
	Type        Type                   `json:"type"`
	SubjectKind string                 `json:"subject_kind"`
	SubjectID   int64                  `json:"subject_id"`
	Recipient   string                 `json:"recipient,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, subjectKind string, subjectID int64, recipient string, payload map[string]interface{}) *Event {
	return &Event{
		ID:          generateID(),
		Type:        eventType,
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		Recipient:   recipient,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
