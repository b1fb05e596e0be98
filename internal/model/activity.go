package model

import (
	"encoding/json"
	"time"
)

// Activity is a persisted record of a published domain message, mirroring
// what is sent to NATS.
type Activity struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	SubjectID string          `json:"subject_id"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
