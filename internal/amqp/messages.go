package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"spesa/internal/core"
)

// ItemsChangedMessage tells consumers that the grocery list was mutated.
// It carries no item data; consumers reload the persisted collection.
type ItemsChangedMessage struct {
	Op        core.ChangeOp `json:"op"`
	ItemID    string        `json:"itemId,omitempty"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

var errMissingOp = errors.New("message has no op")

// NewItemsChangedMessage builds a message from a committed change.
func NewItemsChangedMessage(c core.Change) *ItemsChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ItemsChangedMessage{
		Op:        c.Op,
		ItemID:    c.ItemID,
		Count:     c.Count,
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ItemsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ItemsChangedMessageFromJSON creates a message from JSON bytes
func ItemsChangedMessageFromJSON(data []byte) (*ItemsChangedMessage, error) {
	var msg ItemsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op == "" {
		return nil, errMissingOp
	}
	return &msg, nil
}
