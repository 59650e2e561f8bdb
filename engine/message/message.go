// Package message defines the envelope that flows through a rule chain.
package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the unit of data carried between nodes. Data is opaque JSON;
// Metadata is the mutable side-channel nodes use to route (branch_name,
// branch_id) without changing the handler contract.
type Message struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"msg_type"`
	Metadata  map[string]string `json:"metadata"`
	Data      json.RawMessage   `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// New builds a Message with a fresh id and the current timestamp.
func New(msgType string, data json.RawMessage) Message {
	return Message{
		ID:        uuid.New(),
		Type:      msgType,
		Metadata:  make(map[string]string),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Clone returns a value copy with its own metadata map so branch fan-out
// never lets two goroutines mutate the same metadata underneath each other.
// The id is preserved, per the fork/join contract.
func (m Message) Clone() Message {
	meta := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}
	data := make(json.RawMessage, len(m.Data))
	copy(data, m.Data)
	return Message{
		ID:        m.ID,
		Type:      m.Type,
		Metadata:  meta,
		Data:      data,
		Timestamp: m.Timestamp,
	}
}

// BranchName reads the metadata key the dispatcher uses for branch routing.
func (m Message) BranchName() (string, bool) {
	v, ok := m.Metadata["branch_name"]
	return v, ok
}

// SetBranchName tags the message for the dispatcher's successor selection.
func (m *Message) SetBranchName(name string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata["branch_name"] = name
}

// AsMap renders the message into the generic map shape bound as `msg` in CEL
// expressions (msg.id, msg.msg_type, msg.data.foo, ...). Template resolution
// uses JSON instead.
func (m Message) AsMap() (map[string]interface{}, error) {
	var data interface{}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return nil, err
		}
	}
	meta := make(map[string]interface{}, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}
	return map[string]interface{}{
		"id":        m.ID.String(),
		"msg_type":  m.Type,
		"metadata":  meta,
		"data":      data,
		"timestamp": m.Timestamp,
	}, nil
}

// JSON renders the full message (including envelope fields) as JSON bytes,
// used by template resolution's dotted-path lookups.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}
