package live

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MsgInit    MessageType = "init"
	MsgUpdate  MessageType = "update"
	MsgDeleted MessageType = "deleted"
)

// Close codes sent by the feed server.
const (
	CloseNotFound  = 4404
	CloseForbidden = 4405
)

// Envelope is the frame pushed over a feed. init and update carry the full
// current value; deleted carries none.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Content json.RawMessage `json:"content"`
}

// NewEnvelope encodes content into an envelope of the given type.
func NewEnvelope(t MessageType, content any) (Envelope, error) {
	if content == nil {
		return Envelope{Type: t, Content: json.RawMessage("null")}, nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s content: %w", t, err)
	}
	return Envelope{Type: t, Content: data}, nil
}
