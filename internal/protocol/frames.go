// Package protocol defines the chat frame protocol exchanged between clients,
// the gateway, and deployed agent containers.
package protocol

// Frame types from client to agent
const (
	TypeMessage = "message"
)

// Frame types from agent to client
const (
	TypeChunk = "chunk"
	TypeDone  = "done"
	TypeError = "error"
)

// InboundFrame is a frame received from the agent side, discriminated by Type.
// Unknown or malformed frames are dropped by the consumer, never fatal.
type InboundFrame struct {
	Type           string  `json:"type"`
	Content        string  `json:"content,omitempty"`
	ConversationID *string `json:"conversation_id,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// OutboundFrame is a user message sent toward the agent. ConversationID is
// always present on the wire: null until the agent has issued one via a done
// frame, then echoed verbatim on every following turn.
type OutboundFrame struct {
	Type           string  `json:"type"`
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

// Message builds an outbound user message frame. An empty conversation id is
// serialized as JSON null so the agent starts a fresh conversation.
func Message(text, conversationID string) OutboundFrame {
	f := OutboundFrame{Type: TypeMessage, Message: text}
	if conversationID != "" {
		f.ConversationID = &conversationID
	}
	return f
}
