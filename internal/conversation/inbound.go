package conversation

import (
	"time"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
)

// Inbound is one message received from a patient.
type Inbound struct {
	MessageID string
	From      string
	Name      string
	Timestamp time.Time
	Kind      Kind
}

// Kind is the payload of an inbound message. It is one of TextMessage,
// ButtonReply or Unsupported.
type Kind interface {
	kind() string
}

// TextMessage is free text typed by the patient.
type TextMessage struct {
	Body string
}

// ButtonReply is a tap on one of our interactive buttons.
type ButtonReply struct {
	ID    string
	Title string
}

// Unsupported covers media, locations, reactions and anything else we do not
// interpret.
type Unsupported struct {
	Type string
}

func (TextMessage) kind() string { return "text" }
func (ButtonReply) kind() string { return "button" }
func (Unsupported) kind() string { return "unsupported" }

// KindLabel names the kind for logs and metrics.
func KindLabel(k Kind) string {
	if k == nil {
		return "unsupported"
	}
	return k.kind()
}

// Reply is one outbound message. Buttons turn it into an interactive message.
type Reply struct {
	Text    string
	Buttons []catalog.Button
}

// Interactive reports whether the reply carries buttons.
func (r Reply) Interactive() bool {
	return len(r.Buttons) > 0
}
