// Package turns records each handled inbound message and the replies sent for it.
package turns

import (
	"errors"
	"time"

	"github.com/wolfman30/clinic-autoresponder/internal/catalog"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

// ErrTurnNotFound is returned when a turn or response does not exist.
var ErrTurnNotFound = errors.New("turn not found")

// Kind classifies how a turn was handled.
type Kind string

const (
	KindWelcome     Kind = "welcome"
	KindLanguage    Kind = "language"
	KindService     Kind = "service"
	KindAppointment Kind = "appointment"
	KindMatch       Kind = "match"
)

// Source tells whether a response was generated or typed by staff.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

// Turn is one inbound message with its ordered responses. StateFrom and
// StateTo are the patient states the turn was decided in and moves to.
type Turn struct {
	ID         string            `json:"id"`
	PatientID  string            `json:"patient_id"`
	MessageID  string            `json:"message_id,omitempty"`
	Content    string            `json:"content"`
	Language   patients.Language `json:"language,omitempty"`
	Matched    bool              `json:"matched"`
	Similarity *float64          `json:"similarity,omitempty"`
	ScriptID   string            `json:"script_id,omitempty"`
	Kind       Kind              `json:"kind"`
	StateFrom  patients.State    `json:"state_from,omitempty"`
	StateTo    patients.State    `json:"state_to,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Responses  []Response        `json:"responses"`
}

// Response is one outbound message. Buttons are kept so an unsent
// interactive reply can be resent as it was decided.
type Response struct {
	ID                string           `json:"id"`
	TurnID            string           `json:"turn_id"`
	Position          int              `json:"position"`
	Content           string           `json:"content"`
	Source            Source           `json:"source"`
	Buttons           []catalog.Button `json:"buttons,omitempty"`
	SentAt            *time.Time       `json:"sent_at,omitempty"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
}

// Sent reports whether the response was dispatched.
func (r Response) Sent() bool {
	return r.SentAt != nil
}
