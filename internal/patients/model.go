package patients

import (
	"strings"
	"time"
)

// Language is the conversation language a patient picked.
type Language string

const (
	LanguageArabic Language = "ARABIC"
	LanguageFrench Language = "FRENCH"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageArabic || l == LanguageFrench
}

// ParseLanguage accepts the stored enum or a short code ("ar", "fr").
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ARABIC", "AR":
		return LanguageArabic, true
	case "FRENCH", "FR":
		return LanguageFrench, true
	default:
		return "", false
	}
}

// State is the position of a patient in the scripted conversation flow.
type State string

const (
	StateWelcome                 State = "WELCOME"
	StateServiceSelection        State = "SERVICE_SELECTION"
	StateAppointmentConfirmation State = "APPOINTMENT_CONFIRMATION"
	StateGeneralConversation     State = "GENERAL_CONVERSATION"
)

// Patient is a WhatsApp contact, identified by phone number.
type Patient struct {
	ID               string     `json:"id"`
	Phone            string     `json:"phone"`
	Name             string     `json:"name,omitempty"`
	Language         Language   `json:"language,omitempty"`
	State            State      `json:"state"`
	LastServiceID    string     `json:"last_service_id,omitempty"`
	LastInteractedAt *time.Time `json:"last_interacted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int        `json:"version"`
}

// HasLanguage reports whether the patient already chose a language.
func (p *Patient) HasLanguage() bool {
	return p != nil && p.Language.Valid()
}

// Clone returns a copy that can be mutated without touching p.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastInteractedAt != nil {
		t := *p.LastInteractedAt
		c.LastInteractedAt = &t
	}
	return &c
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
