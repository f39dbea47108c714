package messaging

import "strings"

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
// WhatsApp sends wa_id values without the plus sign.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "00") {
		digits = strings.TrimLeft(digits, "0")
		if digits == "" {
			return ""
		}
	}
	return "+" + digits
}

// WhatsAppRecipient converts a stored E.164 phone into the digits-only form
// the Graph API expects in the "to" field.
func WhatsAppRecipient(phone string) string {
	return sanitizePhone(phone)
}

func sanitizePhone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
