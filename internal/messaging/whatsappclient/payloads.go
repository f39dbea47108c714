package whatsappclient

import "unicode/utf8"

const (
	maxButtons     = 3
	maxButtonTitle = 20
)

// Button is a reply option of an interactive message.
type Button struct {
	ID    string
	Title string
}

// SendResponse is the Graph API reply to a send.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the provider id of the sent message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// TruncateTitle cuts a button title to the platform limit, counting runes.
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxButtonTitle {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxButtonTitle])
}

type messageRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type interactive struct {
	Type   string            `json:"type"`
	Body   interactiveBody   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveBody struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons []interactiveButton `json:"buttons"`
}

type interactiveButton struct {
	Type  string      `json:"type"`
	Reply replyButton `json:"reply"`
}

type replyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
