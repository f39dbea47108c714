package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
)

// ErrInvalidPayload is returned for webhook bodies that are neither the
// business-account envelope nor the dashboard test shape.
var ErrInvalidPayload = errors.New("messaging: invalid webhook payload")

const businessAccountObject = "whatsapp_business_account"

// Batch is the set of messages carried by one webhook delivery.
type Batch struct {
	Messages []conversation.Inbound
	// Statuses counts delivery/read receipts, which we acknowledge and ignore.
	Statuses int
	// Dropped counts messages missing an id or sender.
	Dropped int
}

type webhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
	// Dashboard test deliveries carry a single change at the top level.
	Field string       `json:"field"`
	Value *changeValue `json:"value"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []webhookContact  `json:"contacts"`
	Messages         []webhookMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string       `json:"type"`
		ButtonReply *replyOption `json:"button_reply"`
		ListReply   *replyOption `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

type replyOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ParseWebhook decodes a WhatsApp Cloud API webhook body.
func ParseWebhook(body []byte) (*Batch, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var changes []changeValue
	switch {
	case env.Object == businessAccountObject:
		for _, entry := range env.Entry {
			for _, change := range entry.Changes {
				changes = append(changes, change.Value)
			}
		}
	case env.Field == "messages" && env.Value != nil:
		changes = append(changes, *env.Value)
	default:
		return nil, ErrInvalidPayload
	}

	batch := &Batch{}
	for _, value := range changes {
		batch.Statuses += len(value.Statuses)
		for _, msg := range value.Messages {
			inbound, ok := toInbound(msg, value.Contacts)
			if !ok {
				batch.Dropped++
				continue
			}
			batch.Messages = append(batch.Messages, inbound)
		}
	}
	return batch, nil
}

func toInbound(msg webhookMessage, contacts []webhookContact) (conversation.Inbound, bool) {
	from := NormalizeE164(msg.From)
	id := strings.TrimSpace(msg.ID)
	if id == "" || from == "" {
		return conversation.Inbound{}, false
	}
	return conversation.Inbound{
		MessageID: id,
		From:      from,
		Name:      contactName(msg.From, contacts),
		Timestamp: parseUnix(msg.Timestamp),
		Kind:      messageKind(msg),
	}, true
}

func messageKind(msg webhookMessage) conversation.Kind {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return conversation.TextMessage{Body: msg.Text.Body}
		}
	case "interactive":
		if msg.Interactive != nil {
			if r := msg.Interactive.ButtonReply; r != nil {
				return conversation.ButtonReply{ID: r.ID, Title: r.Title}
			}
			if r := msg.Interactive.ListReply; r != nil {
				return conversation.ButtonReply{ID: r.ID, Title: r.Title}
			}
		}
	case "button":
		if msg.Button != nil {
			return conversation.ButtonReply{ID: msg.Button.Payload, Title: msg.Button.Text}
		}
	}
	kind := msg.Type
	if kind == "" {
		kind = "unknown"
	}
	return conversation.Unsupported{Type: kind}
}

// contactName prefers the contact whose wa_id matches the sender.
func contactName(from string, contacts []webhookContact) string {
	want := sanitizePhone(from)
	for _, c := range contacts {
		if sanitizePhone(c.WaID) == want {
			return strings.TrimSpace(c.Profile.Name)
		}
	}
	if len(contacts) > 0 {
		return strings.TrimSpace(contacts[0].Profile.Name)
	}
	return ""
}

func parseUnix(value string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
