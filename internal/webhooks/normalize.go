// Package webhooks turns gateway webhook payloads into orchestrator messages
// and runs them in the background.
package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/orchestrator"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

// chat id suffixes used by WhatsApp for direct chats
var directSuffixes = []string{"@c.us", "@s.whatsapp.net"}

// WAHAEvent is the subset of a WAHA webhook we read.
type WAHAEvent struct {
	Event   string      `json:"event"`
	Session string      `json:"session"`
	Payload WAHAMessage `json:"payload"`
}

type WAHAMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body"`
	To        string `json:"to"`
	HasMedia  bool   `json:"hasMedia"`
	Broadcast bool   `json:"broadcast"`
}

// ParseWAHA decodes a WAHA webhook body. Events that are not customer text
// messages yield no messages.
func ParseWAHA(body []byte) ([]orchestrator.Inbound, error) {
	var event WAHAEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode waha event")
	}
	if event.Event != "message" && event.Event != "message.any" {
		return nil, nil
	}
	msg := event.Payload
	if msg.FromMe || msg.Broadcast {
		return nil, nil
	}
	phone, ok := directPhone(msg.From)
	if !ok {
		return nil, nil
	}
	text := strings.TrimSpace(msg.Body)
	if text == "" {
		return nil, nil
	}
	return []orchestrator.Inbound{{
		MessageID:  msg.ID,
		RoutingKey: event.Session,
		From:       phone,
		Text:       text,
	}}, nil
}

// CloudEvent is the WhatsApp Cloud API webhook envelope.
type CloudEvent struct {
	Object string       `json:"object"`
	Entry  []CloudEntry `json:"entry"`
}

type CloudEntry struct {
	ID      string        `json:"id"`
	Changes []CloudChange `json:"changes"`
}

type CloudChange struct {
	Field string     `json:"field"`
	Value CloudValue `json:"value"`
}

type CloudValue struct {
	Metadata struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []CloudMessage `json:"messages"`
}

type CloudMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// ParseCloud decodes a Cloud API webhook body. One envelope may batch
// several messages; status callbacks carry none.
func ParseCloud(body []byte) ([]orchestrator.Inbound, error) {
	var event CloudEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cloud event")
	}
	var out []orchestrator.Inbound
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			routing := fields.DigitsOnly(change.Value.Metadata.DisplayPhoneNumber)
			if routing == "" {
				routing = change.Value.Metadata.PhoneNumberID
			}
			for _, msg := range change.Value.Messages {
				text := strings.TrimSpace(cloudText(msg))
				phone := fields.DigitsOnly(msg.From)
				if text == "" || phone == "" {
					continue
				}
				out = append(out, orchestrator.Inbound{
					MessageID:  msg.ID,
					RoutingKey: routing,
					From:       phone,
					Text:       text,
				})
			}
		}
	}
	return out, nil
}

func cloudText(msg CloudMessage) string {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return msg.Text.Body
		}
	case "button":
		if msg.Button != nil {
			return msg.Button.Text
		}
	case "interactive":
		if msg.Interactive == nil {
			return ""
		}
		if msg.Interactive.ButtonReply != nil {
			return msg.Interactive.ButtonReply.Title
		}
		if msg.Interactive.ListReply != nil {
			return msg.Interactive.ListReply.Title
		}
	}
	return ""
}

// directPhone extracts the digits of a one-to-one chat id. Groups, channels
// and status broadcasts are rejected.
func directPhone(chatID string) (string, bool) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" || strings.HasPrefix(chatID, "status@") {
		return "", false
	}
	if at := strings.IndexByte(chatID, '@'); at >= 0 {
		known := false
		for _, suffix := range directSuffixes {
			if strings.HasSuffix(chatID, suffix) {
				known = true
				break
			}
		}
		if !known {
			return "", false
		}
		chatID = chatID[:at]
	}
	// multi-device ids look like 2250700000000:12
	if colon := strings.IndexByte(chatID, ':'); colon >= 0 {
		chatID = chatID[:colon]
	}
	phone := fields.DigitsOnly(chatID)
	return phone, phone != ""
}
