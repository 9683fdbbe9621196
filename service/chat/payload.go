package chat

import "encoding/json"

// SentStatusType is the reserved payload type used for delivery-status
// echoes. A payload of this type must never itself trigger another
// delivery-status echo, or onMessageSent would recurse forever.
const SentStatusType = "message_sent"

// BotUserId is the reserved recipient id that routes a payload to message
// listeners only, never to a socket.
const BotUserId uint64 = 0

// Payload is the router's immutable wire message value. ParsePayload
// produces one from raw bytes; ToWire serializes it back. WithRecipient is
// the one mutation path, and it always returns a copy (used to build the single-
// recipient views needed for delivery-status and the undelivered queue).
type Payload struct {
	Sender     uint64   `json:"sender"`
	Recipients []uint64 `json:"recipients"`
	Type       string   `json:"type"`
	Body       string   `json:"body"`
	IsBinary   bool     `json:"-"`
	Valid      bool     `json:"-"`
	Error      string   `json:"-"`
}

type wirePayload struct {
	Type       string   `json:"type"`
	Sender     uint64   `json:"sender"`
	Recipients []uint64 `json:"recipients"`
	Body       string   `json:"body"`
}

// ParsePayload decodes a wire message. On any decoding or required-field
// failure it returns a Payload with Valid=false and a human-readable Error,
// rather than an error value — callers close the connection using the
// Payload's own diagnostic text.
func ParsePayload(raw []byte, isBinary bool) Payload {
	var w wirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return Payload{Valid: false, Error: "malformed json: " + err.Error()}
	}
	if w.Type == "" {
		return Payload{Valid: false, Error: "missing required field: type"}
	}
	if w.Recipients == nil {
		return Payload{Valid: false, Error: "missing required field: recipients"}
	}
	return Payload{
		Sender:     w.Sender,
		Recipients: append([]uint64{}, w.Recipients...),
		Type:       w.Type,
		Body:       w.Body,
		IsBinary:   isBinary,
		Valid:      true,
	}
}

// ToWire serializes p for transmission. Field order is irrelevant; a
// fresh ParsePayload(p.ToWire()) round-trips Sender/Recipients/Type/Body.
func (p Payload) ToWire() []byte {
	w := wirePayload{Type: p.Type, Sender: p.Sender, Recipients: p.Recipients, Body: p.Body}
	b, _ := json.Marshal(w)
	return b
}

// IsForBot reports whether this payload targets the bot sink exclusively:
// its recipient set contains the reserved UserId 0.
func (p Payload) IsForBot() bool {
	for _, r := range p.Recipients {
		if r == BotUserId {
			return true
		}
	}
	return false
}

// IsTypeOfSentStatus reports whether p is itself a delivery-status echo,
// the short-circuit that prevents onMessageSent from recursing.
func (p Payload) IsTypeOfSentStatus() bool {
	return p.Type == SentStatusType
}

// WithRecipient returns a copy of p addressed to exactly one recipient,
// used for the undelivered queue and for per-recipient delivery-status
// copies — never mutates p.
func (p Payload) WithRecipient(uid uint64) Payload {
	cp := p
	cp.Recipients = []uint64{uid}
	return cp
}

// CreateSentStatus builds the delivery-status payload acknowledging that
// original was delivered to recipient, addressed back to original's
// sender.
func CreateSentStatus(original Payload, recipient uint64) Payload {
	return Payload{
		Sender:     recipient,
		Recipients: []uint64{original.Sender},
		Type:       SentStatusType,
		Body:       original.Body,
		Valid:      true,
	}
}
