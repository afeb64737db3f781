// Package waha integrates with a WAHA-style WhatsApp automation gateway.
//
// This file defines the provider wire shapes consumed by the inbound webhook
// and helpers to normalize them. Payloads arrive loosely typed from the
// gateway; the types below pin down exactly the fields this subsystem reads.
package waha

import "strings"

// Provider address suffixes. The gateway reports senders as
// "<digits>@c.us" (individual) or "<digits>@s.whatsapp.net".
const (
	suffixCUs      = "@c.us"
	suffixWhatsapp = "@s.whatsapp.net"
)

// S3Location describes where the gateway stored a media attachment.
type S3Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Media is the optional attachment descriptor on an inbound message.
type Media struct {
	Mimetype string      `json:"mimetype"`
	Filename string      `json:"filename"`
	URL      string      `json:"url"`
	S3       *S3Location `json:"s3,omitempty"`
}

// MessagePayload is the message body of a webhook event.
type MessagePayload struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromMe   bool   `json:"fromMe"`
	Body     string `json:"body"`
	HasMedia bool   `json:"hasMedia"`
	Media    *Media `json:"media,omitempty"`
}

// Me identifies the session owner as reported by the gateway.
type Me struct {
	PushName string `json:"pushName"`
}

// WebhookEvent is the inbound webhook envelope posted by the gateway for each
// message event. Only the fields consumed by the webhook processor are mapped.
type WebhookEvent struct {
	Session string         `json:"session"`
	Me      Me             `json:"me"`
	Payload MessagePayload `json:"payload"`
}

// CanonicalPhone reduces a provider sender address to a bare phone number:
// the provider suffix is stripped and any non-digit characters are dropped.
// "5511999990000@c.us" and "5511999990000" canonicalize to the same value.
func CanonicalPhone(addr string) string {
	addr = strings.TrimSuffix(addr, suffixCUs)
	addr = strings.TrimSuffix(addr, suffixWhatsapp)
	var b strings.Builder
	b.Grow(len(addr))
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChatAddress converts a canonical phone back into the provider address form
// expected by the gateway's send endpoint.
func ChatAddress(phone string) string {
	if strings.Contains(phone, "@") {
		return phone
	}
	return phone + suffixCUs
}
