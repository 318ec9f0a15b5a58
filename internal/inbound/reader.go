// Package inbound turns raw RFC 5322 messages into inbound email events.
package inbound

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/spec-kit/account-requests/internal/domain"
)

// outlookConversationLen is the length of the conversation root inside an
// Outlook Thread-Index header.
const outlookConversationLen = 22

// ReadMessage parses a raw message. The body is the first text/plain part,
// or the first text/html part when no plain part exists.
func ReadMessage(r io.Reader) (domain.InboundEmail, error) {
	var email domain.InboundEmail

	mr, err := mail.CreateReader(r)
	if err != nil {
		return email, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	if email.Subject, err = h.Subject(); err != nil {
		return email, fmt.Errorf("decode subject: %w", err)
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	messageID, _ := h.MessageID()
	email.MessageID = domain.OptionalString(messageID)
	email.ConversationID = domain.OptionalString(conversationID(h, messageID))
	if date, err := h.Date(); err == nil && !date.IsZero() {
		email.ReceivedAt = domain.OptionalString(date.UTC().Format(time.RFC3339))
	}

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return email, fmt.Errorf("read part: %w", err)
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		switch contentType {
		case "text/plain":
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return email, fmt.Errorf("read body: %w", err)
			}
			email.Body = string(body)
			return email, nil
		case "text/html":
			if htmlBody != "" {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return email, fmt.Errorf("read body: %w", err)
			}
			htmlBody = string(body)
		}
	}
	email.Body = htmlBody
	return email, nil
}

// conversationID prefers the Outlook conversation root, then the first
// References entry, then In-Reply-To, and finally the message's own id.
func conversationID(h mail.Header, messageID string) string {
	if idx := strings.TrimSpace(h.Get("Thread-Index")); idx != "" {
		if raw, err := base64.StdEncoding.DecodeString(idx); err == nil && len(raw) >= outlookConversationLen {
			return hex.EncodeToString(raw[:outlookConversationLen])
		}
	}
	if refs, err := h.MsgIDList("References"); err == nil && len(refs) > 0 {
		return refs[0]
	}
	if replyTo, err := h.MsgIDList("In-Reply-To"); err == nil && len(replyTo) > 0 {
		return replyTo[0]
	}
	return messageID
}
