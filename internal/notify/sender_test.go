package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestComposeProducesReadableMessage(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	raw, err := Compose("support@lab.org", []string{"jane@uni.edu", "Bob <bob@uni.edu>"}, "Re: Account", "Hello\nWorld", at)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Account", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "jane@uni.edu", to[0].Address)
	assert.Equal(t, "bob@uni.edu", to[1].Address)

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Hello")
	assert.Contains(t, string(body), "World")
}

func TestComposeRejectsBadAddresses(t *testing.T) {
	_, err := Compose("not an address", []string{"a@b.com"}, "s", "b", time.Now())
	assert.Error(t, err)
	_, err = Compose("a@b.com", []string{"nope"}, "s", "b", time.Now())
	assert.Error(t, err)
}

func TestSMTPSenderDelivers(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.lab.org", Port: 587, User: "u", Password: "p", From: "support@lab.org"})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotAuth smtp.Auth
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo = addr, a, from, to
		return nil
	}

	require.NoError(t, s.Send(context.Background(), "Hi", "Body", []string{"jane@uni.edu"}))
	assert.Equal(t, "mail.lab.org:587", gotAddr)
	assert.Equal(t, "support@lab.org", gotFrom)
	assert.Equal(t, []string{"jane@uni.edu"}, gotTo)
	assert.NotNil(t, gotAuth)
}

func TestSMTPSenderFailures(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25, From: "support@lab.org"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	assert.ErrorIs(t, s.Send(context.Background(), "s", "b", nil), ErrNoRecipients)
	err := s.Send(context.Background(), "s", "b", []string{"a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "s", "b", []string{"a@b.com"}), context.Canceled)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), "Subject", "Body", []string{"a@b.com"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Subject", logs.All()[0].ContextMap()["subject"])
	assert.ErrorIs(t, s.Send(context.Background(), "s", "b", nil), ErrNoRecipients)
}
