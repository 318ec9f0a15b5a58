package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-requests/internal/config"
	"github.com/spec-kit/account-requests/internal/domain"
)

func TestNotificationEmailsNewAssignee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	notifier := &fakeSender{}
	NewNotificationService(h.dispatcher, notifier, nil, config.NotificationConfig{NotifyAssignee: true}).RegisterHandlers()

	req := createRequest(t, h, "")
	_, err := h.requests.Assign(ctx, agent(), req.Key, strPtr("nadia@lab.org"))
	require.NoError(t, err)
	_, err = h.requests.Assign(ctx, agent(), req.Key, strPtr("agent@lab.org"))
	require.NoError(t, err)
	_, err = h.requests.Assign(ctx, agent(), req.Key, nil)
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"nadia@lab.org"}, notifier.sent[0].Recipients)
	assert.Equal(t, "[ACCT-0001] assigned to you", notifier.sent[0].Subject)
}

func TestNotificationDisabledSendsNothing(t *testing.T) {
	h := newHarness(t)
	notifier := &fakeSender{}
	NewNotificationService(h.dispatcher, notifier, nil, config.NotificationConfig{}).RegisterHandlers()

	req := createRequest(t, h, "")
	_, err := h.requests.Assign(context.Background(), domain.Actor{Email: "x@lab.org"}, req.Key, strPtr("nadia@lab.org"))
	require.NoError(t, err)
	assert.Empty(t, notifier.sent)
}
