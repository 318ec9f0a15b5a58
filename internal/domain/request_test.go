package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRequestKey(t *testing.T) {
	tests := []struct {
		prefix string
		seq    int64
		want   string
	}{
		{"ACCT", 1, "ACCT-0001"},
		{"ACCT", 42, "ACCT-0042"},
		{"ACCT", 9999, "ACCT-9999"},
		{"ACCT", 12345, "ACCT-12345"},
		{"", 7, "ACCT-0007"},
		{"REQ", 3, "REQ-0003"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRequestKey(tt.prefix, tt.seq))
	}
}

func TestParseRequestKey(t *testing.T) {
	n, err := ParseRequestKey("ACCT-0042")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = ParseRequestKey("ACCT-12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n)

	for _, bad := range []string{"", "ACCT", "ACCT-", "ACCT-x1"} {
		_, err := ParseRequestKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestRequestStatusValid(t *testing.T) {
	for _, s := range RequestStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, RequestStatus("Resolved").Valid())
	assert.False(t, RequestStatus("open").Valid())
	assert.True(t, RequestStatusClosed.Terminal())
	assert.False(t, RequestStatusInProgress.Terminal())
}

func TestApplyStatusClosesAndReopens(t *testing.T) {
	req := &Request{Status: RequestStatusOpen}
	closedAt := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)

	req.ApplyStatus(RequestStatusClosed, closedAt)
	require.NotNil(t, req.ClosedAt)
	assert.Equal(t, closedAt, *req.ClosedAt)
	assert.Equal(t, closedAt, req.UpdatedAt)

	reopened := closedAt.Add(time.Hour)
	req.ApplyStatus(RequestStatusInProgress, reopened)
	assert.Nil(t, req.ClosedAt)
	assert.Equal(t, reopened, req.UpdatedAt)
}

func TestActorDisplayName(t *testing.T) {
	assert.Equal(t, "Nadia Clark", Actor{Email: "nadia.clark@x.com", Name: "Nadia Clark"}.DisplayName())
	assert.Equal(t, "nadia.clark", Actor{Email: "nadia.clark@x.com"}.DisplayName())
}
