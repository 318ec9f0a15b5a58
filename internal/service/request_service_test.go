package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-requests/internal/domain"
)

func createRequest(t *testing.T, h *harness, subject string) *domain.Request {
	t.Helper()
	req, err := h.requests.Create(context.Background(), CreateRequestInput{
		RequesterEmail:  "Jane.Doe@uni.edu",
		RequesterName:   strPtr("Jane Doe"),
		OriginalSubject: domain.OptionalString(subject),
	})
	require.NoError(t, err)
	return req
}

func TestCreateAssignsSequentialKeys(t *testing.T) {
	h := newHarness(t)
	first := createRequest(t, h, "")
	second := createRequest(t, h, "")

	assert.Equal(t, "ACCT-0001", first.Key)
	assert.Equal(t, "ACCT-0002", second.Key)
	assert.Equal(t, "jane.doe@uni.edu", first.RequesterEmail)
	assert.Equal(t, domain.RequestStatusOpen, first.Status)
	assert.Nil(t, first.ClosedAt)
}

func TestCreateDefaultsMissingEmail(t *testing.T) {
	h := newHarness(t)
	req, err := h.requests.Create(context.Background(), CreateRequestInput{RequesterName: strPtr("No Email")})
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownEmail, req.RequesterEmail)
}

func TestGetNormalizesKeyAndReportsMissing(t *testing.T) {
	h := newHarness(t)
	req := createRequest(t, h, "")

	got, err := h.requests.Get(context.Background(), " acct-0001 ")
	require.NoError(t, err)
	assert.Equal(t, req.Key, got.Key)

	_, err = h.requests.Get(context.Background(), "ACCT-9999")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestUpdateStatusMaintainsCloseStamp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")

	h.clock.t = h.clock.t.Add(time.Hour)
	closed, err := h.requests.UpdateStatus(ctx, agent(), req.Key, domain.RequestStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, h.clock.t, *closed.ClosedAt)

	stored, err := h.requests.Get(ctx, req.Key)
	require.NoError(t, err)
	require.NotNil(t, stored.ClosedAt)
	assert.Equal(t, domain.RequestStatusClosed, stored.Status)

	reopened, err := h.requests.UpdateStatus(ctx, agent(), req.Key, domain.RequestStatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	stored, err = h.requests.Get(ctx, req.Key)
	require.NoError(t, err)
	assert.Nil(t, stored.ClosedAt)
	assert.Equal(t, domain.RequestStatusInProgress, stored.Status)

	comments, err := h.store.Comments().ListByRequest(ctx, req.Key)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, domain.CommentTypeActivityLog, comments[0].Type)
	assert.Equal(t, "Changed status to: Closed", comments[0].Body)
	assert.Equal(t, "Changed status to: In Progress", comments[1].Body)

	entries, err := h.recorder.ForRequest(ctx, req.Key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionStatusUpdate, entries[0].Action)
	assert.Equal(t, domain.RequestStatusClosed, entries[0].Details["from"])
	assert.Equal(t, domain.RequestStatusInProgress, entries[0].Details["to"])
}

func TestUpdateStatusRejectsUnknownStatusAndKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")

	_, err := h.requests.UpdateStatus(ctx, agent(), req.Key, domain.RequestStatus("Resolved"))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = h.requests.UpdateStatus(ctx, agent(), "ACCT-0404", domain.RequestStatusClosed)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))

	assert.Empty(t, h.auditActions(t))
}

func TestAssignWritesActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedStaff(t, SeedMember{Email: "nadia@lab.org", Name: "Nadia Clark", Role: domain.StaffRoleUser})
	req := createRequest(t, h, "")

	assigned, err := h.requests.Assign(ctx, agent(), req.Key, strPtr(" Nadia@Lab.org "))
	require.NoError(t, err)
	assert.Equal(t, "nadia@lab.org", domain.StringValue(assigned.AssignedTo))

	_, err = h.requests.Assign(ctx, agent(), req.Key, strPtr("ghost.writer@else.org"))
	require.NoError(t, err)

	cleared, err := h.requests.Assign(ctx, agent(), req.Key, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)

	comments, err := h.store.Comments().ListByRequest(ctx, req.Key)
	require.NoError(t, err)
	bodies := make([]string, 0, len(comments))
	for _, c := range comments {
		bodies = append(bodies, c.Body)
	}
	assert.Equal(t, []string{"Assigned to: Nadia Clark", "Assigned to: Ghost Writer", "Unassigned"}, bodies)

	_, err = h.requests.Assign(ctx, agent(), "ACCT-0404", nil)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")

	comment, err := h.requests.AddComment(ctx, agent(), req.Key, "  Called the PI  ")
	require.NoError(t, err)
	assert.Equal(t, "Called the PI", comment.Body)
	assert.Equal(t, domain.CommentTypeNote, comment.Type)
	assert.Equal(t, "Agent Smith", domain.StringValue(comment.AuthorName))

	_, err = h.requests.AddComment(ctx, agent(), req.Key, "   ")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = h.requests.AddComment(ctx, agent(), "ACCT-0404", "note")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))

	assert.Equal(t, []domain.AuditAction{domain.ActionCommentCreate}, h.auditActions(t))
}

func TestSendEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	withSubject := createRequest(t, h, "Jane Doe is requesting an account")
	withoutSubject := createRequest(t, h, "")

	comment, err := h.requests.SendEmail(ctx, agent(), withSubject.Key, SendEmailInput{
		To:   []string{"jane.doe@uni.edu", " ", "pi@uni.edu"},
		Body: "Your account is ready.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommentTypeEmailSent, comment.Type)
	assert.Equal(t, "Sent to: jane.doe@uni.edu, pi@uni.edu\n\nYour account is ready.", comment.Body)
	assert.Equal(t, "Re: Jane Doe is requesting an account", domain.StringValue(comment.EmailSubject))

	_, err = h.requests.SendEmail(ctx, agent(), withoutSubject.Key, SendEmailInput{
		To:   []string{"jane.doe@uni.edu"},
		Body: "Hello",
	})
	require.NoError(t, err)

	_, err = h.requests.SendEmail(ctx, agent(), withoutSubject.Key, SendEmailInput{
		To:      []string{"jane.doe@uni.edu"},
		Subject: "Custom",
		Body:    "Hello",
	})
	require.NoError(t, err)

	require.Len(t, h.sender.sent, 3)
	assert.Equal(t, []string{"jane.doe@uni.edu", "pi@uni.edu"}, h.sender.sent[0].Recipients)
	assert.Equal(t, DefaultReplySubject, h.sender.sent[1].Subject)
	assert.Equal(t, "Custom", h.sender.sent[2].Subject)
}

func TestSendEmailValidatesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")

	_, err := h.requests.SendEmail(ctx, agent(), req.Key, SendEmailInput{To: []string{" "}, Body: "x"})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = h.requests.SendEmail(ctx, agent(), req.Key, SendEmailInput{To: []string{"a@b.c"}})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = h.requests.SendEmail(ctx, agent(), "ACCT-0404", SendEmailInput{To: []string{"a@b.c"}, Body: "x"})
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
	assert.Empty(t, h.sender.sent)
}

func TestSendEmailFailureLeavesNoComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")
	h.sender.err = errors.New("relay refused")

	_, err := h.requests.SendEmail(ctx, agent(), req.Key, SendEmailInput{To: []string{"a@b.c"}, Body: "x"})
	assert.Equal(t, "UPSTREAM_FAILED", domainCode(t, err))

	comments, err := h.store.Comments().ListByRequest(ctx, req.Key)
	require.NoError(t, err)
	assert.Empty(t, comments)

	entries, err := h.recorder.ForRequest(ctx, req.Key)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionEmailSend, entries[0].Action)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "relay refused", entries[0].Details["error"])
}

func TestListAndCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createRequest(t, h, "")
		h.clock.t = h.clock.t.Add(time.Minute)
	}
	_, err := h.requests.Create(ctx, CreateRequestInput{RequesterEmail: "omar@x.org", RequesterName: strPtr("Omar Haddad")})
	require.NoError(t, err)
	_, err = h.requests.UpdateStatus(ctx, agent(), "ACCT-0002", domain.RequestStatusClosed)
	require.NoError(t, err)

	all, err := h.requests.List(ctx, RequestListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "ACCT-0004", all[0].Key)

	closed := domain.RequestStatusClosed
	onlyClosed, err := h.requests.List(ctx, RequestListFilter{Status: &closed})
	require.NoError(t, err)
	require.Len(t, onlyClosed, 1)
	assert.Equal(t, "ACCT-0002", onlyClosed[0].Key)

	search, err := h.requests.List(ctx, RequestListFilter{Search: strPtr("omar")})
	require.NoError(t, err)
	require.Len(t, search, 1)

	bogus := domain.RequestStatus("Pending")
	_, err = h.requests.List(ctx, RequestListFilter{Status: &bogus})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	counts, err := h.requests.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 3, counts.ByStatus[domain.RequestStatusOpen])
	assert.Equal(t, 0, counts.ByStatus[domain.RequestStatusInProgress])
	assert.Equal(t, 1, counts.ByStatus[domain.RequestStatusClosed])
}

func TestDetailIncludesTimelineAndRecordsView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := createRequest(t, h, "")
	_, err := h.requests.AddComment(ctx, agent(), req.Key, "first")
	require.NoError(t, err)

	detail, err := h.requests.Detail(ctx, agent(), "acct-0001")
	require.NoError(t, err)
	assert.Equal(t, req.Key, detail.Request.Key)
	assert.Len(t, detail.Comments, 1)
	require.Len(t, detail.Audit, 1)
	assert.Equal(t, domain.ActionCommentCreate, detail.Audit[0].Action)

	assert.Equal(t, []domain.AuditAction{domain.ActionCommentCreate, domain.ActionRequestView}, h.auditActions(t))
}

func TestOperationsSucceedWhenAuditStoreFails(t *testing.T) {
	h := newHarness(t, withAuditRepo(brokenAuditRepo{}))
	ctx := context.Background()
	req := createRequest(t, h, "")

	_, err := h.requests.UpdateStatus(ctx, agent(), req.Key, domain.RequestStatusInProgress)
	require.NoError(t, err)
	_, err = h.requests.Assign(ctx, agent(), req.Key, strPtr("someone@lab.org"))
	require.NoError(t, err)
	_, err = h.requests.AddComment(ctx, agent(), req.Key, "still works")
	require.NoError(t, err)
	_, err = h.requests.SendEmail(ctx, agent(), req.Key, SendEmailInput{To: []string{"a@b.c"}, Body: "x"})
	require.NoError(t, err)

	detail, err := h.requests.Detail(ctx, agent(), req.Key)
	require.NoError(t, err)
	assert.Len(t, detail.Comments, 4)
	assert.Empty(t, detail.Audit)
}
