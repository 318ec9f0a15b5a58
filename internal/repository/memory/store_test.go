package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestRequestKeysAreUniqueAndMonotonic(t *testing.T) {
	store := NewStore("ACCT")
	repo := store.Requests()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Create(ctx, &domain.Request{RequesterEmail: "a@b.com"}))
		}()
	}
	wg.Wait()

	list, err := repo.List(ctx, repository.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, list, n)

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	var prev int64
	for _, req := range list {
		seq, err := domain.ParseRequestKey(req.Key)
		require.NoError(t, err)
		assert.Greater(t, seq, prev, "key %s not above its predecessor", req.Key)
		prev = seq
	}
	assert.Equal(t, "ACCT-0001", list[0].Key)
	assert.Equal(t, "ACCT-0050", list[n-1].Key)
}

func TestRequestCreateDefaults(t *testing.T) {
	repo := NewStore("").Requests()
	req := &domain.Request{RequesterEmail: "a@b.com"}
	require.NoError(t, repo.Create(context.Background(), req))

	assert.Equal(t, "ACCT-0001", req.Key)
	assert.Equal(t, domain.RequestStatusOpen, req.Status)
	assert.Equal(t, domain.DefaultRequestType, req.RequestType)
	assert.Nil(t, req.ClosedAt)
}

func TestLookupReturnsEarliestMatch(t *testing.T) {
	repo := NewStore("ACCT").Requests()
	ctx := context.Background()

	first := &domain.Request{RequesterEmail: "a@b.com", ConversationID: strPtr("conv-1"), SourceEmailID: strPtr("m1")}
	second := &domain.Request{RequesterEmail: "c@d.com", ConversationID: strPtr("conv-1"), SourceEmailID: strPtr("m2")}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.GetByConversationID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, first.Key, got.Key)

	got, err = repo.GetByMessageID(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, second.Key, got.Key)

	_, err = repo.GetByMessageID(ctx, "m3")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByConversationID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMessageIDsAreClaimedOnce(t *testing.T) {
	store := NewStore("ACCT")
	requests, comments := store.Requests(), store.Comments()
	ctx := context.Background()

	req := &domain.Request{RequesterEmail: "a@b.com", SourceEmailID: strPtr("m1")}
	require.NoError(t, requests.Create(ctx, req))

	err := requests.Create(ctx, &domain.Request{RequesterEmail: "a@b.com", SourceEmailID: strPtr("m1")})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	reply := &domain.Comment{RequestKey: req.Key, AuthorEmail: "a@b.com", Type: domain.CommentTypeEmailReceived, Body: "hi", SourceMessageID: strPtr("m2")}
	require.NoError(t, comments.Create(ctx, reply))

	again := &domain.Comment{RequestKey: req.Key, AuthorEmail: "a@b.com", Type: domain.CommentTypeEmailReceived, Body: "hi", SourceMessageID: strPtr("m2")}
	assert.ErrorIs(t, comments.Create(ctx, again), repository.ErrDuplicate)

	err = requests.Create(ctx, &domain.Request{RequesterEmail: "x@y.com", SourceEmailID: strPtr("m2")})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	owner, err := requests.GetByMessageID(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, req.Key, owner.Key)

	list, err := comments.ListByRequest(ctx, req.Key)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", domain.StringValue(list[0].SourceMessageID))

	all, err := requests.List(ctx, repository.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentCreatesWithOneMessageIDKeepOne(t *testing.T) {
	repo := NewStore("ACCT").Requests()
	ctx := context.Background()

	const n = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, &domain.Request{RequesterEmail: "a@b.com", SourceEmailID: strPtr("retry-1")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, repository.ErrDuplicate):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, duplicates)
	list, err := repo.List(ctx, repository.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateStatusMaintainsCloseStamp(t *testing.T) {
	repo := NewStore("ACCT").Requests()
	ctx := context.Background()
	req := &domain.Request{RequesterEmail: "a@b.com"}
	require.NoError(t, repo.Create(ctx, req))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ok, err := repo.UpdateStatus(ctx, "acct-0001", domain.RequestStatusClosed, at)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := repo.GetByKey(ctx, req.Key)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, at, *got.ClosedAt)

	_, _ = repo.UpdateStatus(ctx, req.Key, domain.RequestStatusOpen, at.Add(time.Hour))
	got, _ = repo.GetByKey(ctx, req.Key)
	assert.Nil(t, got.ClosedAt)

	ok, err = repo.UpdateStatus(ctx, "ACCT-9999", domain.RequestStatusClosed, at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListFiltersAndCounts(t *testing.T) {
	repo := NewStore("ACCT").Requests()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Request{RequesterEmail: "jane@lab.org", RequesterName: strPtr("Jane Doe")}))
	require.NoError(t, repo.Create(ctx, &domain.Request{RequesterEmail: "bob@lab.org"}))
	_, err := repo.UpdateStatus(ctx, "ACCT-0002", domain.RequestStatusInProgress, time.Now())
	require.NoError(t, err)

	status := domain.RequestStatusInProgress
	list, err := repo.List(ctx, repository.RequestFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ACCT-0002", list[0].Key)

	list, err = repo.List(ctx, repository.RequestFilter{Search: strPtr("JANE")})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ACCT-0001", list[0].Key)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.RequestStatusOpen])
	assert.Equal(t, 1, counts[domain.RequestStatusInProgress])
}

func TestCommentsRequireExistingRequest(t *testing.T) {
	store := NewStore("ACCT")
	ctx := context.Background()

	err := store.Comments().Create(ctx, &domain.Comment{RequestKey: "ACCT-0001", Body: "x", Type: domain.CommentTypeNote})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Requests().Create(ctx, &domain.Request{RequesterEmail: "a@b.com"}))
	require.NoError(t, store.Comments().Create(ctx, &domain.Comment{RequestKey: "acct-0001", Body: "first", Type: domain.CommentTypeNote}))
	require.NoError(t, store.Comments().Create(ctx, &domain.Comment{RequestKey: "ACCT-0001", Body: "second", Type: domain.CommentTypeNote}))

	comments, err := store.Comments().ListByRequest(ctx, "ACCT-0001")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Body)
	assert.Equal(t, "second", comments[1].Body)
}

func TestAuditListIsNewestFirstAndFiltered(t *testing.T) {
	repo := NewStore("ACCT").Audit()
	ctx := context.Background()
	target := domain.TargetRequest

	entries := []domain.AuditEntry{
		{ActorEmail: "a@x.com", Action: domain.ActionStatusUpdate, TargetType: &target, TargetID: strPtr("ACCT-0001"), Success: true},
		{ActorEmail: "b@x.com", Action: domain.ActionLoginSuccess, Success: true},
		{ActorEmail: "a@x.com", Action: domain.ActionCommentCreate, TargetType: &target, TargetID: strPtr("ACCT-0001"), Success: true},
	}
	for i := range entries {
		require.NoError(t, repo.Append(ctx, &entries[i]))
	}

	all, err := repo.List(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.ActionCommentCreate, all[0].Action)

	prefix := "request."
	got, err := repo.List(ctx, repository.AuditFilter{ActionPrefix: &prefix, TargetID: strPtr("acct-0001")})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.List(ctx, repository.AuditFilter{ActorEmail: strPtr("B@X.com"), Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ActionLoginSuccess, got[0].Action)
}

func TestStaffLifecycle(t *testing.T) {
	repo := NewStore("ACCT").Staff()
	ctx := context.Background()

	member := &domain.StaffMember{Email: " Admin@Lab.org ", Name: "Admin", Role: domain.StaffRoleAdmin, Active: true, MustChangePassword: true}
	require.NoError(t, repo.Create(ctx, member))
	assert.Equal(t, "admin@lab.org", member.Email)
	assert.ErrorIs(t, repo.Create(ctx, &domain.StaffMember{Email: "admin@lab.org"}), repository.ErrDuplicate)

	ok, err := repo.SetPassword(ctx, "ADMIN@lab.org", "hash")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByEmail(ctx, "admin@lab.org")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.False(t, got.MustChangePassword)

	ok, _ = repo.SetActive(ctx, "nobody@lab.org", false)
	assert.False(t, ok)

	active := true
	list, err := repo.List(ctx, repository.StaffFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
