// Package memory provides in-process repository implementations used when no
// database is configured and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/repository"
)

// Store holds every table in memory behind a single lock.
type Store struct {
	mu       sync.RWMutex
	prefix   string
	now      func() time.Time
	seq      int64
	requests []*domain.Request
	comments []domain.Comment
	audit    []domain.AuditEntry
	staff    []*domain.StaffMember
	nextID   int64
	// messages maps each claimed inbound message id to its request key.
	messages map[string]string
}

// NewStore builds an empty store. Keys are rendered as prefix-NNNN.
func NewStore(prefix string) *Store {
	return &Store{prefix: prefix, now: time.Now, messages: map[string]string{}}
}

// claimed reports whether messageID already belongs to a request. Callers
// hold the write lock and claim the id in the same critical section.
func (s *Store) claimed(messageID *string) bool {
	if messageID == nil {
		return false
	}
	_, ok := s.messages[*messageID]
	return ok
}

// WithClock replaces the clock used for server-assigned timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Requests returns a RequestRepository backed by the store.
func (s *Store) Requests() repository.RequestRepository { return requestRepo{s} }

// Comments returns a CommentRepository backed by the store.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// Audit returns an AuditRepository backed by the store.
func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

// Staff returns a StaffRepository backed by the store.
func (s *Store) Staff() repository.StaffRepository { return staffRepo{s} }

type requestRepo struct{ s *Store }

func (r requestRepo) Create(_ context.Context, req *domain.Request) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Status == "" {
		req.Status = domain.RequestStatusOpen
	}
	if req.RequestType == "" {
		req.RequestType = domain.DefaultRequestType
	}
	if s.claimed(req.SourceEmailID) {
		return repository.ErrDuplicate
	}
	s.seq++
	now := s.now()
	req.ID = s.id()
	req.Key = domain.FormatRequestKey(s.prefix, s.seq)
	req.CreatedAt = now
	req.UpdatedAt = now
	stored := *req
	s.requests = append(s.requests, &stored)
	if req.SourceEmailID != nil {
		s.messages[*req.SourceEmailID] = req.Key
	}
	return nil
}

func (r requestRepo) GetByKey(_ context.Context, key string) (*domain.Request, error) {
	key = domain.NormalizeKey(key)
	return r.first(func(req *domain.Request) bool { return req.Key == key })
}

func (r requestRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.Request, error) {
	r.s.mu.RLock()
	key, ok := r.s.messages[messageID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByKey(ctx, key)
}

func (r requestRepo) GetByConversationID(_ context.Context, conversationID string) (*domain.Request, error) {
	return r.first(func(req *domain.Request) bool {
		return req.ConversationID != nil && *req.ConversationID == conversationID
	})
}

// first scans in insertion order, which is also creation order.
func (r requestRepo) first(match func(*domain.Request) bool) (*domain.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, req := range r.s.requests {
		if match(req) {
			out := *req
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r requestRepo) find(key string) *domain.Request {
	key = domain.NormalizeKey(key)
	for _, req := range r.s.requests {
		if req.Key == key {
			return req
		}
	}
	return nil
}

func (r requestRepo) UpdateStatus(_ context.Context, key string, status domain.RequestStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req := r.find(key)
	if req == nil {
		return false, nil
	}
	req.ApplyStatus(status, at)
	return true, nil
}

func (r requestRepo) Assign(_ context.Context, key string, assignee *string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req := r.find(key)
	if req == nil {
		return false, nil
	}
	req.AssignedTo = assignee
	req.UpdatedAt = at
	return true, nil
}

func (r requestRepo) List(_ context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := ""
	if filter.Search != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.Search))
	}
	var result []domain.Request
	for i := len(r.s.requests) - 1; i >= 0; i-- {
		req := r.s.requests[i]
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(req.RequesterEmail), search) &&
			!strings.Contains(strings.ToLower(domain.StringValue(req.RequesterName)), search) &&
			!strings.Contains(strings.ToLower(req.Key), search) {
			continue
		}
		result = append(result, *req)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r requestRepo) CountByStatus(_ context.Context) (map[domain.RequestStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.RequestStatus]int, len(domain.RequestStatuses))
	for _, req := range r.s.requests {
		counts[req.Status]++
	}
	return counts, nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	req := requestRepo{s}.find(comment.RequestKey)
	if req == nil {
		return repository.ErrNotFound
	}
	if s.claimed(comment.SourceMessageID) {
		return repository.ErrDuplicate
	}
	now := s.now()
	comment.ID = s.id()
	comment.RequestID = req.ID
	comment.RequestKey = req.Key
	comment.CreatedAt = now
	req.UpdatedAt = now
	s.comments = append(s.comments, *comment)
	if comment.SourceMessageID != nil {
		s.messages[*comment.SourceMessageID] = req.Key
	}
	return nil
}

func (r commentRepo) ListByRequest(_ context.Context, requestKey string) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	key := domain.NormalizeKey(requestKey)
	var result []domain.Comment
	for _, c := range r.s.comments {
		if c.RequestKey == key {
			result = append(result, c)
		}
	}
	return result, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.id()
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r auditRepo) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	filter = filter.Normalized()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.AuditEntry
	for i := len(r.s.audit) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		entry := r.s.audit[i]
		if filter.ActorEmail != nil && entry.ActorEmail != *filter.ActorEmail {
			continue
		}
		if filter.TargetID != nil && (entry.TargetID == nil || *entry.TargetID != *filter.TargetID) {
			continue
		}
		if filter.ActionPrefix != nil && !strings.HasPrefix(string(entry.Action), *filter.ActionPrefix) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

type staffRepo struct{ s *Store }

func (r staffRepo) find(email string) *domain.StaffMember {
	email = domain.NormalizeEmail(email)
	for _, m := range r.s.staff {
		if m.Email == email {
			return m
		}
	}
	return nil
}

func (r staffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(staff.Email) != nil {
		return repository.ErrDuplicate
	}
	staff.Email = domain.NormalizeEmail(staff.Email)
	staff.Name = strings.TrimSpace(staff.Name)
	staff.ID = r.s.id()
	staff.CreatedAt = r.s.now()
	stored := *staff
	r.s.staff = append(r.s.staff, &stored)
	return nil
}

func (r staffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if m := r.find(email); m != nil {
		out := *m
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) GetByID(_ context.Context, id int64) (*domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.staff {
		if m.ID == id {
			out := *m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.StaffMember
	for _, m := range r.s.staff {
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		result = append(result, *m)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r staffRepo) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.staff), nil
}

func (r staffRepo) update(email string, fn func(*domain.StaffMember)) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.find(email)
	if m == nil {
		return false
	}
	fn(m)
	return true
}

func (r staffRepo) SetPassword(_ context.Context, email, hash string) (bool, error) {
	return r.update(email, func(m *domain.StaffMember) {
		m.PasswordHash = hash
		m.MustChangePassword = false
	}), nil
}

func (r staffRepo) SetActive(_ context.Context, email string, active bool) (bool, error) {
	return r.update(email, func(m *domain.StaffMember) { m.Active = active }), nil
}

func (r staffRepo) SetRole(_ context.Context, email string, role domain.StaffRole) (bool, error) {
	return r.update(email, func(m *domain.StaffMember) { m.Role = role }), nil
}

func (r staffRepo) TouchLastLogin(_ context.Context, email string, at time.Time) error {
	r.update(email, func(m *domain.StaffMember) {
		stamp := at
		m.LastLoginAt = &stamp
	})
	return nil
}
