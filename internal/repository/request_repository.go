package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-requests/internal/domain"
)

// RequestFilter captures dashboard search parameters.
type RequestFilter struct {
	Status *domain.RequestStatus
	Search *string
	Limit  int
	Offset int
}

// RequestRepository encapsulates request persistence.
type RequestRepository interface {
	// Create allocates the next request key and inserts the request. It
	// returns ErrDuplicate when SourceEmailID has already been claimed.
	Create(ctx context.Context, req *domain.Request) error
	GetByKey(ctx context.Context, key string) (*domain.Request, error)
	// GetByMessageID returns the request that an inbound message id opened or
	// was threaded onto.
	GetByMessageID(ctx context.Context, messageID string) (*domain.Request, error)
	// GetByConversationID returns the earliest-created match.
	GetByConversationID(ctx context.Context, conversationID string) (*domain.Request, error)
	// UpdateStatus and Assign report false when no request has the key.
	UpdateStatus(ctx context.Context, key string, status domain.RequestStatus, at time.Time) (bool, error)
	Assign(ctx context.Context, key string, assignee *string, at time.Time) (bool, error)
	List(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
	CountByStatus(ctx context.Context) (map[domain.RequestStatus]int, error)
}

type requestRepository struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewRequestRepository instantiates repository. Keys are rendered as prefix-NNNN.
func NewRequestRepository(pool *pgxpool.Pool, prefix string) RequestRepository {
	return &requestRepository{pool: pool, prefix: prefix}
}

const requestColumns = `id, request_key, status, requester_email, requester_name, organization, lab_name,
               request_type, original_subject, original_body, source_email_id, conversation_id,
               assigned_to, external_link, created_at, updated_at, closed_at`

const joinedRequestColumns = `r.id, r.request_key, r.status, r.requester_email, r.requester_name, r.organization,
               r.lab_name, r.request_type, r.original_subject, r.original_body, r.source_email_id,
               r.conversation_id, r.assigned_to, r.external_link, r.created_at, r.updated_at, r.closed_at`

const claimMessage = `INSERT INTO inbound_messages (message_id, request_id, comment_id) VALUES ($1, $2, $3)`

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	if req.Status == "" {
		req.Status = domain.RequestStatusOpen
	}
	if req.RequestType == "" {
		req.RequestType = domain.DefaultRequestType
	}
	// nextval is never rolled back, so a failed insert leaves a gap rather
	// than a reusable number.
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('request_key_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("allocate request key: %w", err)
		}
		req.Key = domain.FormatRequestKey(r.prefix, seq)

		const query = `
        INSERT INTO requests (request_key, status, requester_email, requester_name, organization, lab_name,
            request_type, original_subject, original_body, source_email_id, conversation_id, assigned_to, external_link)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, query,
			req.Key,
			req.Status,
			req.RequesterEmail,
			req.RequesterName,
			req.Organization,
			req.LabName,
			req.RequestType,
			req.OriginalSubject,
			req.OriginalBody,
			req.SourceEmailID,
			req.ConversationID,
			req.AssignedTo,
			req.ExternalLink,
		).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return uniqueViolation(err)
		}
		if req.SourceEmailID == nil {
			return nil
		}
		_, err = tx.Exec(ctx, claimMessage, *req.SourceEmailID, req.ID, nil)
		return uniqueViolation(err)
	})
}

func (r *requestRepository) GetByKey(ctx context.Context, key string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE request_key=$1`
	return r.fetchSingle(ctx, query, domain.NormalizeKey(key))
}

func (r *requestRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Request, error) {
	query := `SELECT ` + joinedRequestColumns + `
        FROM inbound_messages m JOIN requests r ON r.id = m.request_id
        WHERE m.message_id=$1`
	return r.fetchSingle(ctx, query, messageID)
}

func (r *requestRepository) GetByConversationID(ctx context.Context, conversationID string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC LIMIT 1`
	return r.fetchSingle(ctx, query, conversationID)
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, key string, status domain.RequestStatus, at time.Time) (bool, error) {
	var closedAt *time.Time
	if status.Terminal() {
		closedAt = &at
	}
	const query = `UPDATE requests SET status=$1, updated_at=$2, closed_at=$3 WHERE request_key=$4`
	cmd, err := r.pool.Exec(ctx, query, status, at, closedAt, domain.NormalizeKey(key))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) Assign(ctx context.Context, key string, assignee *string, at time.Time) (bool, error) {
	const query = `UPDATE requests SET assigned_to=$1, updated_at=$2 WHERE request_key=$3`
	cmd, err := r.pool.Exec(ctx, query, assignee, at, domain.NormalizeKey(key))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func buildListQuery(filter RequestFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + escapeLike(strings.ToLower(strings.TrimSpace(*filter.Search))) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(requester_email) LIKE %s OR LOWER(COALESCE(requester_name, '')) LIKE %s OR LOWER(request_key) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM requests WHERE %s ORDER BY created_at DESC, id DESC`,
		requestColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}
	return query, args
}

func (r *requestRepository) CountByStatus(ctx context.Context) (map[domain.RequestStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.RequestStatus]int, len(domain.RequestStatuses))
	for rows.Next() {
		var (
			status domain.RequestStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var req domain.Request
	if err := row.Scan(
		&req.ID,
		&req.Key,
		&req.Status,
		&req.RequesterEmail,
		&req.RequesterName,
		&req.Organization,
		&req.LabName,
		&req.RequestType,
		&req.OriginalSubject,
		&req.OriginalBody,
		&req.SourceEmailID,
		&req.ConversationID,
		&req.AssignedTo,
		&req.ExternalLink,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
