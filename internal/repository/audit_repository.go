package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-requests/internal/domain"
)

// DefaultAuditLimit caps audit queries that do not set a limit.
const DefaultAuditLimit = 200

// AuditFilter narrows audit queries. Set fields combine with AND.
type AuditFilter struct {
	ActorEmail   *string
	TargetID     *string
	ActionPrefix *string
	Limit        int
}

// Normalized returns a copy with lower-cased actor, upper-cased target and a
// positive limit.
func (f AuditFilter) Normalized() AuditFilter {
	out := AuditFilter{Limit: f.Limit}
	if f.ActorEmail != nil && strings.TrimSpace(*f.ActorEmail) != "" {
		actor := domain.NormalizeEmail(*f.ActorEmail)
		out.ActorEmail = &actor
	}
	if f.TargetID != nil && strings.TrimSpace(*f.TargetID) != "" {
		target := strings.ToUpper(strings.TrimSpace(*f.TargetID))
		out.TargetID = &target
	}
	if f.ActionPrefix != nil && *f.ActionPrefix != "" {
		prefix := *f.ActionPrefix
		out.ActionPrefix = &prefix
	}
	if out.Limit <= 0 {
		out.Limit = DefaultAuditLimit
	}
	return out
}

// AuditRepository stores append-only audit entries. There is deliberately no
// update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	const query = `
        INSERT INTO audit_log (event_id, timestamp, actor_email, actor_ip, action, target_type, target_id, details, success)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.EventID,
		entry.Timestamp,
		entry.ActorEmail,
		entry.ActorIP,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		details,
		entry.Success,
	).Scan(&entry.ID)
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error) {
	filter = filter.Normalized()
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ActorEmail != nil {
		args = append(args, *filter.ActorEmail)
		clauses = append(clauses, fmt.Sprintf("actor_email=$%d", len(args)))
	}
	if filter.TargetID != nil {
		args = append(args, *filter.TargetID)
		clauses = append(clauses, fmt.Sprintf("target_id=$%d", len(args)))
	}
	if filter.ActionPrefix != nil {
		args = append(args, escapeLike(*filter.ActionPrefix)+"%")
		clauses = append(clauses, fmt.Sprintf("action LIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT id, event_id, timestamp, actor_email, actor_ip, action, target_type, target_id, details, success
        FROM audit_log WHERE %s ORDER BY id DESC LIMIT %d`, strings.Join(clauses, " AND "), filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.Timestamp,
			&entry.ActorEmail,
			&entry.ActorIP,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&entry.Details,
			&entry.Success,
		); err != nil {
			return nil, err
		}
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
