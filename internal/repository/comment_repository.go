package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-requests/internal/domain"
)

// CommentRepository manages request timeline entries.
type CommentRepository interface {
	// Create appends the comment to the request named by RequestKey and stamps
	// the request's updated_at. Returns ErrNotFound for an unknown key and
	// ErrDuplicate when SourceMessageID has already been claimed.
	Create(ctx context.Context, comment *domain.Comment) error
	ListByRequest(ctx context.Context, requestKey string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	key := domain.NormalizeKey(comment.RequestKey)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
        INSERT INTO request_comments (request_id, author_email, author_name, comment_type, body, email_subject, source_message_id)
        SELECT id, $2, $3, $4, $5, $6, $7 FROM requests WHERE request_key=$1
        RETURNING id, request_id, created_at`
		err := tx.QueryRow(ctx, insert,
			key,
			comment.AuthorEmail,
			comment.AuthorName,
			comment.Type,
			comment.Body,
			comment.EmailSubject,
			comment.SourceMessageID,
		).Scan(&comment.ID, &comment.RequestID, &comment.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		comment.RequestKey = key
		if comment.SourceMessageID != nil {
			if _, err := tx.Exec(ctx, claimMessage, *comment.SourceMessageID, comment.RequestID, comment.ID); err != nil {
				return uniqueViolation(err)
			}
		}
		_, err = tx.Exec(ctx, `UPDATE requests SET updated_at=$1 WHERE id=$2`, comment.CreatedAt, comment.RequestID)
		return err
	})
}

func (r *commentRepository) ListByRequest(ctx context.Context, requestKey string) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.request_id, r.request_key, c.author_email, c.author_name, c.comment_type,
               c.body, c.email_subject, c.source_message_id, c.created_at
        FROM request_comments c JOIN requests r ON r.id = c.request_id
        WHERE r.request_key=$1 ORDER BY c.created_at ASC, c.id ASC`
	rows, err := r.pool.Query(ctx, query, domain.NormalizeKey(requestKey))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(
			&c.ID,
			&c.RequestID,
			&c.RequestKey,
			&c.AuthorEmail,
			&c.AuthorName,
			&c.Type,
			&c.Body,
			&c.EmailSubject,
			&c.SourceMessageID,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
