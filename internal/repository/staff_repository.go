package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-requests/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error)
	GetByID(ctx context.Context, id int64) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
	Count(ctx context.Context) (int, error)
	SetPassword(ctx context.Context, email, hash string) (bool, error)
	SetActive(ctx context.Context, email string, active bool) (bool, error)
	SetRole(ctx context.Context, email string, role domain.StaffRole) (bool, error)
	TouchLastLogin(ctx context.Context, email string, at time.Time) error
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Active *bool
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, email, name, password_hash, is_active, role, must_change_password, created_at, last_login_at`

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff_users (email, name, password_hash, is_active, role, must_change_password)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		domain.NormalizeEmail(staff.Email),
		strings.TrimSpace(staff.Name),
		staff.PasswordHash,
		staff.Active,
		staff.Role,
		staff.MustChangePassword,
	).Scan(&staff.ID, &staff.CreatedAt)
	return uniqueViolation(err)
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE email=$1`
	return r.fetchSingle(ctx, query, domain.NormalizeEmail(email))
}

func (r *staffRepository) GetByID(ctx context.Context, id int64) (*domain.StaffMember, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *staffRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.StaffMember, error) {
	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&staff.ID,
		&staff.Email,
		&staff.Name,
		&staff.PasswordHash,
		&staff.Active,
		&staff.Role,
		&staff.MustChangePassword,
		&staff.CreatedAt,
		&staff.LastLoginAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("is_active=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.ID,
			&staff.Email,
			&staff.Name,
			&staff.PasswordHash,
			&staff.Active,
			&staff.Role,
			&staff.MustChangePassword,
			&staff.CreatedAt,
			&staff.LastLoginAt,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

func (r *staffRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff_users`).Scan(&count)
	return count, err
}

func (r *staffRepository) SetPassword(ctx context.Context, email, hash string) (bool, error) {
	const query = `UPDATE staff_users SET password_hash=$1, must_change_password=FALSE WHERE email=$2`
	return r.execUpdate(ctx, query, hash, domain.NormalizeEmail(email))
}

func (r *staffRepository) SetActive(ctx context.Context, email string, active bool) (bool, error) {
	const query = `UPDATE staff_users SET is_active=$1 WHERE email=$2`
	return r.execUpdate(ctx, query, active, domain.NormalizeEmail(email))
}

func (r *staffRepository) SetRole(ctx context.Context, email string, role domain.StaffRole) (bool, error) {
	const query = `UPDATE staff_users SET role=$1 WHERE email=$2`
	return r.execUpdate(ctx, query, role, domain.NormalizeEmail(email))
}

func (r *staffRepository) TouchLastLogin(ctx context.Context, email string, at time.Time) error {
	_, err := r.execUpdate(ctx, `UPDATE staff_users SET last_login_at=$1 WHERE email=$2`, at, domain.NormalizeEmail(email))
	return err
}

func (r *staffRepository) execUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
