package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

const userColumns = `id, name, username, email, password, role, is_active, created_at`

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore expects the users table to exist; see internal/migrations.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, u User) (User, error) {
	const q = `
INSERT INTO users (name, username, email, password, role, is_active)
VALUES ($1, $2, $3, $4, $5::user_role, $6)
RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, q, u.Name, u.Username, u.Email, u.PasswordHash, string(u.Role), u.IsActive).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return User{}, dup
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID)
}

func (s *PostgresStore) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, excludeID)
}

func (s *PostgresStore) exists(ctx context.Context, q string, value string, excludeID int64) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, value, excludeID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check user uniqueness: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, c Changes) (User, error) {
	var sets []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if c.Name != nil {
		add("name = $%d", *c.Name)
	}
	if c.Username != nil {
		add("username = $%d", *c.Username)
	}
	if c.Email != nil {
		add("email = $%d", *c.Email)
	}
	if c.PasswordHash != nil {
		add("password = $%d", *c.PasswordHash)
	}
	if c.Role != nil {
		add("role = $%d::user_role", string(*c.Role))
	}
	if c.IsActive != nil {
		add("is_active = $%d", *c.IsActive)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns, strings.Join(sets, ", "), len(args))
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if dup := duplicateError(err); dup != nil {
			return User{}, dup
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]User, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	q := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0, f.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return out, total, nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR username ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}
	if len(f.Roles) > 0 {
		roles := make([]string, 0, len(f.Roles))
		for _, r := range f.Roles {
			roles = append(roles, string(r))
		}
		args = append(args, pq.Array(roles))
		conds = append(conds, fmt.Sprintf("role::text = ANY($%d)", len(args)))
	}
	if len(f.Statuses) > 0 {
		args = append(args, pq.Array(f.Statuses))
		conds = append(conds, fmt.Sprintf("is_active = ANY($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

// duplicateError maps a unique-constraint violation to the matching domain
// error, or returns nil for anything else.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return nil
	}
	switch pqErr.Constraint {
	case emailConstraint:
		return ErrDuplicateEmail
	case usernameConstraint:
		return ErrDuplicateUsername
	}
	return nil
}
