package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dmchat/internal/apperror"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	u.ID = uuid.NewString()
	query := `INSERT INTO users (id, first_name, last_name, email, password)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at, status`

	err := r.db.QueryRowContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Password,
	).Scan(&u.CreatedAt, &u.Status)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	query := `SELECT id, first_name, last_name, email, password, profile_pic, status, last_seen, created_at
	          FROM users WHERE email = $1`

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
		&u.ProfilePic, &u.Status, &u.LastSeen, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	query := `SELECT id, first_name, last_name, email, password, profile_pic, status, last_seen, created_at
	          FROM users WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
		&u.ProfilePic, &u.Status, &u.LastSeen, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, err
	}
	return u, nil
}

// ListOthers returns every user except the caller, for the sidebar.
func (r *Repository) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	query := `SELECT id, first_name, last_name, email, profile_pic, status, last_seen, created_at
	          FROM users WHERE id <> $1 ORDER BY first_name, last_name`

	rows, err := r.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.FirstName, &u.LastName, &u.Email,
			&u.ProfilePic, &u.Status, &u.LastSeen, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*User, error) {
	query := `UPDATE users SET first_name = $1, last_name = $2, profile_pic = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, req.FirstName, req.LastName, req.ProfilePic, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NotFound("user", id)
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) UpdatePassword(ctx context.Context, id, hashed string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hashed, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// SetStatus records the durable presence flag. lastSeen is only meaningful
// for the offline transition; online writes leave the previous value alone.
func (r *Repository) SetStatus(ctx context.Context, id, status string, lastSeen time.Time) error {
	if status == StatusOffline {
		_, err := r.db.ExecContext(ctx,
			`UPDATE users SET status = $1, last_seen = $2 WHERE id = $3`,
			status, lastSeen, id)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $1 WHERE id = $2`, status, id)
	return err
}
