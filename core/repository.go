package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord is the stored credential record. PasswordHash is opaque output
// of HashPassword and never leaves the persistence/auth layer.
type UserRecord struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// UserProfile is the public projection returned by user endpoints (no hash).
type UserProfile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile strips the credential material from a record.
func (u *UserRecord) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository defines persistence operations for users. FindByUsername
// and Exists are the read-only surface the auth core consumes.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, username, fullName, email, passwordHash, role string) (*UserRecord, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	List(ctx context.Context, role string, skip, limit int) ([]UserProfile, error)
	DeleteByUsername(ctx context.Context, username string) (bool, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// FindByUsername returns (nil, nil) when no such user exists; usernames are
// matched case-sensitively.
func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, username, full_name, email, password_hash, role, created_at FROM users WHERE username=$1`
	var u UserRecord
	err := r.db.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	const q = `SELECT 1 FROM users WHERE username=$1`
	var one int
	if err := r.db.QueryRow(ctx, q, username).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PgUserRepository) Create(ctx context.Context, username, fullName, email, passwordHash, role string) (*UserRecord, error) {
	const q = `INSERT INTO users (username, full_name, email, password_hash, role) VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`
	u := UserRecord{
		Username:     username,
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := r.db.QueryRow(ctx, q, username, fullName, email, passwordHash, role).Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const q = `UPDATE users SET password_hash=$1 WHERE id=$2`
	tag, err := r.db.Exec(ctx, q, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("user not found")
	}
	return nil
}

// List returns user profiles, optionally filtered by role.
func (r *PgUserRepository) List(ctx context.Context, role string, skip, limit int) ([]UserProfile, error) {
	if skip < 0 || limit <= 0 {
		return nil, errors.New("invalid pagination")
	}
	var rows pgx.Rows
	var err error
	if role != "" {
		rows, err = r.db.Query(ctx, `SELECT id, username, full_name, email, role, created_at FROM users WHERE role=$1 ORDER BY id LIMIT $2 OFFSET $3`, role, limit, skip)
	} else {
		rows, err = r.db.Query(ctx, `SELECT id, username, full_name, email, role, created_at FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, skip)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]UserProfile, 0, limit)
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// DeleteByUsername removes a user; any bearer token already issued for that
// subject becomes orphaned and stops verifying on its next use.
func (r *PgUserRepository) DeleteByUsername(ctx context.Context, username string) (bool, error) {
	const q = `DELETE FROM users WHERE username=$1`
	tag, err := r.db.Exec(ctx, q, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgUserRepository) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users WHERE role='admin' LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
