package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/applauz/theatre-ticketing/internal/utils"
)

// User mirrors the 'users' table.  InstitutionID is set only for
// STAFF accounts and is the explicit, structured link to the venue
// they validate tickets for, never inferred from the role name.
type User struct {
	ID            uint64
	Email         string
	PasswordHash  string
	Role          string
	InstitutionID *uint64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its ID.  institutionID must be
// non-nil for STAFF and nil for other roles; the handler validates
// that pairing.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, institutionID *uint64, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, institution_id) VALUES (?,?,?,?)",
		email, hash, role, institutionID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var instID sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &instID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	if instID.Valid {
		id := uint64(instID.Int64)
		u.InstitutionID = &id
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,institution_id,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,institution_id,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id))
}
