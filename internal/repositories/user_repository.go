package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository mirrors identity-service users for recipient resolution.
type UserRepository interface {
	Upsert(ctx context.Context, user models.User) error
	Exists(ctx context.Context, userID string) (bool, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert inserts or updates a mirrored user row.
func (r *UserRepo) Upsert(ctx context.Context, user models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, full_name, profile_picture)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            username = EXCLUDED.username,
            full_name = EXCLUDED.full_name,
            profile_picture = EXCLUDED.profile_picture`,
		user.ID, user.Username, user.FullName, user.ProfilePicture)
	return err
}

// Exists checks whether a user id resolves to a known user.
func (r *UserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID)
	return exists, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, full_name, profile_picture, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
