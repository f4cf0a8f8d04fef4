package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the application users that may act as admins.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpsertUser(ctx context.Context, user models.User) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUserByEmail looks a user up by case-insensitive email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, email, name, created_at FROM users WHERE email=$1`, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpsertUser creates the user or refreshes the name of an existing email.
func (r *UserRepo) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	var stored models.User
	err := r.db.GetContext(ctx, &stored, `INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
        ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, email, name, created_at`, user.ID, normalizeEmail(user.Email), user.Name)
	return stored, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
