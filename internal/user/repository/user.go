package repository

import (
	"context"
	"errors"

	"jarcode/internal/common/db"
	"jarcode/internal/user/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUsernameUsed = errors.New("username already taken")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (int64, error)
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type MySQLUserRepository struct {
	db db.Database
}

func NewUserRepository(database db.Database) *MySQLUserRepository {
	return &MySQLUserRepository{db: database}
}

func (r *MySQLUserRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	if user == nil {
		return 0, errors.New("user is nil")
	}

	query := "INSERT INTO users (username, password_hash) VALUES (?, ?)"
	result, err := r.db.Exec(ctx, query, user.Username, user.PasswordHash)
	if err != nil {
		if db.UniqueViolationOn(err, "uk_users_username") {
			return 0, ErrUsernameUsed
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	user.ID = id
	return id, nil
}

func (r *MySQLUserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	query := "SELECT id, username, password_hash, created_at FROM users WHERE id = ?"
	return r.scanUser(r.db.QueryRow(ctx, query, userID))
}

func (r *MySQLUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := "SELECT id, username, password_hash, created_at FROM users WHERE username = ?"
	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *MySQLUserRepository) scanUser(row db.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
