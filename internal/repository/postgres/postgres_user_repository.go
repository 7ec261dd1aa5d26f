package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const userColumns = `id, username, email, password_hash, role, balance, created_at`

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, span, done := track(ctx, "user-repository", "CreateUser")
	defer done(&err)

	if user == nil {
		err = pkgerrors.ErrNilUser
		return err
	}
	if strings.TrimSpace(user.Username) == "" {
		err = fmt.Errorf("%w: username is required", pkgerrors.ErrInvalidInput)
		return err
	}
	if len(user.Username) > 50 {
		err = fmt.Errorf("%w: username too long", pkgerrors.ErrInvalidInput)
		return err
	}
	if user.PasswordHash == "" {
		err = fmt.Errorf("%w: password_hash is required", pkgerrors.ErrInvalidInput)
		return err
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	span.SetAttributes(attribute.String("username", user.Username))

	query := `
		INSERT INTO users (id, username, email, password_hash, role, balance)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING balance, created_at`

	err = r.db.QueryRowxContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.Role).
		Scan(&user.Balance, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = pkgerrors.ErrUserAlreadyExists
			zap.S().Warnw("user already exists", "method", "Create", "username", user.Username)
			return err
		}
		zap.S().Errorw("failed to insert user", "method", "Create", "username", user.Username, "error", err)
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}

	zap.S().Infow("user created", "method", "Create", "user_id", user.ID)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user *models.User, err error) {
	ctx, span, done := track(ctx, "user-repository", "GetUserByID")
	defer done(&err)
	span.SetAttributes(attribute.String("user_id", id.String()))

	var u models.User
	err = r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("failed to get user by id: %w", err)
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user *models.User, err error) {
	ctx, _, done := track(ctx, "user-repository", "GetUserByUsername")
	defer done(&err)

	if username == "" {
		err = fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
		return nil, err
	}

	var u models.User
	err = r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		err = fmt.Errorf("failed to get user by username: %w", err)
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) GetBalance(ctx context.Context, userID uuid.UUID) (balance int64, err error) {
	ctx, _, done := track(ctx, "user-repository", "GetBalance")
	defer done(&err)

	err = r.db.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1`, userID)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return 0, err
	}
	if err != nil {
		err = fmt.Errorf("failed to get balance: %w", err)
		return 0, err
	}
	return balance, nil
}
