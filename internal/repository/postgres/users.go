package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/observability"
	"github.com/chethans2005/pawPatrol/internal/models"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func (s *PostgresLedger) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrInvalidInput
	}
	if user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username and password are required", pkgerrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO users (username, password_hash, name, contact, address, wallet, is_admin)
	VALUES ($1, $2, $3, $4, $5, 0.00, FALSE)
	RETURNING user_id, wallet, created_at
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		user.Name,
		user.Contact,
		user.Address,
	).Scan(&user.ID, &user.Wallet, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrUsernameExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresLedger) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
	SELECT user_id, username, name, contact, address, wallet, is_admin, created_at
	FROM users
	WHERE user_id = $1
	`
	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Contact,
		&user.Address,
		&user.Wallet,
		&user.IsAdmin,
		&user.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (s *PostgresLedger) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
	}

	query := `
	SELECT user_id, username, password_hash, name, contact, address, wallet, is_admin, created_at
	FROM users
	WHERE username = $1
	`
	var user models.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Name,
		&user.Contact,
		&user.Address,
		&user.Wallet,
		&user.IsAdmin,
		&user.CreatedAt,
	)

	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// AddFunds credits the wallet and returns the new balance. Amount must
// already be validated positive by the service.
func (s *PostgresLedger) AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var err error
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RepositoryCalls.WithLabelValues("AddFunds", status).Inc()
		observability.RepositoryDuration.WithLabelValues("AddFunds").Observe(time.Since(start).Seconds())
	}()

	query := `
	UPDATE users
	SET wallet = wallet + $1
	WHERE user_id = $2
	RETURNING wallet
	`
	var newBalance decimal.Decimal
	err = s.db.QueryRowContext(ctx, query, amount, userID).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return decimal.Zero, err
	}
	if err != nil {
		slog.Error("failed to add funds", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to add funds: %w", err)
		return decimal.Zero, err
	}
	return newBalance, nil
}
