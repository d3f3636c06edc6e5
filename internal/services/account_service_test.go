package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	postgres "github.com/chethans2005/pawPatrol/internal/repository/postgres"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
)

const testSecret = "test-secret"

func newAccountService(t *testing.T) (*accountService, sqlmock.Sqlmock, *fakeRedis, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	rds := newFakeRedis()
	svc := NewAccountService(postgres.NewPostgresLedger(db), rds, testSecret)
	return svc, mock, rds, func() { db.Close() }
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs("alice", sqlmock.AnyArg(), "Alice", "555-0100", "12 Main St").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "wallet", "created_at"}).
				AddRow(int64(1), "0.00", now))

		id, err := svc.Register(ctx, RegisterInput{
			Username: "alice",
			Password: "hunter2",
			Name:     "Alice",
			Contact:  "555-0100",
			Address:  "12 Main St",
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingFields", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		_, err := svc.Register(ctx, RegisterInput{Username: "alice"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs("alice", sqlmock.AnyArg(), "Alice", "555-0100", "").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := svc.Register(ctx, RegisterInput{
			Username: "alice",
			Password: "hunter2",
			Name:     "Alice",
			Contact:  "555-0100",
		})
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	assert.NoError(t, err)

	loginColumns := []string{"user_id", "username", "password_hash", "name", "contact", "address", "wallet", "is_admin", "created_at"}

	t.Run("Success", func(t *testing.T) {
		svc, mock, rds, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(loginColumns).
				AddRow(int64(1), "alice", string(hash), "Alice", "555-0100", "12 Main St", "100.00", false, now))

		token, err := svc.Login(ctx, "alice", "hunter2")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.True(t, rds.has("user:1:token"))

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		})
		assert.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, float64(1), claims["user_id"])
		assert.Equal(t, false, claims["is_admin"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WrongPassword", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(loginColumns).
				AddRow(int64(1), "alice", string(hash), "Alice", "555-0100", "12 Main St", "100.00", false, now))

		_, err := svc.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(loginColumns))

		_, err := svc.Login(ctx, "ghost", "hunter2")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetBalance(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("CacheHit", func(t *testing.T) {
		svc, mock, rds, closeFn := newAccountService(t)
		defer closeFn()

		rds.store["user:1:balance"] = "75.50"

		balance, err := svc.GetBalance(ctx, 1)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("75.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CacheMissReadsLedger", func(t *testing.T) {
		svc, mock, rds, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE user_id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userColumns()).
				AddRow(int64(1), "alice", "Alice", "555-0100", "12 Main St", "200.00", false, now))

		balance, err := svc.GetBalance(ctx, 1)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("200.00")))
		assert.True(t, rds.has("user:1:balance"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAddFunds(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, mock, rds, closeFn := newAccountService(t)
		defer closeFn()

		rds.store["user:1:balance"] = "100.00"

		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET wallet = wallet + $1 WHERE user_id = $2 RETURNING wallet`)).
			WithArgs(decimal.RequireFromString("50.00"), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"wallet"}).AddRow("150.00"))

		newBalance, err := svc.AddFunds(ctx, 1, decimal.RequireFromString("50.00"))
		assert.NoError(t, err)
		assert.True(t, newBalance.Equal(decimal.RequireFromString("150.00")))

		// Stale cached balance must not survive the credit.
		assert.False(t, rds.has("user:1:balance"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		_, err := svc.AddFunds(ctx, 1, decimal.Zero)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, mock, _, closeFn := newAccountService(t)
		defer closeFn()

		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET wallet = wallet + $1`)).
			WithArgs(decimal.RequireFromString("50.00"), int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"wallet"}))

		_, err := svc.AddFunds(ctx, 404, decimal.RequireFromString("50.00"))
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
