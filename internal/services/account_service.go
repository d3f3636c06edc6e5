package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/auth"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/redis"
	"github.com/chethans2005/pawPatrol/internal/models"
	"github.com/chethans2005/pawPatrol/internal/repository"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Username string
	Password string
	Name     string
	Contact  string
	Address  string
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (int64, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	GetMyOrders(ctx context.Context, userID int64) ([]models.ShopOrder, error)
	GetMyApplications(ctx context.Context, userID int64) ([]models.AdopterApplication, error)
	SubmitDonorApplication(ctx context.Context, app *models.DonorApplication) (int64, error)
}

type accountService struct {
	ledger      repository.Ledger
	redisClient redis.RedisClient
	jwtSecret   string
}

func NewAccountService(ledger repository.Ledger, redisClient redis.RedisClient, jwtSecret string) *accountService {
	return &accountService{
		ledger:      ledger,
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
	}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) (int64, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if in.Username == "" || in.Password == "" || in.Name == "" || in.Contact == "" {
		span.SetStatus(codes.Error, "missing required fields")
		return 0, pkgerrors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to hash password", "username", in.Username, "error", err)
		return 0, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Name:         in.Name,
		Contact:      in.Contact,
		Address:      in.Address,
	}
	if err := s.ledger.CreateUser(ctx, user); err != nil {
		span.RecordError(err)
		slog.Error("failed to create user", "username", in.Username, "error", err)
		return 0, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", in.Username)
	return user.ID, nil
}

func (s *accountService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.ledger.GetUserByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to login", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	tokenString, err := auth.GenerateToken(user.ID, user.IsAdmin, s.jwtSecret, time.Hour)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%d:token", user.ID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return tokenString, nil
}

func (s *accountService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	balanceKey := fmt.Sprintf("user:%d:balance", userID)
	balanceStr, err := s.redisClient.Get(ctx, balanceKey)
	if err == nil {
		balance, err := decimal.NewFromString(balanceStr)
		if err == nil {
			return balance, nil
		}
		slog.Error("failed to parse cached balance", "user_id", userID, "error", err)
	}

	user, err := s.ledger.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("failed to get balance", "user_id", userID, "error", err)
		return decimal.Zero, err
	}

	if err := s.redisClient.Set(ctx, balanceKey, user.Wallet.String(), 5*time.Minute); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}
	return user.Wallet, nil
}

func (s *accountService) AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "AddFunds")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "amount must be positive")
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	newBalance, err := s.ledger.AddFunds(ctx, userID, amount)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}

	if err := s.redisClient.Del(ctx, fmt.Sprintf("user:%d:balance", userID)); err != nil {
		slog.Error("failed to invalidate balance cache", "user_id", userID, "error", err)
	}

	slog.Info("funds added", "user_id", userID, "amount", amount, "new_balance", newBalance)
	return newBalance, nil
}

func (s *accountService) GetMyOrders(ctx context.Context, userID int64) ([]models.ShopOrder, error) {
	orders, err := s.ledger.ListUserOrders(ctx, userID)
	if err != nil {
		slog.Error("failed to get orders", "user_id", userID, "error", err)
		return nil, err
	}
	return orders, nil
}

func (s *accountService) GetMyApplications(ctx context.Context, userID int64) ([]models.AdopterApplication, error) {
	apps, err := s.ledger.ListUserApplications(ctx, userID)
	if err != nil {
		slog.Error("failed to get applications", "user_id", userID, "error", err)
		return nil, err
	}
	return apps, nil
}

func (s *accountService) SubmitDonorApplication(ctx context.Context, app *models.DonorApplication) (int64, error) {
	tracer := otel.Tracer("account-service")
	ctx, span := tracer.Start(ctx, "SubmitDonorApplication")
	defer span.End()

	id, err := s.ledger.CreateDonorApplication(ctx, app)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to submit donor application", "user_id", app.UserID, "error", err)
		return 0, err
	}

	slog.Info("donor application submitted", "donor_app_id", id, "user_id", app.UserID, "pet_name", app.PetName)
	return id, nil
}

// cachedJSON decodes a redis-cached JSON list; shared with the catalog
// service.
func cachedJSON[T any](ctx context.Context, client redis.RedisClient, key string) ([]T, bool) {
	raw, err := client.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Error("failed to unmarshal cached value", "key", key, "error", err)
		return nil, false
	}
	return out, true
}
