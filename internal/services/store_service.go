package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/auth"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/kafka"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/Martins1-1/logsonlinee-sub000/internal/repository"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	balanceCacheTTL = 30 * time.Second
	catalogCacheTTL = time.Minute
	requestKeyTTL   = 24 * time.Hour
)

type StoreService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Products(ctx context.Context) ([]models.Product, error)
	Checkout(ctx context.Context, userID, productID uuid.UUID, requestID string) (*models.Order, int64, error)
	Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type storeService struct {
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	redisClient redis.RedisClient
	events      kafka.EventPublisher
	jwt         *auth.JWTService
}

func NewStoreService(
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	redisClient redis.RedisClient,
	events kafka.EventPublisher,
	jwt *auth.JWTService,
) *storeService {
	return &storeService{
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		redisClient: redisClient,
		events:      events,
		jwt:         jwt,
	}
}

func (s *storeService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	ctx, span := otel.Tracer("store-service").Start(ctx, "Register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return nil, pkgerrors.ErrInvalidInput
	}

	existingUser, err := s.userRepo.GetByUsername(ctx, username)
	if existingUser != nil {
		span.SetStatus(codes.Error, "username already exists")
		zap.S().Warnw("username already exists", "username", username, "existing_id", existingUser.ID)
		return nil, pkgerrors.ErrUsernameExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		zap.S().Errorw("failed to check user existence", "username", username, "error", err)
		return nil, fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		zap.S().Errorw("failed to hash password", "username", username, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		if stderrors.Is(err, pkgerrors.ErrUserAlreadyExists) {
			return nil, pkgerrors.ErrUsernameExists
		}
		zap.S().Errorw("failed to create user in DB", "username", username, "error", err)
		return nil, fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	zap.S().Infow("user registered successfully", "user_id", user.ID, "username", username)
	return user, nil
}

func (s *storeService) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := otel.Tracer("store-service").Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		zap.S().Warnw("failed to login", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		zap.S().Warnw("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	tokenString, err := s.jwt.GenerateJWT(user.ID, user.Role)
	if err != nil {
		zap.S().Errorw("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, redis.TokenKey(user.ID.String()), tokenString, s.jwt.TTL()); err != nil {
		zap.S().Errorw("failed to cache JWT", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to store session", pkgerrors.ErrInternal)
	}

	zap.S().Infow("user logged in", "username", username, "user_id", user.ID)
	return tokenString, nil
}

func (s *storeService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.redisClient.Del(ctx, redis.TokenKey(userID.String())); err != nil {
		zap.S().Errorw("failed to revoke token", "user_id", userID, "error", err)
		return fmt.Errorf("%w: failed to revoke token", pkgerrors.ErrInternal)
	}
	return nil
}

func (s *storeService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, span := otel.Tracer("store-service").Start(ctx, "GetBalance")
	defer span.End()

	balanceKey := redis.BalanceKey(userID.String())
	balanceStr, err := s.redisClient.Get(ctx, balanceKey)
	if err == nil {
		var balance int64
		if err := json.Unmarshal([]byte(balanceStr), &balance); err != nil {
			zap.S().Warnw("failed to unmarshal cached balance", "user_id", userID, "error", err)
		} else {
			return balance, nil
		}
	}

	balance, err := s.userRepo.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		zap.S().Errorw("failed to get balance from Postgres", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	// A read that overlaps a credit can write back the old balance after
	// the creditor's Del. The Kafka consumer deletes the key again when the
	// event arrives, and the short TTL bounds whatever is left.
	if err := s.redisClient.Set(ctx, balanceKey, balance, balanceCacheTTL); err != nil {
		zap.S().Warnw("failed to cache balance", "user_id", userID, "error", err)
	}
	return balance, nil
}

// Products serves the catalog from a short-lived cache. Checkout never
// reads it: prices and availability are checked in the order transaction.
func (s *storeService) Products(ctx context.Context) ([]models.Product, error) {
	cached, err := s.redisClient.Get(ctx, redis.CatalogKey)
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal([]byte(cached), &products); err == nil {
			return products, nil
		}
		zap.S().Warnw("failed to unmarshal cached catalog")
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		zap.S().Warnw("failed to read catalog cache", "error", err)
	}

	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		zap.S().Errorw("failed to list products", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	if b, err := json.Marshal(products); err == nil {
		if err := s.redisClient.Set(ctx, redis.CatalogKey, string(b), catalogCacheTTL); err != nil {
			zap.S().Warnw("failed to cache catalog", "error", err)
		}
	}
	return products, nil
}

// Checkout debits the wallet for one product. requestID makes retries of
// the same click safe.
func (s *storeService) Checkout(ctx context.Context, userID, productID uuid.UUID, requestID string) (*models.Order, int64, error) {
	ctx, span := otel.Tracer("store-service").Start(ctx, "Checkout")
	defer span.End()

	if requestID == "" {
		return nil, 0, fmt.Errorf("%w: request id is required", pkgerrors.ErrInvalidInput)
	}

	requestKey := redis.RequestKey(userID.String(), requestID)
	ok, err := s.redisClient.SetNX(ctx, requestKey, "pending", requestKeyTTL)
	if err != nil {
		span.RecordError(err)
		zap.S().Errorw("failed to set request key", "request_id", requestID, "error", err)
		return nil, 0, fmt.Errorf("%w: failed to set request key", pkgerrors.ErrInternal)
	}
	if !ok {
		span.SetStatus(codes.Error, "request already processed")
		zap.S().Warnw("request already processed", "request_id", requestID, "user_id", userID)
		return nil, 0, pkgerrors.ErrRequestAlreadyProcessed
	}

	order := &models.Order{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		RequestID: requestID,
	}
	newBalance, err := s.orderRepo.Place(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order failed")
		if stderrors.Is(err, pkgerrors.ErrRequestAlreadyProcessed) {
			return nil, 0, err
		}
		s.release(ctx, requestKey)
		switch {
		case stderrors.Is(err, pkgerrors.ErrInsufficientFunds):
			zap.S().Warnw("insufficient funds", "user_id", userID, "product_id", productID)
			return nil, 0, err
		case stderrors.Is(err, pkgerrors.ErrProductNotFound):
			zap.S().Warnw("product not found", "product_id", productID)
			return nil, 0, err
		}
		zap.S().Errorw("failed to place order", "user_id", userID, "product_id", productID, "error", err)
		return nil, 0, fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}

	if err := s.redisClient.Set(ctx, requestKey, order.ID.String(), requestKeyTTL); err != nil {
		zap.S().Warnw("failed to mark request done", "request_id", requestID, "error", err)
	}
	if err := s.redisClient.Del(ctx, redis.BalanceKey(userID.String())); err != nil {
		zap.S().Warnw("failed to invalidate cached balance", "user_id", userID, "error", err)
	}
	s.publish(ctx, models.Event{
		Type:    models.EventOrderPlaced,
		UserID:  userID.String(),
		OrderID: order.ID.String(),
		Amount:  order.Price,
		Balance: newBalance,
	})

	zap.S().Infow("order placed", "order_id", order.ID, "user_id", userID, "product_id", productID, "price", order.Price, "new_balance", newBalance)
	return order, newBalance, nil
}

func (s *storeService) Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	ctx, span := otel.Tracer("store-service").Start(ctx, "Orders")
	defer span.End()

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		zap.S().Errorw("failed to get order history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	return orders, nil
}

// publish is best-effort. The debit is already committed.
func (s *storeService) publish(ctx context.Context, event models.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event.CreatedAt = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		zap.S().Errorw("failed to publish order event", "order_id", event.OrderID, "error", err)
	}
}

func (s *storeService) release(ctx context.Context, requestKey string) {
	if err := s.redisClient.Del(ctx, requestKey); err != nil {
		zap.S().Warnw("failed to release request key", "key", requestKey, "error", err)
	}
}
