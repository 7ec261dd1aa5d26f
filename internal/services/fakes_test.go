package service

import (
	"context"
	"sync"
	"testing"
	"time"

	ercaspaymocks "github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/ercaspay/mocks"
	kafkamocks "github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/kafka/mocks"
	redismocks "github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis/mocks"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
)

// memDB mimics the row-level guarantees of the Postgres repositories: Credit
// flips the flag and bumps the balance under one lock.
type memDB struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
	users    map[uuid.UUID]*models.User
	credits  int
}

func newMemDB() *memDB {
	return &memDB{
		payments: make(map[uuid.UUID]*models.Payment),
		users:    make(map[uuid.UUID]*models.User),
	}
}

func (db *memDB) addUser(username string) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &models.User{ID: uuid.New(), Username: username, Email: username + "@example.com", Role: models.RoleUser}
	db.users[u.ID] = u
	return u
}

func (db *memDB) balance(id uuid.UUID) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id].Balance
}

func (db *memDB) payment(ref string) *models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p := db.find(ref); p != nil {
		cp := *p
		return &cp
	}
	return nil
}

func (db *memDB) find(ref string) *models.Payment {
	for _, p := range db.payments {
		if p.InternalReference == ref || (p.GatewayReference != nil && *p.GatewayReference == ref) {
			return p
		}
	}
	return nil
}

type memPayments struct{ db *memDB }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	r.db.payments[p.ID] = &cp
	return nil
}

func (r memPayments) Ensure(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing := r.db.find(p.InternalReference)
	if existing == nil && p.GatewayReference != nil {
		existing = r.db.find(*p.GatewayReference)
	}
	if existing == nil {
		cp := *p
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		r.db.payments[cp.ID] = &cp
		existing = &cp
	}
	out := *existing
	return &out, nil
}

func (r memPayments) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := r.db.find(reference)
	if p == nil {
		return nil, pkgerrors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPayments) SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayReference string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return pkgerrors.ErrPaymentNotFound
	}
	p.GatewayReference = &gatewayReference
	return nil
}

func (r memPayments) MarkFailed(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok && !p.Credited {
		p.Status = models.PaymentFailed
	}
	return nil
}

func (r memPayments) MarkOrphaned(ctx context.Context, id uuid.UUID, amount int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok && !p.Credited {
		p.Status = models.PaymentCompleted
		p.Amount = amount
	}
	return nil
}

func (r memPayments) Credit(ctx context.Context, id, userID uuid.UUID, amount int64) (int64, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok || p.Credited {
		return 0, false, nil
	}
	u, ok := r.db.users[userID]
	if !ok {
		return 0, false, pkgerrors.ErrUserNotFound
	}
	now := time.Now()
	p.Credited = true
	p.CreditedAt = &now
	p.Status = models.PaymentCompleted
	p.UserID = uuid.NullUUID{UUID: userID, Valid: true}
	p.Amount = amount
	u.Balance += amount
	r.db.credits++
	return u.Balance, true, nil
}

func (r memPayments) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Payment
	for _, p := range r.db.payments {
		if p.UserID.Valid && p.UserID.UUID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPayments) ListOrphaned(ctx context.Context, limit int) ([]models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Payment
	for _, p := range r.db.payments {
		if p.Orphaned() {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.db.users[user.ID] = &cp
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r memUsers) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return 0, pkgerrors.ErrUserNotFound
	}
	return u.Balance, nil
}

type creditFixture struct {
	db       *memDB
	gateway  *ercaspaymocks.MockGateway
	cache    *redismocks.MockRedisClient
	events   *kafkamocks.MockEventPublisher
	creditor *WalletCreditor
	payments *paymentService
}

func newCreditFixture(t *testing.T) *creditFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &creditFixture{
		db:      newMemDB(),
		gateway: ercaspaymocks.NewMockGateway(ctrl),
		cache:   redismocks.NewMockRedisClient(ctrl),
		events:  kafkamocks.NewMockEventPublisher(ctrl),
	}
	f.cache.EXPECT().Del(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	f.creditor = NewWalletCreditor(f.gateway, memPayments{f.db}, memUsers{f.db}, f.cache, f.events, time.Second)
	f.payments = NewPaymentService(f.creditor, f.gateway, memPayments{f.db}, memUsers{f.db}, 100_000_000, "http://localhost/return")
	return f
}

// seedPayment stores an initiated top-up the way InitiateTopUp leaves it.
func (f *creditFixture) seedPayment(internalRef, gatewayRef string, userID *uuid.UUID, amount int64) *models.Payment {
	p := &models.Payment{
		ID:                uuid.New(),
		InternalReference: internalRef,
		Amount:            amount,
		Status:            models.PaymentPending,
	}
	if gatewayRef != "" {
		p.GatewayReference = &gatewayRef
	}
	if userID != nil {
		p.UserID = uuid.NullUUID{UUID: *userID, Valid: true}
	}
	_ = memPayments{f.db}.Create(context.Background(), p)
	return p
}
