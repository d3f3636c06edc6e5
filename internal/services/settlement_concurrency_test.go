package service

import (
	"context"
	"sync"
	"testing"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/auth"
	"github.com/chethans2005/pawPatrol/internal/models"
	"github.com/chethans2005/pawPatrol/internal/repository"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// memLedger is an in-memory Ledger for concurrency tests. One mutex
// plays the role of row locks: each ExecTx runs serialized against a
// staged copy of the state, and the copy only replaces the live state
// when fn succeeds. The embedded interface panics on reads these tests
// never make.
type memLedger struct {
	repository.Ledger

	mu       sync.Mutex
	users    map[int64]models.User
	pets     map[int64]models.Pet
	items    map[int64]models.ShopItem
	apps     map[int64]models.AdopterApplication
	revenue  map[int64]decimal.Decimal
	vetCount map[int64]int
	orders   []models.ShopOrder
	nextID   int64
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:    make(map[int64]models.User),
		pets:     make(map[int64]models.Pet),
		items:    make(map[int64]models.ShopItem),
		apps:     make(map[int64]models.AdopterApplication),
		revenue:  make(map[int64]decimal.Decimal),
		vetCount: make(map[int64]int),
		nextID:   1000,
	}
}

func (l *memLedger) snapshot() *memLedger {
	s := newMemLedger()
	for k, v := range l.users {
		s.users[k] = v
	}
	for k, v := range l.pets {
		s.pets[k] = v
	}
	for k, v := range l.items {
		s.items[k] = v
	}
	for k, v := range l.apps {
		s.apps[k] = v
	}
	for k, v := range l.revenue {
		s.revenue[k] = v
	}
	for k, v := range l.vetCount {
		s.vetCount[k] = v
	}
	s.orders = append(s.orders, l.orders...)
	s.nextID = l.nextID
	return s
}

func (l *memLedger) ExecTx(ctx context.Context, fn func(tx repository.SettlementTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := l.snapshot()
	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}
	l.users = staged.users
	l.pets = staged.pets
	l.items = staged.items
	l.apps = staged.apps
	l.revenue = staged.revenue
	l.vetCount = staged.vetCount
	l.orders = staged.orders
	l.nextID = staged.nextID
	return nil
}

func (l *memLedger) GetAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	app, ok := l.apps[id]
	if !ok {
		return nil, pkgerrors.ErrApplicationNotFound
	}
	return &app, nil
}

type memTx struct {
	state *memLedger
}

func (t *memTx) LockUser(ctx context.Context, id int64) (*models.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return &u, nil
}

func (t *memTx) LockPet(ctx context.Context, id int64) (*models.Pet, error) {
	p, ok := t.state.pets[id]
	if !ok {
		return nil, pkgerrors.ErrPetNotFound
	}
	return &p, nil
}

func (t *memTx) LockShopItem(ctx context.Context, id int64) (*models.ShopItem, error) {
	it, ok := t.state.items[id]
	if !ok {
		return nil, pkgerrors.ErrItemNotFound
	}
	return &it, nil
}

func (t *memTx) LockAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error) {
	a, ok := t.state.apps[id]
	if !ok {
		return nil, pkgerrors.ErrApplicationNotFound
	}
	return &a, nil
}

func (t *memTx) LockDonorApplication(ctx context.Context, id int64) (*models.DonorApplication, error) {
	return nil, pkgerrors.ErrApplicationNotFound
}

func (t *memTx) CountVetRecords(ctx context.Context, petID int64) (int, error) {
	return t.state.vetCount[petID], nil
}

func (t *memTx) HasApprovedDonation(ctx context.Context, userID, petID int64) (bool, error) {
	return false, nil
}

func (t *memTx) DebitWallet(ctx context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := t.state.users[userID]
	if !ok || u.Wallet.LessThan(amount) {
		return pkgerrors.ErrInsufficientFunds
	}
	u.Wallet = u.Wallet.Sub(amount)
	t.state.users[userID] = u
	return nil
}

func (t *memTx) CreditRevenue(ctx context.Context, shelterID int64, amount decimal.Decimal) error {
	t.state.revenue[shelterID] = t.state.revenue[shelterID].Add(amount)
	return nil
}

func (t *memTx) SetPetStatus(ctx context.Context, petID int64, status models.PetStatus) error {
	p, ok := t.state.pets[petID]
	if !ok {
		return pkgerrors.ErrPetNotFound
	}
	p.Status = status
	t.state.pets[petID] = p
	return nil
}

func (t *memTx) SetAdopterApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus, reason string) error {
	a, ok := t.state.apps[id]
	if !ok {
		return pkgerrors.ErrApplicationNotFound
	}
	a.Status = status
	a.RejectReason = reason
	t.state.apps[id] = a
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, itemID int64, quantity int32) error {
	it, ok := t.state.items[itemID]
	if !ok || it.StockQuantity < quantity {
		return pkgerrors.ErrInsufficientStock
	}
	it.StockQuantity -= quantity
	t.state.items[itemID] = it
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.ShopOrder) (int64, error) {
	t.state.nextID++
	order.ID = t.state.nextID
	t.state.orders = append(t.state.orders, *order)
	return order.ID, nil
}

func (t *memTx) InsertPet(ctx context.Context, pet *models.Pet) (int64, error) {
	t.state.nextID++
	pet.ID = t.state.nextID
	t.state.pets[pet.ID] = *pet
	return pet.ID, nil
}

func (t *memTx) ApproveDonorApplication(ctx context.Context, id, petID int64) error {
	return pkgerrors.ErrApplicationNotFound
}

func TestConcurrentOrders_LastUnitSellsOnce(t *testing.T) {
	ledger := newMemLedger()
	ledger.users[1] = models.User{ID: 1, Username: "alice", Wallet: decimal.RequireFromString("500.00")}
	ledger.users[2] = models.User{ID: 2, Username: "bob", Wallet: decimal.RequireFromString("500.00")}
	ledger.items[7] = models.ShopItem{ID: 7, ShelterID: 3, Name: "Cat Tree", Price: decimal.RequireFromString("120.00"), StockQuantity: 1}

	svc := NewSettlementService(ledger, newFakeRedis(), &fakeProducer{})

	callers := []auth.Caller{{UserID: 1}, {UserID: 2}}
	errs := make([]error, len(callers))
	var wg sync.WaitGroup
	for i, caller := range callers {
		wg.Add(1)
		go func(i int, caller auth.Caller) {
			defer wg.Done()
			_, errs[i] = svc.SettleOrder(context.Background(), caller, []models.OrderLine{{ItemID: 7, Quantity: 1}}, "")
		}(i, caller)
	}
	wg.Wait()

	successes, stockouts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case stderrors.Is(err, pkgerrors.ErrInsufficientStock):
			stockouts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockouts)

	assert.Equal(t, int32(0), ledger.items[7].StockQuantity)
	assert.Len(t, ledger.orders, 1)

	// Money is conserved: one wallet paid, the shelter got exactly that.
	spent := decimal.RequireFromString("1000.00").
		Sub(ledger.users[1].Wallet).
		Sub(ledger.users[2].Wallet)
	assert.True(t, spent.Equal(decimal.RequireFromString("120.00")))
	assert.True(t, ledger.revenue[3].Equal(decimal.RequireFromString("120.00")))
}

func TestConcurrentApprovals_SettleOnce(t *testing.T) {
	ledger := newMemLedger()
	ledger.users[1] = models.User{ID: 1, Username: "alice", Wallet: decimal.RequireFromString("200.00")}
	ledger.pets[7] = models.Pet{ID: 7, Name: "Rex", Status: models.PetAvailable, Price: decimal.RequireFromString("150.00"), ShelterID: 3}
	ledger.apps[10] = models.AdopterApplication{ID: 10, UserID: 1, PetID: 7, Status: models.ApplicationPending}
	ledger.vetCount[7] = 1

	svc := NewSettlementService(ledger, newFakeRedis(), &fakeProducer{})

	adminCaller := auth.Caller{UserID: 99, IsAdmin: true}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApproveAdoption(context.Background(), adminCaller, 10)
		}(i)
	}
	wg.Wait()

	successes, repeats := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case stderrors.Is(err, pkgerrors.ErrNotPending):
			repeats++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, repeats)

	// The wallet was debited exactly once.
	assert.True(t, ledger.users[1].Wallet.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, ledger.revenue[3].Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, models.PetAdopted, ledger.pets[7].Status)
	assert.Equal(t, models.ApplicationApproved, ledger.apps[10].Status)
}
