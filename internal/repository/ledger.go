package repository

import (
	"context"

	"github.com/chethans2005/pawPatrol/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger is the transactional row store behind every settlement path.
// ExecTx runs fn inside a single database transaction; any error from fn
// rolls everything back, so a partially applied settlement is impossible.
type Ledger interface {
	ExecTx(ctx context.Context, fn func(tx SettlementTx) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	GetPet(ctx context.Context, id int64) (*models.Pet, error)
	ListAvailablePets(ctx context.Context, shelterID *int64) ([]models.Pet, error)
	ListVetRecords(ctx context.Context, petID int64) ([]models.VetRecord, error)
	AddVetRecord(ctx context.Context, rec *models.VetRecord) error
	CountVetRecords(ctx context.Context, petID int64) (int, error)

	ListShelters(ctx context.Context) ([]models.Shelter, error)
	ListShopItems(ctx context.Context, shelterID *int64) ([]models.ShopItem, error)

	CreateAdopterApplication(ctx context.Context, userID, petID int64) (int64, error)
	GetAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error)
	ListUserApplications(ctx context.Context, userID int64) ([]models.AdopterApplication, error)
	HasApprovedDonation(ctx context.Context, userID, petID int64) (bool, error)

	CreateDonorApplication(ctx context.Context, app *models.DonorApplication) (int64, error)
	ListUserOrders(ctx context.Context, userID int64) ([]models.ShopOrder, error)
}

// SettlementTx is the tx-scoped view of the ledger. Lock methods take a
// row-level exclusive lock (SELECT ... FOR UPDATE) held until commit or
// rollback. Callers must acquire locks in the fixed global order:
// User row first, then Pet/ShopItem rows in ascending id, then the
// Application row. DebitWallet and DecrementStock are guarded so the
// wallet and stock invariants hold at every commit boundary.
type SettlementTx interface {
	LockUser(ctx context.Context, id int64) (*models.User, error)
	LockPet(ctx context.Context, id int64) (*models.Pet, error)
	LockShopItem(ctx context.Context, id int64) (*models.ShopItem, error)
	LockAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error)
	LockDonorApplication(ctx context.Context, id int64) (*models.DonorApplication, error)

	CountVetRecords(ctx context.Context, petID int64) (int, error)
	HasApprovedDonation(ctx context.Context, userID, petID int64) (bool, error)

	DebitWallet(ctx context.Context, userID int64, amount decimal.Decimal) error
	CreditRevenue(ctx context.Context, shelterID int64, amount decimal.Decimal) error
	SetPetStatus(ctx context.Context, petID int64, status models.PetStatus) error
	SetAdopterApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus, reason string) error
	DecrementStock(ctx context.Context, itemID int64, quantity int32) error
	InsertOrder(ctx context.Context, order *models.ShopOrder) (int64, error)
	InsertPet(ctx context.Context, pet *models.Pet) (int64, error)
	ApproveDonorApplication(ctx context.Context, id, petID int64) error
}
