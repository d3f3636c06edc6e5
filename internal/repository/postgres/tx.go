package repository

import (
	"context"
	"database/sql"
	"fmt"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/models"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/shopspring/decimal"
)

// settlementTx implements repository.SettlementTx over one *sql.Tx.
type settlementTx struct {
	tx *sql.Tx
}

func (t *settlementTx) LockUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
	SELECT user_id, username, name, contact, address, wallet, is_admin, created_at
	FROM users
	WHERE user_id = $1
	FOR UPDATE
	`
	var user models.User
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
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
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return &user, nil
}

func (t *settlementTx) LockPet(ctx context.Context, id int64) (*models.Pet, error) {
	query := `
	SELECT pet_id, name, species, breed, age, health_status, status, price, shelter_id, caretaker_id, created_at
	FROM pets
	WHERE pet_id = $1
	FOR UPDATE
	`
	var pet models.Pet
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&pet.ID,
		&pet.Name,
		&pet.Species,
		&pet.Breed,
		&pet.Age,
		&pet.HealthStatus,
		&pet.Status,
		&pet.Price,
		&pet.ShelterID,
		&pet.CaretakerID,
		&pet.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrPetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock pet %d: %w", id, err)
	}
	return &pet, nil
}

func (t *settlementTx) LockShopItem(ctx context.Context, id int64) (*models.ShopItem, error) {
	query := `
	SELECT item_id, shelter_id, name, description, price, stock_quantity
	FROM shop_items
	WHERE item_id = $1
	FOR UPDATE
	`
	var item models.ShopItem
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.ShelterID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.StockQuantity,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock shop item %d: %w", id, err)
	}
	return &item, nil
}

func (t *settlementTx) LockAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error) {
	query := `
	SELECT application_id, user_id, pet_id, status, COALESCE(reject_reason, ''), date
	FROM adopter_applications
	WHERE application_id = $1
	FOR UPDATE
	`
	var app models.AdopterApplication
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.UserID,
		&app.PetID,
		&app.Status,
		&app.RejectReason,
		&app.Date,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock application %d: %w", id, err)
	}
	return &app, nil
}

func (t *settlementTx) LockDonorApplication(ctx context.Context, id int64) (*models.DonorApplication, error) {
	query := `
	SELECT donor_app_id, user_id, pet_name, species, breed, age, COALESCE(description, ''), health_status, status, pet_id, application_date
	FROM donor_applications
	WHERE donor_app_id = $1
	FOR UPDATE
	`
	var app models.DonorApplication
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.UserID,
		&app.PetName,
		&app.Species,
		&app.Breed,
		&app.Age,
		&app.Description,
		&app.HealthStatus,
		&app.Status,
		&app.PetID,
		&app.Date,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock donor application %d: %w", id, err)
	}
	return &app, nil
}

func (t *settlementTx) CountVetRecords(ctx context.Context, petID int64) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vet_records WHERE pet_id = $1`, petID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vet records for pet %d: %w", petID, err)
	}
	return count, nil
}

func (t *settlementTx) HasApprovedDonation(ctx context.Context, userID, petID int64) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM donor_applications
		WHERE user_id = $1 AND pet_id = $2 AND status = 'approved'
	)
	`
	var exists bool
	err := t.tx.QueryRowContext(ctx, query, userID, petID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check donor history: %w", err)
	}
	return exists, nil
}

// DebitWallet subtracts amount from the buyer's wallet. The guard keeps
// wallet >= 0 even if a caller skipped the balance check.
func (t *settlementTx) DebitWallet(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
	UPDATE users
	SET wallet = wallet - $1
	WHERE user_id = $2
	AND wallet - $1 >= 0
	`
	res, err := t.tx.ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit wallet of user %d: %w", userID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrInsufficientFunds
	}
	return nil
}

func (t *settlementTx) CreditRevenue(ctx context.Context, shelterID int64, amount decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE shelters SET revenue = revenue + $1 WHERE shelter_id = $2`,
		amount, shelterID)
	if err != nil {
		return fmt.Errorf("failed to credit shelter %d: %w", shelterID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrShelterNotFound
	}
	return nil
}

func (t *settlementTx) SetPetStatus(ctx context.Context, petID int64, status models.PetStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE pets SET status = $1 WHERE pet_id = $2`,
		status, petID)
	if err != nil {
		return fmt.Errorf("failed to set status of pet %d: %w", petID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrPetNotFound
	}
	return nil
}

func (t *settlementTx) SetAdopterApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus, reason string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE adopter_applications SET status = $1, reject_reason = NULLIF($2, '') WHERE application_id = $3`,
		status, reason, id)
	if err != nil {
		return fmt.Errorf("failed to set status of application %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrApplicationNotFound
	}
	return nil
}

// DecrementStock is guarded the same way as DebitWallet: stock can never
// go negative at a commit boundary.
func (t *settlementTx) DecrementStock(ctx context.Context, itemID int64, quantity int32) error {
	query := `
	UPDATE shop_items
	SET stock_quantity = stock_quantity - $1
	WHERE item_id = $2
	AND stock_quantity >= $1
	`
	res, err := t.tx.ExecContext(ctx, query, quantity, itemID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock of item %d: %w", itemID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrInsufficientStock
	}
	return nil
}

func (t *settlementTx) InsertOrder(ctx context.Context, order *models.ShopOrder) (int64, error) {
	query := `
	INSERT INTO shop_orders (user_id, shelter_id, item_id, quantity, price, order_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING order_id
	`
	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		order.UserID,
		order.ShelterID,
		order.ItemID,
		order.Quantity,
		order.Price,
		order.OrderDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	order.ID = id
	return id, nil
}

func (t *settlementTx) InsertPet(ctx context.Context, pet *models.Pet) (int64, error) {
	query := `
	INSERT INTO pets (name, species, breed, age, health_status, status, price, shelter_id, caretaker_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING pet_id, created_at
	`
	err := t.tx.QueryRowContext(ctx, query,
		pet.Name,
		pet.Species,
		pet.Breed,
		pet.Age,
		pet.HealthStatus,
		pet.Status,
		pet.Price,
		pet.ShelterID,
		pet.CaretakerID,
	).Scan(&pet.ID, &pet.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pet: %w", err)
	}
	return pet.ID, nil
}

func (t *settlementTx) ApproveDonorApplication(ctx context.Context, id, petID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE donor_applications SET status = 'approved', pet_id = $1 WHERE donor_app_id = $2`,
		petID, id)
	if err != nil {
		return fmt.Errorf("failed to approve donor application %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrApplicationNotFound
	}
	return nil
}
