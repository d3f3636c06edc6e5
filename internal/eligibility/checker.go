// Package eligibility holds the pure decision logic for settlements.
// The same checks run twice: once before any lock is taken (fast fail on
// stale reads) and again inside the transaction against locked rows,
// where the answer is authoritative.
package eligibility

import (
	"github.com/chethans2005/pawPatrol/internal/models"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
)

// AdoptionFacts is the snapshot CanApproveAdoption decides on. All
// fields must come from the same consistent read.
type AdoptionFacts struct {
	Application     *models.AdopterApplication
	Pet             *models.Pet
	Buyer           *models.User
	VetRecordCount  int
	BuyerDonatedPet bool
}

// CanApproveAdoption reports whether the application may settle. It
// mutates nothing and makes no calls; the first failed rule wins.
func CanApproveAdoption(facts AdoptionFacts) error {
	if facts.Application.Status != models.ApplicationPending {
		return pkgerrors.ErrNotPending
	}
	if facts.Pet.Status != models.PetAvailable {
		return pkgerrors.ErrPetUnavailable
	}
	if facts.BuyerDonatedPet {
		return pkgerrors.ErrSelfAdoption
	}
	if facts.VetRecordCount == 0 {
		return pkgerrors.ErrNoVetRecord
	}
	if facts.Pet.Price.IsPositive() && facts.Buyer.Wallet.LessThan(facts.Pet.Price) {
		return &pkgerrors.InsufficientFundsError{
			Required: facts.Pet.Price,
			Balance:  facts.Buyer.Wallet,
		}
	}
	return nil
}

// CanSettleOrderLine checks one (item, quantity) pair against current
// stock. Quantity aggregation across duplicate lines is the caller's
// job; this sees the summed figure.
func CanSettleOrderLine(item *models.ShopItem, requestedQty int32) error {
	if requestedQty <= 0 {
		return pkgerrors.ErrInvalidQuantity
	}
	if item.StockQuantity < requestedQty {
		return &pkgerrors.InsufficientStockError{
			ItemID:    item.ID,
			Requested: requestedQty,
			Available: item.StockQuantity,
		}
	}
	return nil
}
