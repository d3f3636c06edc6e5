package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrPetNotFound             = errors.New("pet not found")
	ErrShelterNotFound         = errors.New("shelter not found")
	ErrItemNotFound            = errors.New("shop item not found")
	ErrApplicationNotFound     = errors.New("application not found")
	ErrNotPending              = errors.New("application is not pending")
	ErrPetUnavailable          = errors.New("pet is not available")
	ErrSelfAdoption            = errors.New("donor cannot adopt their own pet")
	ErrNoVetRecord             = errors.New("pet has no vet record")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrEmptyOrder              = errors.New("order has no lines")
	ErrTxConflict              = errors.New("transaction conflict, retry the request")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUsernameExists          = errors.New("username already exists")
	ErrNotAuthorized           = errors.New("not authorized")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInternal                = errors.New("internal error")
)

// InsufficientFundsError carries the figures a caller needs to top up.
type InsufficientFundsError struct {
	Required decimal.Decimal
	Balance  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, balance %s", e.Required, e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InsufficientStockError identifies the short line of a batch order.
type InsufficientStockError struct {
	ItemID    int64
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
