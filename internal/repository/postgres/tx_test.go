package repository_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chethans2005/pawPatrol/internal/models"
	baserepo "github.com/chethans2005/pawPatrol/internal/repository"
	repository "github.com/chethans2005/pawPatrol/internal/repository/postgres"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newLedger(t *testing.T) (*repository.PostgresLedger, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return repository.NewPostgresLedger(db), mock, func() { db.Close() }
}

func TestExecTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("CommitOnSuccess", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error { return nil })
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			return fmt.Errorf("validation failed")
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeadlockMapsToConflict", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id`)).
			WithArgs(int64(1)).
			WillReturnError(&pq.Error{Code: "40P01"})
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			_, err := tx.LockUser(ctx, 1)
			return err
		})
		assert.ErrorIs(t, err, pkgerrors.ErrTxConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SerializationFailureOnCommitMapsToConflict", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error { return nil })
		assert.ErrorIs(t, err, pkgerrors.ErrTxConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ValidationErrorPassesThroughUnwrapped", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			return pkgerrors.ErrNoVetRecord
		})
		assert.ErrorIs(t, err, pkgerrors.ErrNoVetRecord)
		assert.NotErrorIs(t, err, pkgerrors.ErrTxConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementTx_Locks(t *testing.T) {
	ctx := context.Background()

	t.Run("LockUserNotFound", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE user_id = $1 FOR UPDATE`)).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			_, err := tx.LockUser(ctx, 42)
			return err
		})
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LockPetReturnsRow", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM pets WHERE pet_id = $1 FOR UPDATE`)).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{
				"pet_id", "name", "species", "breed", "age", "health_status", "status", "price", "shelter_id", "caretaker_id", "created_at",
			}).AddRow(int64(7), "Rex", "Dog", "Labrador", 3, "Healthy", "Available", "150.00", int64(2), nil, now))
		mock.ExpectCommit()

		var pet *models.Pet
		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			var err error
			pet, err = tx.LockPet(ctx, 7)
			return err
		})
		assert.NoError(t, err)
		assert.Equal(t, models.PetAvailable, pet.Status)
		assert.True(t, pet.Price.Equal(decimal.RequireFromString("150.00")))
		assert.Nil(t, pet.CaretakerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementTx_GuardedUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("DebitWalletGuardHit", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		amount := decimal.RequireFromString("500.00")
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET wallet = wallet - $1 WHERE user_id = $2 AND wallet - $1 >= 0`)).
			WithArgs(amount, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			return tx.DebitWallet(ctx, 1, amount)
		})
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DecrementStockGuardHit", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE shop_items SET stock_quantity = stock_quantity - $1 WHERE item_id = $2 AND stock_quantity >= $1`)).
			WithArgs(int32(3), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			return tx.DecrementStock(ctx, 5, 3)
		})
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DebitThenCreditCommits", func(t *testing.T) {
		ledger, mock, closeFn := newLedger(t)
		defer closeFn()

		amount := decimal.RequireFromString("150.00")
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET wallet = wallet - $1`)).
			WithArgs(amount, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE shelters SET revenue = revenue + $1 WHERE shelter_id = $2`)).
			WithArgs(amount, int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := ledger.ExecTx(ctx, func(tx baserepo.SettlementTx) error {
			if err := tx.DebitWallet(ctx, 1, amount); err != nil {
				return err
			}
			return tx.CreditRevenue(ctx, 2, amount)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
