package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/observability"
	"github.com/chethans2005/pawPatrol/internal/repository"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ExecTx runs fn inside one database transaction. Row locks taken by fn
// are held until the commit or rollback issued here; fn must therefore
// acquire them in the global User -> Pet/ShopItem -> Application order.
func (s *PostgresLedger) ExecTx(ctx context.Context, fn func(tx repository.SettlementTx) error) error {
	var err error
	tracer := otel.Tracer("ledger")
	ctx, span := tracer.Start(ctx, "SettlementTx")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("ExecTx", status).Inc()
		observability.RepositoryDuration.WithLabelValues("ExecTx").Observe(time.Since(start).Seconds())
	}()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = fn(&settlementTx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "error", rbErr)
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
			return err
		}
		err = classify(err)
		return err
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		err = classify(fmt.Errorf("failed to commit transaction: %w", err))
		return err
	}
	return nil
}

// classify maps Postgres concurrency SQLSTATEs onto the retryable
// conflict sentinel so callers can tell a transient clash from a
// validation failure. Everything else passes through untouched.
func classify(err error) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", pkgerrors.ErrTxConflict, err)
		}
	}
	return err
}
