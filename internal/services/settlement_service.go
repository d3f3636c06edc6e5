package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/eligibility"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/auth"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/kafka"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/observability"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/redis"
	"github.com/chethans2005/pawPatrol/internal/models"
	"github.com/chethans2005/pawPatrol/internal/repository"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const settlementsTopic = "settlements"

// SettlementService owns every operation that moves money, stock or
// adoption state. Each call is one atomic transaction against the
// ledger; locks are acquired User -> Pet/ShopItem (ascending id) ->
// Application on every path so concurrent settlements cannot deadlock.
type SettlementService interface {
	ApplyForAdoption(ctx context.Context, caller auth.Caller, petID int64) (int64, error)
	ApproveAdoption(ctx context.Context, caller auth.Caller, applicationID int64) (*models.ApprovalResult, error)
	RejectAdoption(ctx context.Context, caller auth.Caller, applicationID int64, reason string) error
	SettleOrder(ctx context.Context, caller auth.Caller, lines []models.OrderLine, requestID string) (*models.OrderReceipt, error)
	AcceptDonorApplication(ctx context.Context, caller auth.Caller, donorAppID, shelterID int64) (int64, error)
}

type settlementService struct {
	ledger      repository.Ledger
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
}

func NewSettlementService(ledger repository.Ledger, redisClient redis.RedisClient, producer kafka.KafkaProducer) *settlementService {
	return &settlementService{
		ledger:      ledger,
		redisClient: redisClient,
		producer:    producer,
	}
}

func (s *settlementService) ApplyForAdoption(ctx context.Context, caller auth.Caller, petID int64) (int64, error) {
	tracer := otel.Tracer("settlement-service")
	ctx, span := tracer.Start(ctx, "ApplyForAdoption")
	defer span.End()

	pet, err := s.ledger.GetPet(ctx, petID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if pet.Status != models.PetAvailable {
		span.SetStatus(codes.Error, "pet unavailable")
		return 0, pkgerrors.ErrPetUnavailable
	}

	appID, err := s.ledger.CreateAdopterApplication(ctx, caller.UserID, petID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to create adoption application", "user_id", caller.UserID, "pet_id", petID, "error", err)
		return 0, err
	}

	slog.Info("adoption application submitted", "application_id", appID, "user_id", caller.UserID, "pet_id", petID)
	return appID, nil
}

func (s *settlementService) ApproveAdoption(ctx context.Context, caller auth.Caller, applicationID int64) (*models.ApprovalResult, error) {
	tracer := otel.Tracer("settlement-service")
	ctx, span := tracer.Start(ctx, "ApproveAdoption")
	span.SetAttributes(attribute.Int64("application_id", applicationID))
	defer span.End()

	if !caller.IsAdmin {
		return nil, pkgerrors.ErrNotAuthorized
	}

	// Fast-fail pre-check on an unlocked snapshot. Values can go stale
	// before the locks below are held, so the result is advisory only.
	app, err := s.ledger.GetAdopterApplication(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if app.Status != models.ApplicationPending {
		observability.SettlementOutcomes.WithLabelValues("approve_adoption", "validation_failed").Inc()
		return nil, pkgerrors.ErrNotPending
	}

	var result models.ApprovalResult
	err = s.ledger.ExecTx(ctx, func(tx repository.SettlementTx) error {
		buyer, err := tx.LockUser(ctx, app.UserID)
		if err != nil {
			return err
		}
		pet, err := tx.LockPet(ctx, app.PetID)
		if err != nil {
			return err
		}
		lockedApp, err := tx.LockAdopterApplication(ctx, applicationID)
		if err != nil {
			return err
		}

		// Authoritative re-check against the locked rows.
		vetCount, err := tx.CountVetRecords(ctx, pet.ID)
		if err != nil {
			return err
		}
		donated, err := tx.HasApprovedDonation(ctx, buyer.ID, pet.ID)
		if err != nil {
			return err
		}
		if err := eligibility.CanApproveAdoption(eligibility.AdoptionFacts{
			Application:     lockedApp,
			Pet:             pet,
			Buyer:           buyer,
			VetRecordCount:  vetCount,
			BuyerDonatedPet: donated,
		}); err != nil {
			return err
		}

		if pet.Price.IsPositive() {
			if err := tx.DebitWallet(ctx, buyer.ID, pet.Price); err != nil {
				return err
			}
			if err := tx.CreditRevenue(ctx, pet.ShelterID, pet.Price); err != nil {
				return err
			}
		}
		if err := tx.SetPetStatus(ctx, pet.ID, models.PetAdopted); err != nil {
			return err
		}
		if err := tx.SetAdopterApplicationStatus(ctx, applicationID, models.ApplicationApproved, ""); err != nil {
			return err
		}

		result = models.ApprovalResult{PetID: pet.ID, AmountCharged: pet.Price}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "approval failed")
		observability.SettlementOutcomes.WithLabelValues("approve_adoption", outcomeLabel(err)).Inc()
		slog.Error("adoption approval failed", "application_id", applicationID, "error", err)
		return nil, err
	}

	observability.SettlementOutcomes.WithLabelValues("approve_adoption", "success").Inc()
	slog.Info("adoption approved",
		"application_id", applicationID,
		"pet_id", result.PetID,
		"user_id", app.UserID,
		"amount_charged", result.AmountCharged)

	s.emitEvent(applicationID, map[string]interface{}{
		"event_type": "adoption_approved",
		"user_id":    app.UserID,
		"pet_id":     result.PetID,
		"amount":     result.AmountCharged.String(),
		"settled_at": time.Now().UTC().Format(time.RFC3339),
	})
	return &result, nil
}

func (s *settlementService) RejectAdoption(ctx context.Context, caller auth.Caller, applicationID int64, reason string) error {
	tracer := otel.Tracer("settlement-service")
	ctx, span := tracer.Start(ctx, "RejectAdoption")
	defer span.End()

	if !caller.IsAdmin {
		return pkgerrors.ErrNotAuthorized
	}
	if reason == "" {
		reason = "Not specified"
	}

	// No money or stock moves on rejection; only the application row is
	// locked.
	err := s.ledger.ExecTx(ctx, func(tx repository.SettlementTx) error {
		app, err := tx.LockAdopterApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return pkgerrors.ErrNotPending
		}
		return tx.SetAdopterApplicationStatus(ctx, applicationID, models.ApplicationRejected, reason)
	})
	if err != nil {
		span.RecordError(err)
		observability.SettlementOutcomes.WithLabelValues("reject_adoption", outcomeLabel(err)).Inc()
		return err
	}

	observability.SettlementOutcomes.WithLabelValues("reject_adoption", "success").Inc()
	slog.Info("adoption rejected", "application_id", applicationID, "reason", reason)
	return nil
}

func (s *settlementService) SettleOrder(ctx context.Context, caller auth.Caller, lines []models.OrderLine, requestID string) (*models.OrderReceipt, error) {
	tracer := otel.Tracer("settlement-service")
	ctx, span := tracer.Start(ctx, "SettleOrder")
	span.SetAttributes(
		attribute.Int64("user_id", caller.UserID),
		attribute.Int("line_count", len(lines)),
	)
	defer span.End()

	if len(lines) == 0 {
		return nil, pkgerrors.ErrEmptyOrder
	}
	for _, line := range lines {
		if line.ItemID <= 0 {
			return nil, fmt.Errorf("%w: item_id must be positive", pkgerrors.ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.ErrInvalidQuantity
		}
	}

	// Same-request resubmits are refused while the key lives; a failed
	// settlement releases it so the caller can retry.
	requestKey := fmt.Sprintf("request:%s", requestID)
	if requestID != "" {
		ok, err := s.redisClient.SetNX(ctx, requestKey, "pending", 24*time.Hour)
		if err != nil {
			slog.Error("failed to set request key", "request_id", requestID, "error", err)
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			span.SetStatus(codes.Error, "request already processed")
			return nil, pkgerrors.ErrRequestAlreadyProcessed
		}
	}

	// Duplicate item ids coalesce for locking and stock checks; each
	// input line still settles as its own order row.
	wanted := make(map[int64]int32)
	for _, line := range lines {
		wanted[line.ItemID] += line.Quantity
	}
	itemIDs := make([]int64, 0, len(wanted))
	for id := range wanted {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	var receipt models.OrderReceipt
	err := s.ledger.ExecTx(ctx, func(tx repository.SettlementTx) error {
		buyer, err := tx.LockUser(ctx, caller.UserID)
		if err != nil {
			return err
		}

		// Item rows lock in ascending id so two concurrent batches can
		// never hold locks in opposite order.
		items := make(map[int64]*models.ShopItem, len(itemIDs))
		total := decimal.Zero
		perShelter := make(map[int64]decimal.Decimal)
		for _, itemID := range itemIDs {
			item, err := tx.LockShopItem(ctx, itemID)
			if err != nil {
				return err
			}
			if err := eligibility.CanSettleOrderLine(item, wanted[itemID]); err != nil {
				return err
			}
			items[itemID] = item
			subtotal := item.Price.Mul(decimal.NewFromInt32(wanted[itemID]))
			total = total.Add(subtotal)
			perShelter[item.ShelterID] = perShelter[item.ShelterID].Add(subtotal)
		}

		if buyer.Wallet.LessThan(total) {
			return &pkgerrors.InsufficientFundsError{Required: total, Balance: buyer.Wallet}
		}

		// Debit once, not per line.
		if err := tx.DebitWallet(ctx, buyer.ID, total); err != nil {
			return err
		}

		shelterIDs := make([]int64, 0, len(perShelter))
		for id := range perShelter {
			shelterIDs = append(shelterIDs, id)
		}
		sort.Slice(shelterIDs, func(i, j int) bool { return shelterIDs[i] < shelterIDs[j] })
		for _, shelterID := range shelterIDs {
			if err := tx.CreditRevenue(ctx, shelterID, perShelter[shelterID]); err != nil {
				return err
			}
		}

		for _, itemID := range itemIDs {
			if err := tx.DecrementStock(ctx, itemID, wanted[itemID]); err != nil {
				return err
			}
		}

		orderDate := time.Now().UTC()
		for _, line := range lines {
			item := items[line.ItemID]
			lineTotal := item.Price.Mul(decimal.NewFromInt32(line.Quantity))
			if _, err := tx.InsertOrder(ctx, &models.ShopOrder{
				UserID:    buyer.ID,
				ShelterID: item.ShelterID,
				ItemID:    item.ID,
				Quantity:  line.Quantity,
				Price:     lineTotal,
				OrderDate: orderDate,
			}); err != nil {
				return err
			}
		}

		receipt = models.OrderReceipt{TotalCharged: total, LineCount: len(lines)}
		return nil
	})
	if err != nil {
		if requestID != "" {
			if delErr := s.redisClient.Del(ctx, requestKey); delErr != nil {
				slog.Error("failed to release request key", "request_id", requestID, "error", delErr)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "order settlement failed")
		observability.SettlementOutcomes.WithLabelValues("settle_order", outcomeLabel(err)).Inc()
		slog.Error("order settlement failed", "user_id", caller.UserID, "error", err)
		return nil, err
	}

	if requestID != "" {
		if err := s.redisClient.Set(ctx, requestKey, "completed", 24*time.Hour); err != nil {
			slog.Error("failed to mark request completed", "request_id", requestID, "error", err)
		}
	}

	observability.SettlementOutcomes.WithLabelValues("settle_order", "success").Inc()
	slog.Info("order settled",
		"user_id", caller.UserID,
		"line_count", receipt.LineCount,
		"total_charged", receipt.TotalCharged)

	s.emitEvent(caller.UserID, map[string]interface{}{
		"event_type": "order_settled",
		"user_id":    caller.UserID,
		"item_ids":   itemIDs,
		"total":      receipt.TotalCharged.String(),
		"settled_at": time.Now().UTC().Format(time.RFC3339),
	})
	return &receipt, nil
}

func (s *settlementService) AcceptDonorApplication(ctx context.Context, caller auth.Caller, donorAppID, shelterID int64) (int64, error) {
	tracer := otel.Tracer("settlement-service")
	ctx, span := tracer.Start(ctx, "AcceptDonorApplication")
	defer span.End()

	if !caller.IsAdmin {
		return 0, pkgerrors.ErrNotAuthorized
	}
	if shelterID <= 0 {
		return 0, fmt.Errorf("%w: shelter_id must be positive", pkgerrors.ErrInvalidInput)
	}

	var petID int64
	err := s.ledger.ExecTx(ctx, func(tx repository.SettlementTx) error {
		app, err := tx.LockDonorApplication(ctx, donorAppID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return pkgerrors.ErrNotPending
		}

		pet := &models.Pet{
			Name:         app.PetName,
			Species:      app.Species,
			Breed:        app.Breed,
			Age:          app.Age,
			HealthStatus: app.HealthStatus,
			Status:       models.PetAvailable,
			Price:        decimal.Zero,
			ShelterID:    shelterID,
		}
		if petID, err = tx.InsertPet(ctx, pet); err != nil {
			return err
		}
		return tx.ApproveDonorApplication(ctx, donorAppID, petID)
	})
	if err != nil {
		span.RecordError(err)
		observability.SettlementOutcomes.WithLabelValues("donor_intake", outcomeLabel(err)).Inc()
		slog.Error("donor intake failed", "donor_app_id", donorAppID, "error", err)
		return 0, err
	}

	observability.SettlementOutcomes.WithLabelValues("donor_intake", "success").Inc()
	slog.Info("donor application accepted", "donor_app_id", donorAppID, "pet_id", petID, "shelter_id", shelterID)

	s.emitEvent(donorAppID, map[string]interface{}{
		"event_type": "donor_accepted",
		"pet_id":     petID,
		"shelter_id": shelterID,
		"settled_at": time.Now().UTC().Format(time.RFC3339),
	})
	return petID, nil
}

// emitEvent publishes a post-commit audit event. Delivery is best
// effort; the settlement is already durable in the ledger.
func (s *settlementService) emitEvent(key int64, event map[string]interface{}) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal settlement event", "error", err)
		return
	}
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.producer.Send(context.Background(), settlementsTopic, key, eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send settlement event after retries", "key", key)
	}()
}

func outcomeLabel(err error) string {
	switch {
	case stderrors.Is(err, pkgerrors.ErrTxConflict):
		return "conflict"
	case stderrors.Is(err, pkgerrors.ErrNotPending),
		stderrors.Is(err, pkgerrors.ErrPetUnavailable),
		stderrors.Is(err, pkgerrors.ErrSelfAdoption),
		stderrors.Is(err, pkgerrors.ErrNoVetRecord),
		stderrors.Is(err, pkgerrors.ErrInsufficientFunds),
		stderrors.Is(err, pkgerrors.ErrInsufficientStock),
		stderrors.Is(err, pkgerrors.ErrInvalidQuantity):
		return "validation_failed"
	default:
		return "error"
	}
}
