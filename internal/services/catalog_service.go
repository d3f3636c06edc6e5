package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/auth"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/redis"
	"github.com/chethans2005/pawPatrol/internal/models"
	"github.com/chethans2005/pawPatrol/internal/repository"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
	"go.opentelemetry.io/otel"
)

const shopItemsCacheKey = "shop:items"

// PetDetails is the catalog view of one pet: the row, its vet history
// and a precomputed adoption-eligibility note.
type PetDetails struct {
	models.Pet
	VetRecords  []models.VetRecord `json:"vet_records"`
	Eligibility string             `json:"eligibility"`
}

type CatalogService interface {
	ListAvailablePets(ctx context.Context, shelterID *int64) ([]models.Pet, error)
	GetPetDetails(ctx context.Context, petID int64) (*PetDetails, error)
	ListShopItems(ctx context.Context, shelterID *int64) ([]models.ShopItem, error)
	ListShelters(ctx context.Context) ([]models.Shelter, error)
	AddVetRecord(ctx context.Context, caller auth.Caller, rec *models.VetRecord) error
}

type catalogService struct {
	ledger      repository.Ledger
	redisClient redis.RedisClient
}

func NewCatalogService(ledger repository.Ledger, redisClient redis.RedisClient) *catalogService {
	return &catalogService{ledger: ledger, redisClient: redisClient}
}

func (s *catalogService) ListAvailablePets(ctx context.Context, shelterID *int64) ([]models.Pet, error) {
	return s.ledger.ListAvailablePets(ctx, shelterID)
}

func (s *catalogService) GetPetDetails(ctx context.Context, petID int64) (*PetDetails, error) {
	tracer := otel.Tracer("catalog-service")
	ctx, span := tracer.Start(ctx, "GetPetDetails")
	defer span.End()

	pet, err := s.ledger.GetPet(ctx, petID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	records, err := s.ledger.ListVetRecords(ctx, petID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	eligibilityNote := "Eligible for adoption"
	if pet.Status != models.PetAvailable {
		eligibilityNote = fmt.Sprintf("Not available (status: %s)", pet.Status)
	} else if len(records) == 0 {
		eligibilityNote = "Not eligible: no vet record on file"
	}

	return &PetDetails{
		Pet:         *pet,
		VetRecords:  records,
		Eligibility: eligibilityNote,
	}, nil
}

// ListShopItems serves the unfiltered listing from redis when possible;
// the settlements consumer drops the key whenever stock changes.
func (s *catalogService) ListShopItems(ctx context.Context, shelterID *int64) ([]models.ShopItem, error) {
	if shelterID == nil {
		if items, ok := cachedJSON[models.ShopItem](ctx, s.redisClient, shopItemsCacheKey); ok {
			return items, nil
		}
	}

	items, err := s.ledger.ListShopItems(ctx, shelterID)
	if err != nil {
		return nil, err
	}

	if shelterID == nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.redisClient.Set(ctx, shopItemsCacheKey, string(raw), 10*time.Minute); err != nil {
				slog.Error("failed to cache shop items", "error", err)
			}
		}
	}
	return items, nil
}

func (s *catalogService) ListShelters(ctx context.Context) ([]models.Shelter, error) {
	return s.ledger.ListShelters(ctx)
}

func (s *catalogService) AddVetRecord(ctx context.Context, caller auth.Caller, rec *models.VetRecord) error {
	if !caller.IsAdmin {
		return pkgerrors.ErrNotAuthorized
	}
	if rec == nil || rec.PetID <= 0 {
		return pkgerrors.ErrInvalidInput
	}

	if _, err := s.ledger.GetPet(ctx, rec.PetID); err != nil {
		return err
	}
	if err := s.ledger.AddVetRecord(ctx, rec); err != nil {
		slog.Error("failed to add vet record", "pet_id", rec.PetID, "error", err)
		return err
	}

	slog.Info("vet record added", "record_id", rec.ID, "pet_id", rec.PetID)
	return nil
}
