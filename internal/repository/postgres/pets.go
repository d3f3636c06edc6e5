package repository

import (
	"context"
	"database/sql"
	"fmt"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/models"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
)

func (s *PostgresLedger) GetPet(ctx context.Context, id int64) (*models.Pet, error) {
	query := `
	SELECT pet_id, name, species, breed, age, health_status, status, price, shelter_id, caretaker_id, created_at
	FROM pets
	WHERE pet_id = $1
	`
	var pet models.Pet
	err := s.db.QueryRowContext(ctx, query, id).Scan(
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
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &pet, nil
}

func (s *PostgresLedger) ListAvailablePets(ctx context.Context, shelterID *int64) ([]models.Pet, error) {
	query := `
	SELECT pet_id, name, species, breed, age, health_status, status, price, shelter_id, caretaker_id, created_at
	FROM pets
	WHERE status = 'Available'
	AND ($1::bigint IS NULL OR shelter_id = $1)
	ORDER BY pet_id
	`
	rows, err := s.db.QueryContext(ctx, query, shelterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	defer rows.Close()

	var pets []models.Pet
	for rows.Next() {
		var pet models.Pet
		if err := rows.Scan(
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
		); err != nil {
			return nil, fmt.Errorf("failed to scan pet: %w", err)
		}
		pets = append(pets, pet)
	}
	return pets, rows.Err()
}

func (s *PostgresLedger) ListVetRecords(ctx context.Context, petID int64) ([]models.VetRecord, error) {
	query := `
	SELECT record_id, pet_id, checkup_date, COALESCE(remarks, ''), COALESCE(treatment, '')
	FROM vet_records
	WHERE pet_id = $1
	ORDER BY checkup_date DESC
	`
	rows, err := s.db.QueryContext(ctx, query, petID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vet records: %w", err)
	}
	defer rows.Close()

	var records []models.VetRecord
	for rows.Next() {
		var rec models.VetRecord
		if err := rows.Scan(&rec.ID, &rec.PetID, &rec.CheckupDate, &rec.Remarks, &rec.Treatment); err != nil {
			return nil, fmt.Errorf("failed to scan vet record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresLedger) AddVetRecord(ctx context.Context, rec *models.VetRecord) error {
	if rec == nil {
		return pkgerrors.ErrInvalidInput
	}
	query := `
	INSERT INTO vet_records (pet_id, checkup_date, remarks, treatment)
	VALUES ($1, $2, $3, $4)
	RETURNING record_id
	`
	err := s.db.QueryRowContext(ctx, query, rec.PetID, rec.CheckupDate, rec.Remarks, rec.Treatment).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to add vet record: %w", err)
	}
	return nil
}

func (s *PostgresLedger) CountVetRecords(ctx context.Context, petID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vet_records WHERE pet_id = $1`, petID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vet records: %w", err)
	}
	return count, nil
}

func (s *PostgresLedger) ListShelters(ctx context.Context) ([]models.Shelter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shelter_id, name, location, contact, revenue FROM shelters ORDER BY shelter_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shelters: %w", err)
	}
	defer rows.Close()

	var shelters []models.Shelter
	for rows.Next() {
		var sh models.Shelter
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.Location, &sh.Contact, &sh.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan shelter: %w", err)
		}
		shelters = append(shelters, sh)
	}
	return shelters, rows.Err()
}
