package repository

import (
	"context"
	"database/sql"
	"fmt"

	stderrors "errors"

	"github.com/chethans2005/pawPatrol/internal/models"
	pkgerrors "github.com/chethans2005/pawPatrol/pkg/errors"
)

func (s *PostgresLedger) CreateAdopterApplication(ctx context.Context, userID, petID int64) (int64, error) {
	query := `
	INSERT INTO adopter_applications (user_id, pet_id, status, date)
	VALUES ($1, $2, 'pending', CURRENT_DATE)
	RETURNING application_id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, userID, petID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create application: %w", err)
	}
	return id, nil
}

func (s *PostgresLedger) GetAdopterApplication(ctx context.Context, id int64) (*models.AdopterApplication, error) {
	query := `
	SELECT application_id, user_id, pet_id, status, COALESCE(reject_reason, ''), date
	FROM adopter_applications
	WHERE application_id = $1
	`
	var app models.AdopterApplication
	err := s.db.QueryRowContext(ctx, query, id).Scan(
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
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (s *PostgresLedger) ListUserApplications(ctx context.Context, userID int64) ([]models.AdopterApplication, error) {
	query := `
	SELECT application_id, user_id, pet_id, status, COALESCE(reject_reason, ''), date
	FROM adopter_applications
	WHERE user_id = $1
	ORDER BY date DESC, application_id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []models.AdopterApplication
	for rows.Next() {
		var app models.AdopterApplication
		if err := rows.Scan(
			&app.ID,
			&app.UserID,
			&app.PetID,
			&app.Status,
			&app.RejectReason,
			&app.Date,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *PostgresLedger) HasApprovedDonation(ctx context.Context, userID, petID int64) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM donor_applications
		WHERE user_id = $1 AND pet_id = $2 AND status = 'approved'
	)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query, userID, petID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check donor history: %w", err)
	}
	return exists, nil
}

func (s *PostgresLedger) CreateDonorApplication(ctx context.Context, app *models.DonorApplication) (int64, error) {
	if app == nil {
		return 0, pkgerrors.ErrInvalidInput
	}
	if app.PetName == "" || app.Species == "" {
		return 0, fmt.Errorf("%w: pet_name and species are required", pkgerrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO donor_applications (user_id, pet_name, species, breed, age, description, health_status, status, application_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', CURRENT_DATE)
	RETURNING donor_app_id
	`
	err := s.db.QueryRowContext(ctx, query,
		app.UserID,
		app.PetName,
		app.Species,
		app.Breed,
		app.Age,
		app.Description,
		app.HealthStatus,
	).Scan(&app.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create donor application: %w", err)
	}
	return app.ID, nil
}
