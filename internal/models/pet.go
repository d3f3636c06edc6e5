package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PetStatus string

const (
	PetAvailable PetStatus = "Available"
	PetPending   PetStatus = "Pending"
	PetAdopted   PetStatus = "Adopted"
	PetDonated   PetStatus = "Donated"
)

type Pet struct {
	ID           int64           `json:"pet_id"`
	Name         string          `json:"name"`
	Species      string          `json:"species"`
	Breed        string          `json:"breed"`
	Age          int32           `json:"age"`
	HealthStatus string          `json:"health_status"`
	Status       PetStatus       `json:"status"`
	Price        decimal.Decimal `json:"price"`
	ShelterID    int64           `json:"shelter_id"`
	CaretakerID  *int64          `json:"caretaker_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type VetRecord struct {
	ID          int64     `json:"record_id"`
	PetID       int64     `json:"pet_id"`
	CheckupDate time.Time `json:"checkup_date"`
	Remarks     string    `json:"remarks"`
	Treatment   string    `json:"treatment"`
}
