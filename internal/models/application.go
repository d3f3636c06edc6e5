package models

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type AdopterApplication struct {
	ID           int64             `json:"application_id"`
	UserID       int64             `json:"user_id"`
	PetID        int64             `json:"pet_id"`
	Status       ApplicationStatus `json:"status"`
	RejectReason string            `json:"reject_reason,omitempty"`
	Date         time.Time         `json:"date"`
}

// DonorApplication records an offered pet. PetID is set once the
// application is accepted and the pet row exists.
type DonorApplication struct {
	ID           int64             `json:"donor_app_id"`
	UserID       int64             `json:"user_id"`
	PetName      string            `json:"pet_name"`
	Species      string            `json:"species"`
	Breed        string            `json:"breed"`
	Age          int32             `json:"age"`
	Description  string            `json:"description,omitempty"`
	HealthStatus string            `json:"health_status"`
	Status       ApplicationStatus `json:"status"`
	PetID        *int64            `json:"pet_id,omitempty"`
	Date         time.Time         `json:"application_date"`
}
