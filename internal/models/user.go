package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64           `json:"user_id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Name         string          `json:"name"`
	Contact      string          `json:"contact"`
	Address      string          `json:"address,omitempty"`
	Wallet       decimal.Decimal `json:"wallet"`
	IsAdmin      bool            `json:"is_admin"`
	CreatedAt    time.Time       `json:"created_at"`
}
