package models

import "github.com/shopspring/decimal"

type Shelter struct {
	ID       int64           `json:"shelter_id"`
	Name     string          `json:"name"`
	Location string          `json:"location"`
	Contact  string          `json:"contact"`
	Revenue  decimal.Decimal `json:"revenue"`
}
