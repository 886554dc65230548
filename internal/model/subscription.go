package model

import "time"

// Subscription statuses
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription represents a detected recurring charge
type Subscription struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string     `json:"name" gorm:"not null"`
	Amount      float64    `json:"amount" gorm:"not null"`
	Frequency   string     `json:"frequency" gorm:"not null;default:monthly"`
	Merchant    string     `json:"merchant" gorm:"not null;default:''"`
	Status      string     `json:"status" gorm:"not null;default:active"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelTx    *string    `json:"cancel_tx,omitempty"` // confirmed ledger signature, nil when cancelled without proof
}

// APIKey represents an encrypted third-party service credential
type APIKey struct {
	Service      string    `json:"service" gorm:"primaryKey"`
	EncryptedKey string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKeyEntry represents an api key listing row (never exposes the key itself)
type APIKeyEntry struct {
	Service   string     `json:"service"`
	HasKey    bool       `json:"has_key"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
