package model

import "time"

// Activity represents an immutable activity log entry
type Activity struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Action    string    `json:"action" gorm:"not null"`
	Detail    string    `json:"detail" gorm:"not null;default:''"`
	CreatedAt time.Time `json:"timestamp"`
}

// Activity actions recorded by the agent
const (
	ActivityScanCompleted         = "scan_completed"
	ActivitySubscriptionCancelled = "subscription_cancelled"
	ActivityReceiptSigned         = "receipt_signed"
	ActivityAirdropReceived       = "airdrop_received"
)
