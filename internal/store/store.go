// Package store is the durable local store: subscriptions, cancellation
// receipts, api keys and the activity log, in a single SQLite database under
// the data directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when the requested row does not exist
var ErrNotFound = errors.New("not found")

// KnownServices are the services that may have a stored api key
var KnownServices = []string{"claude", "plaid", "solana_rpc"}

// Store wraps the SQLite database
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&model.Subscription{}, &model.APIKey{}, &model.Activity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// ActiveSubscriptions lists subscriptions that have not been cancelled
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ?", model.SubscriptionStatusActive).
		Order("id").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// SubscriptionByID fetches one subscription
func (s *Store) SubscriptionByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.db.WithContext(ctx).First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

// CountSubscriptions returns the total number of rows, active or not
func (s *Store) CountSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Subscription{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// SeedDetected inserts a batch of scanner-detected subscriptions
func (s *Store) SeedDetected(ctx context.Context, subs []model.Subscription) error {
	if err := s.db.WithContext(ctx).Create(&subs).Error; err != nil {
		return fmt.Errorf("failed to seed subscriptions: %w", err)
	}
	return nil
}

// PutCancellationReceipt marks a subscription cancelled and records the
// optional confirmed transaction signature. The receipt is written exactly
// once; there is no update path.
func (s *Store) PutCancellationReceipt(ctx context.Context, subscriptionID int64, txSignature *string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":       model.SubscriptionStatusCancelled,
			"cancelled_at": &now,
			"cancel_tx":    txSignature,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to persist receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: active subscription %d", ErrNotFound, subscriptionID)
	}
	return nil
}

// ActiveMonthlyTotal sums the monthly amount of active subscriptions
func (s *Store) ActiveMonthlyTotal(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("status = ?", model.SubscriptionStatusActive).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum active subscriptions: %w", err)
	}
	return total, nil
}

// Stats aggregates the header numbers: active/cancelled counts, monthly and
// annual totals, and how many cancellations carry an on-chain receipt.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	db := s.db.WithContext(ctx).Model(&model.Subscription{})
	stats := &model.Stats{}

	if err := db.Session(&gorm.Session{}).
		Where("status = ?", model.SubscriptionStatusActive).
		Count(&stats.ActiveCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count active: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ?", model.SubscriptionStatusCancelled).
		Count(&stats.CancelledCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count cancelled: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ?", model.SubscriptionStatusActive).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.ActiveMonthly).Error; err != nil {
		return nil, fmt.Errorf("failed to sum active: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ?", model.SubscriptionStatusCancelled).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.SavedMonthly).Error; err != nil {
		return nil, fmt.Errorf("failed to sum cancelled: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("cancel_tx IS NOT NULL").
		Count(&stats.SolanaTxCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count receipts: %w", err)
	}

	stats.SavedAnnual = stats.SavedMonthly * 12
	return stats, nil
}

// AppendActivity appends one immutable activity log entry
func (s *Store) AppendActivity(ctx context.Context, action, detail string, at time.Time) error {
	entry := model.Activity{Action: action, Detail: detail, CreatedAt: at}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// Activities lists recent activity, newest first
func (s *Store) Activities(ctx context.Context) ([]model.Activity, error) {
	var entries []model.Activity
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(100).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}

// SaveAPIKey upserts an encrypted api key for a service
func (s *Store) SaveAPIKey(ctx context.Context, service, encryptedKey string) error {
	key := model.APIKey{Service: service, EncryptedKey: encryptedKey, CreatedAt: time.Now()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "created_at"}),
		}).
		Create(&key).Error
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// EncryptedAPIKey returns the stored ciphertext for a service
func (s *Store) EncryptedAPIKey(ctx context.Context, service string) (string, error) {
	var key model.APIKey
	err := s.db.WithContext(ctx).First(&key, "service = ?", service).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: api key for %s", ErrNotFound, service)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch api key: %w", err)
	}
	return key.EncryptedKey, nil
}

// DeleteAPIKey removes the stored key for a service
func (s *Store) DeleteAPIKey(ctx context.Context, service string) error {
	if err := s.db.WithContext(ctx).Delete(&model.APIKey{}, "service = ?", service).Error; err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// APIKeyEntries lists the known services and whether a key is stored,
// never exposing key material
func (s *Store) APIKeyEntries(ctx context.Context) ([]model.APIKeyEntry, error) {
	entries := make([]model.APIKeyEntry, 0, len(KnownServices))
	for _, service := range KnownServices {
		var key model.APIKey
		err := s.db.WithContext(ctx).First(&key, "service = ?", service).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entries = append(entries, model.APIKeyEntry{Service: service})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch api key: %w", err)
		}
		created := key.CreatedAt
		entries = append(entries, model.APIKeyEntry{Service: service, HasKey: true, CreatedAt: &created})
	}
	return entries, nil
}
