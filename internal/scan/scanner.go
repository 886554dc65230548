// Package scan is the transaction-scanning boundary. The real engine (bank
// feed + AI classification) lives outside this agent; the simulated scanner
// stands in for it and seeds the store with detected subscriptions.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/model"

	"go.uber.org/zap"
)

// SubscriptionStore is the slice of the local store the scanner needs
type SubscriptionStore interface {
	CountSubscriptions(ctx context.Context) (int64, error)
	SeedDetected(ctx context.Context, subs []model.Subscription) error
	ActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ActiveMonthlyTotal(ctx context.Context) (float64, error)
	AppendActivity(ctx context.Context, action, detail string, at time.Time) error
}

// detectedSubscriptions is the simulated detection result
var detectedSubscriptions = []model.Subscription{
	{Name: "Netflix Premium", Amount: 22.99, Frequency: "monthly", Merchant: "Netflix Inc.", Status: model.SubscriptionStatusActive},
	{Name: "Spotify Family", Amount: 16.99, Frequency: "monthly", Merchant: "Spotify AB", Status: model.SubscriptionStatusActive},
	{Name: "Adobe Creative Cloud", Amount: 54.99, Frequency: "monthly", Merchant: "Adobe Systems", Status: model.SubscriptionStatusActive},
	{Name: "ChatGPT Plus", Amount: 20.00, Frequency: "monthly", Merchant: "OpenAI", Status: model.SubscriptionStatusActive},
	{Name: "Gym Membership", Amount: 49.99, Frequency: "monthly", Merchant: "Planet Fitness", Status: model.SubscriptionStatusActive},
	{Name: "iCloud+ 200GB", Amount: 2.99, Frequency: "monthly", Merchant: "Apple Inc.", Status: model.SubscriptionStatusActive},
	{Name: "YouTube Premium", Amount: 13.99, Frequency: "monthly", Merchant: "Google LLC", Status: model.SubscriptionStatusActive},
}

// SimulatedScanner seeds detected subscriptions on first scan and reports
// totals on every scan
type SimulatedScanner struct {
	store SubscriptionStore
	log   *zap.Logger
}

// NewSimulatedScanner creates a scanner over the local store
func NewSimulatedScanner(store SubscriptionStore, log *zap.Logger) *SimulatedScanner {
	return &SimulatedScanner{store: store, log: log}
}

// Scan detects recurring charges. Seeding happens only when the store is
// empty; repeat scans just recompute totals.
func (s *SimulatedScanner) Scan(ctx context.Context) (*model.ScanResult, error) {
	count, err := s.store.CountSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		seed := make([]model.Subscription, len(detectedSubscriptions))
		copy(seed, detectedSubscriptions)
		if err := s.store.SeedDetected(ctx, seed); err != nil {
			return nil, err
		}
		s.log.Info("scan seeded detected subscriptions", zap.Int("count", len(seed)))
	}

	active, err := s.store.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	total, err := s.store.ActiveMonthlyTotal(ctx)
	if err != nil {
		return nil, err
	}

	result := &model.ScanResult{
		SubscriptionsFound: int64(len(active)),
		TotalMonthly:       total,
		TotalAnnual:        total * 12,
	}

	detail := fmt.Sprintf("%d active subscriptions, $%.2f/month", result.SubscriptionsFound, result.TotalMonthly)
	if err := s.store.AppendActivity(ctx, model.ActivityScanCompleted, detail, time.Now()); err != nil {
		s.log.Warn("failed to record scan activity", zap.Error(err))
	}

	return result, nil
}
