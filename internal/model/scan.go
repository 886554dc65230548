package model

// ScanResult represents response for POST /scan
type ScanResult struct {
	SubscriptionsFound int64   `json:"subscriptions_found"`
	TotalMonthly       float64 `json:"total_monthly"`
	TotalAnnual        float64 `json:"total_annual"`
}

// Stats represents response for GET /stats
type Stats struct {
	ActiveCount    int64   `json:"active_count"`
	CancelledCount int64   `json:"cancelled_count"`
	ActiveMonthly  float64 `json:"active_monthly"`
	SavedMonthly   float64 `json:"saved_monthly"`
	SavedAnnual    float64 `json:"saved_annual"`
	SolanaTxCount  int64   `json:"solana_tx_count"`
}
