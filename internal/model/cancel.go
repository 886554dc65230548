package model

// Draft is the generated cancellation email, surfaced for review before signing
type Draft struct {
	Subject string `json:"email_subject"`
	Body    string `json:"email_body"`
}

// CancellationView represents the externally visible state of one pipeline run
type CancellationView struct {
	ID             string   `json:"id"`
	SubscriptionID int64    `json:"subscription_id"`
	State          string   `json:"state"`
	Phase          string   `json:"phase,omitempty"`  // current signing sub-phase
	Phases         []string `json:"phases,omitempty"` // sub-phases observed so far, in order
	Draft          *Draft   `json:"draft,omitempty"`
	TxSignature    *string  `json:"tx_signature,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty"`
}

// CancelStartResponse represents response for POST /subscriptions/{id}/cancel
type CancelStartResponse struct {
	ID string `json:"id"`
}
