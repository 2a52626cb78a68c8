package models

import "time"

// QuotaUsage reports the day's AI call budget.
type QuotaUsage struct {
	Date      string `json:"date"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
}

// ModelQuota mirrors the provider's rate-limit headers for one model. Account
// level counters may be absent on some providers, hence the pointers.
type ModelQuota struct {
	Model                  string    `json:"model"`
	RequestsLimit          *int64    `json:"requests_limit,omitempty"`
	RequestsRemaining      *int64    `json:"requests_remaining,omitempty"`
	ModelRequestsLimit     *int64    `json:"model_requests_limit,omitempty"`
	ModelRequestsRemaining *int64    `json:"model_requests_remaining,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}
