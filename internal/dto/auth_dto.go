package dto

type LoginRequest struct {
	Email string `form:"email" json:"email"`
}

type SubscriptionRequest struct {
	Plan string `json:"plan"`
}

type RenewRequest struct {
	// Days extends the subscription from now. Zero means 30.
	Days int `json:"days"`
}

type SubscriptionResponse struct {
	Plan         string      `json:"plan"`
	Status       string      `json:"status"`
	StartedAt    string      `json:"started_at"`
	ExpiresAt    string      `json:"expires_at,omitempty"`
	Entitlements interface{} `json:"entitlements"`
}
