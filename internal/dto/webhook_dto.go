package dto

// BillingWebhook is the payment provider's event envelope.
type BillingWebhook struct {
	APIVersion string       `json:"api_version"`
	Event      BillingEvent `json:"event"`
}

type BillingEvent struct {
	Type           string  `json:"type"`
	ID             string  `json:"id"`
	AppUserID      string  `json:"app_user_id"`
	Email          string  `json:"email"`
	ProductID      string  `json:"product_id"`
	PurchasedAtMs  int64   `json:"purchased_at_ms"`
	ExpirationAtMs int64   `json:"expiration_at_ms"`
	Environment    string  `json:"environment"`
	TransactionID  string  `json:"transaction_id"`
	Currency       string  `json:"currency"`
	Price          float64 `json:"price"`
}
