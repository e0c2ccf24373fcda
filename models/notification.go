package models

// RecipientRole identifies which side of the marketplace a notification
// targets.
type RecipientRole string

const (
	RoleBuyer    RecipientRole = "buyer"
	RoleProvider RecipientRole = "provider"
)

// NotificationIntent is one downstream notification request. TransactionID
// is derived deterministically from the logical event so the external
// notification system can drop redelivered duplicates.
type NotificationIntent struct {
	TransactionID string            `json:"transactionId"`
	Workflow      string            `json:"workflow"` // e.g. "booking_confirmed", "payment_failed"
	Role          RecipientRole     `json:"role"`
	Recipient     string            `json:"recipient"`
	Data          map[string]string `json:"data,omitempty"`
}
