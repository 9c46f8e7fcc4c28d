package events

import "time"

const (
	TypeUserRegistered     = "user_registered"
	TypeUserLoggedIn       = "user_logged_in"
	TypeAccountReactivated = "account_reactivated"
	TypeUserCreated        = "user_created"
	TypeUserUpdated        = "user_updated"
	TypeUserDeleted        = "user_deleted"
)

type UserEvent struct {
	Type       string    `json:"type"`
	UserID     uint      `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EmailRequest is picked up by the mailer consumer; it owns templates and SMTP.
type EmailRequest struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Params   map[string]string `json:"params,omitempty"`
}
