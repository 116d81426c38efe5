package events

import "time"

// Payloads published on the bus and forwarded to a single user's stream.
// UserID selects the receiving connections.

// Notification is a rendered message for one recipient.
type Notification struct {
	UserID    string            `json:"user_id"`
	Template  string            `json:"template"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TransactionUpdate reports a transaction's current status.
type TransactionUpdate struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"`
	PrevStatus    string    `json:"prev_status,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BalanceUpdate reports the new amount of one currency balance.
type BalanceUpdate struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
	Delta    string `json:"delta"`
	Amount   string `json:"amount"`
}

// Recipient returns the user a payload is addressed to, or "".
func Recipient(payload any) string {
	switch p := payload.(type) {
	case Notification:
		return p.UserID
	case TransactionUpdate:
		return p.UserID
	case BalanceUpdate:
		return p.UserID
	}
	return ""
}
