// Package domain holds the closed vocabularies shared by the platform:
// roles, transaction types and statuses, bot states and the actor identity
// handed to services by the access gate.
package domain

import "strings"

// Role is the authorization role carried by every authenticated actor.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TxType enumerates the financial intents a transaction can record.
type TxType string

const (
	TxDeposit     TxType = "deposit"
	TxWithdrawal  TxType = "withdrawal"
	TxInvestment  TxType = "investment"
	TxFunding     TxType = "funding"
	TxBotPurchase TxType = "bot purchase"
)

// ParseTxType accepts the canonical names plus the underscore/hyphen
// spellings clients tend to send for "bot purchase".
func ParseTxType(s string) (TxType, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch TxType(norm) {
	case TxDeposit, TxWithdrawal, TxInvestment, TxFunding, TxBotPurchase:
		return TxType(norm), true
	}
	return "", false
}

// RequiresProof reports whether creation needs at least one evidence URI.
func (t TxType) RequiresProof() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxBotPurchase:
		return true
	}
	return false
}

// RequiresFunds reports whether creation pre-checks balance sufficiency.
func (t TxType) RequiresFunds() bool {
	return t == TxWithdrawal || t == TxInvestment
}

// Credits reports whether approving t adds to the balance.
func (t TxType) Credits() bool {
	return t == TxDeposit || t == TxFunding
}

// Debits reports whether approving t subtracts from the balance.
func (t TxType) Debits() bool {
	switch t {
	case TxWithdrawal, TxInvestment, TxBotPurchase:
		return true
	}
	return false
}

// InitialStatus is the status a freshly submitted transaction starts in.
func (t TxType) InitialStatus() Status {
	switch t {
	case TxInvestment:
		return StatusInProgress
	case TxFunding:
		return StatusApproved
	default:
		return StatusPending
	}
}

// Status is the mutable lifecycle state of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in progress"
	StatusApproved   Status = "approved"
	StatusDeclined   Status = "declined"
)

// ParseStatus accepts "in progress" as well as "in_progress"/"in-progress".
func ParseStatus(s string) (Status, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch Status(norm) {
	case StatusPending, StatusInProgress, StatusApproved, StatusDeclined:
		return Status(norm), true
	}
	return "", false
}

// BotStatus marks whether a bot can be purchased.
type BotStatus string

const (
	BotActive   BotStatus = "active"
	BotInactive BotStatus = "inactive"
)

// Toggle flips active and inactive.
func (s BotStatus) Toggle() BotStatus {
	if s == BotActive {
		return BotInactive
	}
	return BotActive
}
