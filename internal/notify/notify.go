// Package notify delivers user and admin notifications in the background.
// Callers enqueue a Request and never wait on or hear about delivery.
package notify

import (
	"context"
	"time"
)

// Template names a message in the i18n catalog.
type Template string

const (
	TemplateRegister           Template = "Register"
	TemplateVerified           Template = "Verified"
	TemplateVerificationResent Template = "VerificationResent"
	TemplateLogin              Template = "Login"

	TemplateUserRegistered Template = "UserRegistered"
	TemplateUserVerified   Template = "UserVerified"
	TemplateUserLoggedIn   Template = "UserLoggedIn"
	TemplateProfileUpdated Template = "ProfileUpdated"

	TemplateTransactionSubmitted      Template = "TransactionSubmitted"
	TemplateTransactionSubmittedAdmin Template = "TransactionSubmittedAdmin"
	TemplateTransactionStatusChanged  Template = "TransactionStatusChanged"
	TemplateAccountFunded             Template = "AccountFunded"
)

// Recipient is either one user or every admin.
type Recipient struct {
	UserID string
	Admins bool
}

// User addresses a single user.
func User(id string) Recipient {
	return Recipient{UserID: id}
}

// Admins addresses every user with the admin role at delivery time.
var Admins = Recipient{Admins: true}

// Request is what producers enqueue.
type Request struct {
	Recipient Recipient
	Template  Template
	Params    map[string]string
}

// Message is a rendered request for one concrete recipient.
type Message struct {
	UserID    string
	Email     string
	Template  Template
	Title     string
	Body      string
	Params    map[string]string
	CreatedAt time.Time
}

// Notifier is the producer side of the dispatcher.
type Notifier interface {
	Notify(req Request)
}

// Sink delivers rendered messages over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, m Message) error
}

// Directory resolves recipients.
type Directory interface {
	AdminIDs(ctx context.Context) ([]string, error)
	Email(ctx context.Context, userID string) (string, error)
}

// Nop discards every request.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Request) {}
