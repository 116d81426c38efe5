// Package account handles registration, email verification, login and
// profile management, plus the admin side of user management.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"investment-core/internal/domain"
	"investment-core/internal/ledger"
	"investment-core/internal/notify"
	"investment-core/pkg/db"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string, role domain.Role) (string, error)
}

// ExistingAccountError is returned by Register when the email is taken.
// It matches domain.ErrDuplicateEmail.
type ExistingAccountError struct {
	IsVerified bool
}

func (e *ExistingAccountError) Error() string {
	return domain.ErrDuplicateEmail.Error()
}

func (e *ExistingAccountError) Unwrap() error { return domain.ErrDuplicateEmail }

// Service owns user records. Balances are only created and read here.
type Service struct {
	db       *db.Database
	tokens   TokenIssuer
	notifier notify.Notifier
	log      *zap.Logger
}

// NewService creates the account service.
func NewService(database *db.Database, tokens TokenIssuer, notifier notify.Notifier, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: database, tokens: tokens, notifier: notifier, log: log.With(zap.String("component", "account"))}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName string
	UserName string
	Email    string
	Phone    string
	Country  string
	Password string
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.ErrInvalidInput.Withf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", domain.ErrInvalidInput.Withf("invalid email format")
	}
	return email, nil
}

// Register creates an unverified user with zero balances and sends the
// verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (db.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return db.User{}, err
	}
	in.UserName = strings.TrimSpace(in.UserName)
	if in.UserName == "" || in.Password == "" {
		return db.User{}, domain.ErrInvalidInput.Withf("userName, email and password are required")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return db.User{}, fmt.Errorf("hash password: %w", err)
	}
	code, err := newCode()
	if err != nil {
		return db.User{}, err
	}

	u := db.User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     hash,
		UserName:         in.UserName,
		FullName:         strings.TrimSpace(in.FullName),
		PhoneNumber:      strings.TrimSpace(in.Phone),
		Country:          strings.TrimSpace(in.Country),
		Role:             string(domain.RoleUser),
		VerificationCode: code,
	}
	if err := s.create(ctx, &u); err != nil {
		return db.User{}, err
	}

	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("email", u.Email))
	s.notifier.Notify(notify.Request{
		Recipient: notify.User(u.ID),
		Template:  notify.TemplateRegister,
		Params:    map[string]string{"EMAIL": u.Email, "CODE": code},
	})
	s.notifier.Notify(notify.Request{
		Recipient: notify.Admins,
		Template:  notify.TemplateUserRegistered,
		Params:    map[string]string{"EMAIL": u.Email},
	})
	return u, nil
}

// create inserts u and its zero balances atomically.
func (s *Service) create(ctx context.Context, u *db.User) error {
	return s.db.InTx(ctx, func(q *db.Queries) error {
		if existing, err := q.GetUserByEmail(ctx, u.Email); err == nil {
			return &ExistingAccountError{IsVerified: existing.IsVerified}
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if err := q.CreateUser(ctx, u); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return &ExistingAccountError{}
			}
			return err
		}
		return q.CreateBalances(ctx, u.ID, ledger.Codes())
	})
}

// Verify marks the account verified when code matches. A code that was
// already consumed is rejected even if it matches.
func (s *Service) Verify(ctx context.Context, email, code string) (db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	var u db.User
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		var err error
		u, err = q.GetUserByEmail(ctx, email)
		if err != nil {
			return userNotFound(err, email)
		}
		if u.IsVerified {
			return domain.ErrAlreadyVerified
		}
		if code == "" || code == u.VerificationCodeOld || code != u.VerificationCode {
			return domain.ErrInvalidCode
		}
		u.IsVerified = true
		u.VerificationCodeOld = code
		u.VerificationCode = ""
		return q.UpdateUser(ctx, &u)
	})
	if err != nil {
		return db.User{}, err
	}

	s.log.Info("user verified", zap.String("user_id", u.ID))
	s.notifier.Notify(notify.Request{Recipient: notify.User(u.ID), Template: notify.TemplateVerified, Params: map[string]string{"EMAIL": u.Email}})
	s.notifier.Notify(notify.Request{Recipient: notify.Admins, Template: notify.TemplateUserVerified, Params: map[string]string{"EMAIL": u.Email}})
	return u, nil
}

// ResendVerification issues a fresh code to an unverified user.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var u db.User
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		var err error
		u, err = q.GetUserByEmail(ctx, email)
		if err != nil {
			return userNotFound(err, email)
		}
		if u.IsVerified {
			return domain.ErrAlreadyVerified
		}
		code, err := newCode(u.VerificationCode, u.VerificationCodeOld)
		if err != nil {
			return err
		}
		u.VerificationCode = code
		return q.UpdateUser(ctx, &u)
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(notify.Request{
		Recipient: notify.User(u.ID),
		Template:  notify.TemplateVerificationResent,
		Params:    map[string]string{"EMAIL": u.Email, "CODE": u.VerificationCode},
	})
	return nil
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  db.User
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.db.Queries().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := checkPassword(u.PasswordHash, password); err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}
	if !u.IsVerified {
		return Session{}, domain.ErrNotVerified
	}

	token, err := s.tokens.Issue(u.ID, domain.Role(u.Role))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("user logged in", zap.String("user_id", u.ID))
	s.notifier.Notify(notify.Request{Recipient: notify.User(u.ID), Template: notify.TemplateLogin, Params: map[string]string{"EMAIL": u.Email}})
	s.notifier.Notify(notify.Request{Recipient: notify.Admins, Template: notify.TemplateUserLoggedIn, Params: map[string]string{"EMAIL": u.Email}})
	return Session{Token: token, User: u}, nil
}

// Profile is a user with a snapshot of every balance.
type Profile struct {
	User     db.User
	Balances ledger.Balance
}

// Me returns the actor's own profile.
func (s *Service) Me(ctx context.Context, actor domain.Actor) (Profile, error) {
	if actor.ID == "" {
		return Profile{}, domain.ErrUnauthenticated
	}
	return s.profile(ctx, actor.ID)
}

func (s *Service) profile(ctx context.Context, id string) (Profile, error) {
	q := s.db.Queries()
	u, err := q.GetUserByID(ctx, id)
	if err != nil {
		return Profile{}, userNotFound(err, id)
	}
	bal, err := ledger.Snapshot(ctx, q, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Balances: bal}, nil
}

// ProfilePatch lists the self-service profile fields; nil means unchanged.
type ProfilePatch struct {
	FullName    *string
	UserName    *string
	Phone       *string
	Country     *string
	CountryFlag *string
}

// UpdateProfile changes the actor's own profile and tells the admins which
// fields changed.
func (s *Service) UpdateProfile(ctx context.Context, actor domain.Actor, p ProfilePatch) (db.User, error) {
	if actor.ID == "" {
		return db.User{}, domain.ErrUnauthenticated
	}

	var (
		u       db.User
		changed []string
	)
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		var err error
		u, err = q.GetUserByID(ctx, actor.ID)
		if err != nil {
			return userNotFound(err, actor.ID)
		}
		set := func(name string, dst *string, v *string) {
			if v == nil {
				return
			}
			nv := strings.TrimSpace(*v)
			if nv != *dst {
				*dst = nv
				changed = append(changed, name)
			}
		}
		set("fullName", &u.FullName, p.FullName)
		set("userName", &u.UserName, p.UserName)
		set("phone", &u.PhoneNumber, p.Phone)
		set("country", &u.Country, p.Country)
		set("countryFlag", &u.CountryFlag, p.CountryFlag)
		if u.UserName == "" {
			return domain.ErrInvalidInput.Withf("userName cannot be empty")
		}
		if len(changed) == 0 {
			return nil
		}
		return q.UpdateUser(ctx, &u)
	})
	if err != nil {
		return db.User{}, err
	}

	if len(changed) > 0 {
		s.log.Info("profile updated", zap.String("user_id", u.ID), zap.Strings("fields", changed))
		s.notifier.Notify(notify.Request{
			Recipient: notify.Admins,
			Template:  notify.TemplateProfileUpdated,
			Params:    map[string]string{"EMAIL": u.Email, "FIELDS": strings.Join(changed, ", ")},
		})
	}
	return u, nil
}

// ChangeProfilePicture stores the uploaded picture URIs on the actor and
// returns the URIs they replace.
func (s *Service) ChangeProfilePicture(ctx context.Context, actor domain.Actor, uris []string) (db.User, []string, error) {
	if actor.ID == "" {
		return db.User{}, nil, domain.ErrUnauthenticated
	}
	if len(uris) == 0 {
		return db.User{}, nil, domain.ErrInvalidInput.Withf("a picture file is required")
	}

	var (
		u   db.User
		old []string
	)
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		var err error
		u, err = q.GetUserByID(ctx, actor.ID)
		if err != nil {
			return userNotFound(err, actor.ID)
		}
		old = u.ProfilePicture
		u.ProfilePicture = db.StringList(uris)
		return q.UpdateUser(ctx, &u)
	})
	if err != nil {
		return db.User{}, nil, err
	}
	return u, old, nil
}

// Inbox returns the actor's notifications, newest first.
func (s *Service) Inbox(ctx context.Context, actor domain.Actor, limit int, markRead bool) ([]db.Notification, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	q := s.db.Queries()
	list, err := q.ListNotifications(ctx, actor.ID, limit)
	if err != nil {
		return nil, err
	}
	if markRead {
		if _, err := q.MarkNotificationsRead(ctx, actor.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func userNotFound(err error, key string) error {
	if errors.Is(err, db.ErrNotFound) {
		return domain.ErrNotFound.Withf("user %s not found", key)
	}
	return err
}
