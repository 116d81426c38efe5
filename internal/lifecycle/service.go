package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"investment-core/internal/domain"
	"investment-core/internal/events"
	"investment-core/internal/ledger"
	"investment-core/internal/monitor"
	"investment-core/internal/notify"
	"investment-core/pkg/db"
	"investment-core/pkg/keylock"
)

// Deps wires the engine. Bus and Metrics are optional.
type Deps struct {
	DB       *db.Database
	Locks    *keylock.Locker
	Notifier notify.Notifier
	Bus      *events.Bus
	Metrics  *monitor.SystemMetrics
	Log      *zap.Logger
}

// Service is the only writer of balances.
type Service struct {
	db       *db.Database
	locks    *keylock.Locker
	notifier notify.Notifier
	bus      *events.Bus
	metrics  *monitor.SystemMetrics
	log      *zap.Logger
}

// NewService creates the engine.
func NewService(d Deps) *Service {
	s := &Service{
		db:       d.DB,
		locks:    d.Locks,
		notifier: d.Notifier,
		bus:      d.Bus,
		metrics:  d.Metrics,
		log:      d.Log,
	}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("component", "lifecycle"))
	return s
}

func txKey(id string) string { return "txn:" + id }

func balanceKey(userID string, c ledger.Currency) string {
	return "bal:" + userID + ":" + string(c)
}

// CreateInput is a user's submission.
type CreateInput struct {
	Type    domain.TxType
	Amount  decimal.Decimal
	Mode    string
	Proof   []string
	Address string
	Plan    string
	BotID   string
}

func (in CreateInput) validate() (ledger.Currency, error) {
	switch in.Type {
	case domain.TxDeposit, domain.TxWithdrawal, domain.TxInvestment, domain.TxBotPurchase:
	default:
		return "", domain.ErrInvalidType
	}
	if !in.Amount.IsPositive() {
		return "", domain.ErrInvalidAmount
	}
	mode, ok := ledger.ParseCurrency(in.Mode)
	if !ok {
		return "", domain.ErrInvalidMode
	}
	if in.Type.RequiresProof() && len(in.Proof) == 0 {
		return "", domain.ErrMissingProof
	}
	return mode, nil
}

// Create validates and persists a new transaction in its initial status.
// Balances are only read, never changed.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (db.Transaction, error) {
	if err := domain.Authorize(actor, domain.ActionSubmitTransaction); err != nil {
		return db.Transaction{}, err
	}
	mode, err := in.validate()
	if err != nil {
		return db.Transaction{}, err
	}

	t := db.Transaction{
		ID:      uuid.NewString(),
		UserID:  actor.ID,
		Type:    string(in.Type),
		Amount:  in.Amount,
		Mode:    string(mode),
		Status:  string(in.Type.InitialStatus()),
		Proof:   db.StringList(in.Proof),
		Address: strings.TrimSpace(in.Address),
		Plan:    strings.TrimSpace(in.Plan),
	}

	var owner db.User
	err = s.db.InTx(ctx, func(q *db.Queries) error {
		u, err := q.GetUserByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return domain.ErrNotFound.Withf("user %s not found", actor.ID)
			}
			return fmt.Errorf("get user: %w", err)
		}
		owner = u

		current, err := ledger.Adjust(ctx, q, actor.ID, mode, decimal.Zero)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return domain.ErrInvalidMode.Withf("no %s balance for this account", mode)
			}
			return err
		}
		if in.Type.RequiresFunds() && current.LessThan(in.Amount) {
			return domain.ErrInsufficientBalance.Withf(
				"insufficient balance: need %s, have %s", in.Amount.String(), current.String())
		}

		if in.Type == domain.TxBotPurchase && in.BotID != "" {
			if err := attachBot(ctx, q, &t, in.BotID); err != nil {
				return err
			}
		}

		return q.CreateTransaction(ctx, &t)
	})
	if err != nil {
		return db.Transaction{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.log.Info("transaction created",
		zap.String("id", t.ID), zap.String("user_id", t.UserID),
		zap.String("type", t.Type), zap.String("amount", t.Amount.String()),
		zap.String("mode", t.Mode), zap.String("status", t.Status))

	params := txParams(t)
	s.notifier.Notify(notify.Request{Recipient: notify.User(t.UserID), Template: notify.TemplateTransactionSubmitted, Params: params})
	adminParams := txParams(t)
	adminParams["EMAIL"] = owner.Email
	s.notifier.Notify(notify.Request{Recipient: notify.Admins, Template: notify.TemplateTransactionSubmittedAdmin, Params: adminParams})
	s.publishTx(t, "")
	return t, nil
}

func attachBot(ctx context.Context, q *db.Queries, t *db.Transaction, botID string) error {
	bot, err := q.GetBot(ctx, botID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return domain.ErrNotFound.Withf("bot %s not found", botID)
		}
		return fmt.Errorf("get bot: %w", err)
	}
	if bot.Status != string(domain.BotActive) {
		return domain.ErrBotInactive
	}
	t.BotID = bot.ID
	t.Plan = bot.Name
	t.DailyReturnPercent = bot.DailyReturnPercent
	t.DurationDays = bot.DurationDays
	t.MaxReturnPercent = bot.MaxReturnPercent
	return nil
}

// UpdateStatus moves a transaction to the requested status and applies the
// balance effect in the same database transaction. Calls for the same
// transaction or the same balance are serialized in-process; row versions
// catch anything that slips past.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id, requested string) (db.Transaction, error) {
	if err := domain.Authorize(actor, domain.ActionTransitionTransaction); err != nil {
		return db.Transaction{}, err
	}
	to, ok := domain.ParseStatus(requested)
	if !ok {
		return db.Transaction{}, domain.ErrInvalidStatus
	}

	timer := s.timer()
	defer timer()

	unlockTx := s.locks.Lock(txKey(id))
	defer unlockTx()

	// user and mode never change, so a read outside the database
	// transaction is enough to pick the balance lock
	peek, err := s.db.Queries().GetTransaction(ctx, id)
	if err != nil {
		return db.Transaction{}, s.mapNotFound(err, "transaction %s not found", id)
	}
	mode, ok := ledger.ParseCurrency(peek.Mode)
	if !ok {
		return db.Transaction{}, domain.ErrInvalidMode.Withf("transaction %s has unsupported mode %q", id, peek.Mode)
	}
	unlockBal := s.locks.Lock(balanceKey(peek.UserID, mode))
	defer unlockBal()

	var (
		updated db.Transaction
		from    domain.Status
		delta   decimal.Decimal
		balance decimal.Decimal
	)
	err = s.db.InTx(ctx, func(q *db.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return s.mapNotFound(err, "transaction %s not found", id)
		}
		if _, err := q.GetUserByID(ctx, t.UserID); err != nil {
			return s.mapNotFound(err, "owner of transaction %s not found", id)
		}

		from = domain.Status(t.Status)
		delta, err = EffectOf(from, to, domain.TxType(t.Type), t.Amount)
		if err != nil {
			return err
		}
		if !delta.IsZero() {
			balance, err = ledger.Adjust(ctx, q, t.UserID, mode, delta)
			if err != nil {
				return err
			}
		}

		if err := q.UpdateTransactionStatus(ctx, t.ID, string(to), t.Version); err != nil {
			if errors.Is(err, db.ErrVersionConflict) {
				return domain.ErrConcurrencyConflict.Wrap(err)
			}
			return err
		}
		t.Status = string(to)
		t.Version++
		t.UpdatedAt = time.Now().UTC()
		updated = t
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		s.log.Info("transition rejected",
			zap.String("id", id), zap.String("requested", string(to)),
			zap.String("admin_id", actor.ID), zap.Error(err))
		return db.Transaction{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransitions()
	}
	s.log.Info("transaction status changed",
		zap.String("id", id), zap.String("from", string(from)), zap.String("to", string(to)),
		zap.String("delta", delta.String()), zap.String("admin_id", actor.ID))

	s.notifier.Notify(notify.Request{
		Recipient: notify.User(updated.UserID),
		Template:  notify.TemplateTransactionStatusChanged,
		Params:    txParams(updated),
	})
	s.publishTx(updated, string(from))
	if !delta.IsZero() {
		s.publishBalance(updated.UserID, mode, delta, balance)
	}
	return updated, nil
}

// Fund credits a user directly and records an approved funding transaction
// in the same database transaction.
func (s *Service) Fund(ctx context.Context, actor domain.Actor, userID string, amount decimal.Decimal, modeRaw string) (db.Transaction, decimal.Decimal, error) {
	if err := domain.Authorize(actor, domain.ActionFundUser); err != nil {
		return db.Transaction{}, decimal.Zero, err
	}
	if !amount.IsPositive() {
		return db.Transaction{}, decimal.Zero, domain.ErrInvalidAmount
	}
	mode, ok := ledger.ParseCurrency(modeRaw)
	if !ok {
		return db.Transaction{}, decimal.Zero, domain.ErrInvalidMode
	}

	unlock := s.locks.Lock(balanceKey(userID, mode))
	defer unlock()

	t := db.Transaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   string(domain.TxFunding),
		Amount: amount,
		Mode:   string(mode),
		Status: string(domain.TxFunding.InitialStatus()),
		Plan:   "admin funding",
	}
	var balance decimal.Decimal
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		if _, err := q.GetUserByID(ctx, userID); err != nil {
			return s.mapNotFound(err, "user %s not found", userID)
		}
		var err error
		balance, err = ledger.Adjust(ctx, q, userID, mode, amount)
		if err != nil {
			return err
		}
		return q.CreateTransaction(ctx, &t)
	})
	if err != nil {
		s.recordRejection(err)
		return db.Transaction{}, decimal.Zero, err
	}

	if s.metrics != nil {
		s.metrics.IncrementFundings()
	}
	s.log.Info("user funded",
		zap.String("user_id", userID), zap.String("amount", amount.String()),
		zap.String("mode", string(mode)), zap.String("admin_id", actor.ID))

	s.notifier.Notify(notify.Request{Recipient: notify.User(userID), Template: notify.TemplateAccountFunded, Params: txParams(t)})
	s.publishTx(t, "")
	s.publishBalance(userID, mode, amount, balance)
	return t, balance, nil
}

// Get returns a transaction visible to the actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (db.Transaction, error) {
	if err := domain.Authorize(actor, domain.ActionViewOwnTransactions); err != nil {
		return db.Transaction{}, err
	}
	t, err := s.db.Queries().GetTransaction(ctx, id)
	if err != nil {
		return db.Transaction{}, s.mapNotFound(err, "transaction %s not found", id)
	}
	if t.UserID != actor.ID && !domain.Allowed(actor.Role, domain.ActionViewAllTransactions) {
		return db.Transaction{}, domain.ErrForbidden
	}
	return t, nil
}

// ListMine returns the actor's own transactions, newest first.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor, limit, offset int) ([]db.Transaction, error) {
	if err := domain.Authorize(actor, domain.ActionViewOwnTransactions); err != nil {
		return nil, err
	}
	return s.db.Queries().ListTransactions(ctx, db.TransactionFilter{UserID: actor.ID, Limit: limit, Offset: offset})
}

// Filter narrows the admin listing. Values are parsed leniently.
type Filter struct {
	UserID string
	Status string
	Type   string
	Mode   string
	Limit  int
	Offset int
}

// ListAll returns every transaction matching f, newest first.
func (s *Service) ListAll(ctx context.Context, actor domain.Actor, f Filter) ([]db.Transaction, error) {
	if err := domain.Authorize(actor, domain.ActionViewAllTransactions); err != nil {
		return nil, err
	}
	dbf := db.TransactionFilter{UserID: f.UserID, Limit: f.Limit, Offset: f.Offset}
	if f.Status != "" {
		st, ok := domain.ParseStatus(f.Status)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		dbf.Status = string(st)
	}
	if f.Type != "" {
		tt, ok := domain.ParseTxType(f.Type)
		if !ok {
			return nil, domain.ErrInvalidType
		}
		dbf.Type = string(tt)
	}
	if f.Mode != "" {
		m, ok := ledger.ParseCurrency(f.Mode)
		if !ok {
			return nil, domain.ErrInvalidMode
		}
		dbf.Mode = string(m)
	}
	return s.db.Queries().ListTransactions(ctx, dbf)
}

// Delete removes a transaction record. Approved ones must be rolled back
// first so no applied effect is orphaned.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.Authorize(actor, domain.ActionDeleteTransaction); err != nil {
		return err
	}
	unlock := s.locks.Lock(txKey(id))
	defer unlock()

	err := s.db.InTx(ctx, func(q *db.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return s.mapNotFound(err, "transaction %s not found", id)
		}
		if t.Status == string(domain.StatusApproved) {
			return domain.ErrApprovedDelete
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("transaction deleted", zap.String("id", id), zap.String("admin_id", actor.ID))
	return nil
}

func (s *Service) mapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, db.ErrNotFound) {
		return domain.ErrNotFound.Withf(format, args...)
	}
	return err
}

func (s *Service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementRejected()
	if domain.KindOf(err) == domain.KindConcurrencyConflict {
		s.metrics.IncrementConflicts()
	}
}

func (s *Service) timer() func() {
	if s.metrics == nil {
		return func() {}
	}
	t := monitor.NewTimer(s.metrics.TransitionLatency)
	return func() { t.Stop() }
}

func (s *Service) publishTx(t db.Transaction, prev string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.EventTransactionUpdate, events.TransactionUpdate{
		UserID:        t.UserID,
		TransactionID: t.ID,
		Type:          t.Type,
		Amount:        t.Amount.String(),
		Mode:          t.Mode,
		Status:        t.Status,
		PrevStatus:    prev,
		UpdatedAt:     t.UpdatedAt,
	})
}

func (s *Service) publishBalance(userID string, c ledger.Currency, delta, amount decimal.Decimal) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.EventBalanceUpdate, events.BalanceUpdate{
		UserID:   userID,
		Currency: string(c),
		Delta:    delta.String(),
		Amount:   amount.String(),
	})
}

func txParams(t db.Transaction) map[string]string {
	return map[string]string{
		"ID":     t.ID,
		"TYPE":   t.Type,
		"AMOUNT": t.Amount.String(),
		"MODE":   t.Mode,
		"STATUS": t.Status,
	}
}
