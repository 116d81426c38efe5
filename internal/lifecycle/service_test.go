package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"investment-core/internal/domain"
	"investment-core/internal/ledger"
	"investment-core/internal/monitor"
	"investment-core/internal/notify"
	"investment-core/pkg/db"
)

var (
	admin = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	alice = domain.Actor{ID: "user-1", Role: domain.RoleUser}
	proof = []string{"/uploads/proof/p.png"}
)

type captureNotifier struct {
	mu   sync.Mutex
	reqs []notify.Request
}

func (c *captureNotifier) Notify(r notify.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, r)
}

func (c *captureNotifier) templates() []notify.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Template, len(c.reqs))
	for i, r := range c.reqs {
		out[i] = r.Template
	}
	return out
}

type fixture struct {
	db       *db.Database
	svc      *Service
	notifier *captureNotifier
	metrics  *monitor.SystemMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	ctx := context.Background()
	q := database.Queries()
	for _, a := range []domain.Actor{admin, alice} {
		u := &db.User{ID: a.ID, Email: a.ID + "@example.com", PasswordHash: "x", Role: string(a.Role), IsVerified: true}
		if err := q.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := q.CreateBalances(ctx, a.ID, ledger.Codes()); err != nil {
			t.Fatalf("CreateBalances: %v", err)
		}
	}

	n := &captureNotifier{}
	m := monitor.NewSystemMetrics()
	return &fixture{
		db:       database,
		svc:      NewService(Deps{DB: database, Notifier: n, Metrics: m}),
		notifier: n,
		metrics:  m,
	}
}

func (f *fixture) balance(t *testing.T, userID string, c ledger.Currency) decimal.Decimal {
	t.Helper()
	b, err := f.db.Queries().GetBalance(context.Background(), userID, string(c))
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	return b.Amount
}

func (f *fixture) setBalance(t *testing.T, userID string, c ledger.Currency, amount string) {
	t.Helper()
	q := f.db.Queries()
	b, err := q.GetBalance(context.Background(), userID, string(c))
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if err := q.UpdateBalance(context.Background(), userID, string(c), decimal.RequireFromString(amount), b.Version); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
}

func (f *fixture) status(t *testing.T, id string) string {
	t.Helper()
	tx, err := f.db.Queries().GetTransaction(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	return tx.Status
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertBalance(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"zero amount", CreateInput{Type: domain.TxDeposit, Amount: decimal.Zero, Mode: "BTC", Proof: proof}, domain.ErrInvalidAmount},
		{"negative amount", CreateInput{Type: domain.TxDeposit, Amount: dec("-1"), Mode: "BTC", Proof: proof}, domain.ErrInvalidAmount},
		{"unknown mode", CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "DOGE", Proof: proof}, domain.ErrInvalidMode},
		{"deposit without proof", CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "BTC"}, domain.ErrMissingProof},
		{"withdrawal without proof", CreateInput{Type: domain.TxWithdrawal, Amount: dec("1"), Mode: "BTC"}, domain.ErrMissingProof},
		{"bot purchase without proof", CreateInput{Type: domain.TxBotPurchase, Amount: dec("1"), Mode: "BTC"}, domain.ErrMissingProof},
		{"funding is admin only", CreateInput{Type: domain.TxFunding, Amount: dec("1"), Mode: "BTC"}, domain.ErrInvalidType},
		{"withdrawal over balance", CreateInput{Type: domain.TxWithdrawal, Amount: dec("1"), Mode: "BTC", Proof: proof}, domain.ErrInsufficientBalance},
		{"investment over balance", CreateInput{Type: domain.TxInvestment, Amount: dec("1"), Mode: "ETH"}, domain.ErrInsufficientBalance},
		{"unknown bot", CreateInput{Type: domain.TxBotPurchase, Amount: dec("100"), Mode: "BTC", Proof: proof, BotID: "nope"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, alice, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	txs, _ := f.svc.ListMine(ctx, alice, 0, 0)
	if len(txs) != 0 {
		t.Fatalf("failed submissions must not persist, found %d", len(txs))
	}
}

func TestCreateInitialStatusesAndNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, alice.ID, ledger.ETH, "10")

	dep, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("5"), Mode: "btc", Proof: proof})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if dep.Status != "pending" || dep.Mode != "BTC" {
		t.Fatalf("unexpected deposit %+v", dep)
	}

	inv, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxInvestment, Amount: dec("10"), Mode: "ETH", Plan: "gold"})
	if err != nil {
		t.Fatalf("investment: %v", err)
	}
	if inv.Status != "in progress" {
		t.Fatalf("investment status = %s", inv.Status)
	}
	// pre-check only, nothing reserved
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "10")

	got := f.notifier.templates()
	want := []notify.Template{
		notify.TemplateTransactionSubmitted, notify.TemplateTransactionSubmittedAdmin,
		notify.TemplateTransactionSubmitted, notify.TemplateTransactionSubmittedAdmin,
	}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notification %d = %s, want %s", i, got[i], want[i])
		}
	}
	if f.metrics.GetSnapshot().TransactionsCreated != 2 {
		t.Fatal("created counter not incremented")
	}
}

func TestScenarioDepositApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("100"), Mode: "BTC", Proof: proof})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.BTC), "0")

	updated, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if updated.Status != "approved" {
		t.Fatalf("status = %s", updated.Status)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.BTC), "100")
}

func TestScenarioInsufficientAtApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, alice.ID, ledger.ETH, "100")

	tx, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxWithdrawal, Amount: dec("80"), Mode: "ETH", Proof: proof})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.setBalance(t, alice.ID, ledger.ETH, "50")

	_, err = f.svc.UpdateStatus(ctx, admin, tx.ID, "approved")
	if domain.KindOf(err) != domain.KindInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "50")
	if s := f.status(t, tx.ID); s != "pending" {
		t.Fatalf("status = %s, want pending", s)
	}
}

func TestScenarioWithdrawalRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, alice.ID, ledger.ETH, "50")

	tx, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxWithdrawal, Amount: dec("30"), Mode: "ETH", Proof: proof, Address: "0xabc"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "20")

	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "pending"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "50")
}

func TestRoundTripRestoresBalance(t *testing.T) {
	for _, typ := range []domain.TxType{domain.TxDeposit, domain.TxWithdrawal, domain.TxInvestment} {
		t.Run(string(typ), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.setBalance(t, alice.ID, ledger.SOL, "40.5")

			tx, err := f.svc.Create(ctx, alice, CreateInput{Type: typ, Amount: dec("12.25"), Mode: "SOL", Proof: proof})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); err != nil {
				t.Fatalf("approve: %v", err)
			}
			if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "pending"); err != nil {
				t.Fatalf("rollback: %v", err)
			}
			assertBalance(t, f.balance(t, alice.ID, ledger.SOL), "40.5")
		})
	}
}

func TestMultiHopPathsRestoreBalance(t *testing.T) {
	paths := [][]string{
		{"approved", "pending"},
		{"declined", "approved", "pending"},
		{"in progress", "approved", "pending"},
		{"declined", "pending", "approved", "pending"},
	}
	types := []domain.TxType{domain.TxDeposit, domain.TxWithdrawal, domain.TxInvestment, domain.TxBotPurchase}

	for _, typ := range types {
		for _, path := range paths {
			t.Run(string(typ)+"/"+strings.Join(path, ">"), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()
				f.setBalance(t, alice.ID, ledger.ETH, "50")

				tx, err := f.svc.Create(ctx, alice, CreateInput{Type: typ, Amount: dec("30"), Mode: "ETH", Proof: proof})
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				for _, to := range path {
					if f.status(t, tx.ID) == to {
						continue
					}
					if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, to); err != nil {
						t.Fatalf("-> %s: %v", to, err)
					}
					want := "50"
					if to == "approved" {
						want = "80"
						if typ.Debits() {
							want = "20"
						}
					}
					assertBalance(t, f.balance(t, alice.ID, ledger.ETH), want)
				}
				assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "50")
			})
		}
	}
}

func TestNoOpTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "BTC", Proof: proof})
	_, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "pending")
	if !errors.Is(err, domain.ErrNoOpTransition) || domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected no-op conflict, got %v", err)
	}
	after, _ := f.db.Queries().GetTransaction(ctx, tx.ID)
	if after.Version != tx.Version {
		t.Fatal("no-op must not bump the version")
	}
}

func TestDeclineIsNeutral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, alice.ID, ledger.BNB, "7")

	for _, typ := range []domain.TxType{domain.TxDeposit, domain.TxWithdrawal} {
		tx, err := f.svc.Create(ctx, alice, CreateInput{Type: typ, Amount: dec("3"), Mode: "BNB", Proof: proof})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "declined"); err != nil {
			t.Fatalf("decline: %v", err)
		}
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.BNB), "7")
}

func TestApprovedCannotSkipRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("10"), Mode: "TRX", Proof: proof})
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "declined"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.TRX), "10")
}

func TestRollbackOfSpentCreditIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("10"), Mode: "XRP", Proof: proof})
	if _, err := f.svc.UpdateStatus(ctx, admin, dep.ID, "approved"); err != nil {
		t.Fatalf("approve deposit: %v", err)
	}
	wd, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxWithdrawal, Amount: dec("8"), Mode: "XRP", Proof: proof})
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, wd.ID, "approved"); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, admin, dep.ID, "pending")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.XRP), "2")
	if s := f.status(t, dep.ID); s != "approved" {
		t.Fatalf("deposit status = %s, want approved", s)
	}
}

func TestConcurrentApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("25"), Mode: "BTC", Proof: proof})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case domain.KindOf(err) == domain.KindConflict || domain.KindOf(err) == domain.KindConcurrencyConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.BTC), "25")
}

func TestBalancesNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, alice.ID, ledger.ETH, "10")

	var ids []string
	for _, amt := range []string{"6", "6", "6"} {
		tx, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxWithdrawal, Amount: dec(amt), Mode: "ETH", Proof: proof})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	approved := 0
	for _, id := range ids {
		if _, err := f.svc.UpdateStatus(ctx, admin, id, "approved"); err == nil {
			approved++
		} else if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if approved != 1 {
		t.Fatalf("approved %d withdrawals of 6 from 10", approved)
	}

	rows, _ := f.db.Queries().ListBalances(ctx, alice.ID)
	for _, r := range rows {
		if r.Amount.IsNegative() {
			t.Fatalf("%s balance went negative: %s", r.Currency, r.Amount)
		}
	}
}

func TestBotPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.db.Queries()

	active := &db.Bot{ID: "bot-a", Name: "Alpha", Price: dec("100"), Mode: "BTC",
		DailyReturnPercent: dec("1.5"), DurationDays: 30, MaxReturnPercent: dec("45"), Status: "active"}
	inactive := &db.Bot{ID: "bot-b", Name: "Beta", Price: dec("100"), Status: "inactive"}
	for _, b := range []*db.Bot{active, inactive} {
		if err := q.CreateBot(ctx, b); err != nil {
			t.Fatalf("CreateBot: %v", err)
		}
	}

	t.Run("inactive bot rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxBotPurchase, Amount: dec("100"), Mode: "BTC", Proof: proof, BotID: "bot-b"})
		if !errors.Is(err, domain.ErrBotInactive) {
			t.Fatalf("expected ErrBotInactive, got %v", err)
		}
	})

	t.Run("metadata copied and approval debits", func(t *testing.T) {
		f.setBalance(t, alice.ID, ledger.BTC, "150")
		tx, err := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxBotPurchase, Amount: dec("100"), Mode: "BTC", Proof: proof, BotID: "bot-a"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if tx.Plan != "Alpha" || tx.DurationDays != 30 || !tx.DailyReturnPercent.Equal(dec("1.5")) {
			t.Fatalf("bot metadata not copied: %+v", tx)
		}
		if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); err != nil {
			t.Fatalf("approve: %v", err)
		}
		assertBalance(t, f.balance(t, alice.ID, ledger.BTC), "50")
	})
}

func TestFund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Fund(ctx, alice, alice.ID, dec("5"), "BTC"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-admin funding should be forbidden, got %v", err)
	}
	if _, _, err := f.svc.Fund(ctx, admin, "ghost", dec("5"), "BTC"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	tx, bal, err := f.svc.Fund(ctx, admin, alice.ID, dec("5"), "eth")
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if tx.Type != "funding" || tx.Status != "approved" {
		t.Fatalf("unexpected funding tx %+v", tx)
	}
	assertBalance(t, bal, "5")
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "5")

	// funding rollback is a credit rollback
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "pending"); err != nil {
		t.Fatalf("rollback funding: %v", err)
	}
	assertBalance(t, f.balance(t, alice.ID, ledger.ETH), "0")
}

func TestAuthorizationAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "BTC", Proof: proof})

	if _, err := f.svc.UpdateStatus(ctx, alice, tx.ID, "approved"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("user transition should be forbidden, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "done"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, "missing", "approved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	bob := domain.Actor{ID: "user-2", Role: domain.RoleUser}
	if _, err := f.svc.Get(ctx, bob, tx.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other users must not read the transaction, got %v", err)
	}
	if _, err := f.svc.Get(ctx, admin, tx.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if _, err := f.svc.ListAll(ctx, alice, Filter{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("user ListAll should be forbidden, got %v", err)
	}
	all, err := f.svc.ListAll(ctx, admin, Filter{Type: "deposit", Mode: "btc", Status: "pending"})
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAll: %v %v", all, err)
	}
	if _, err := f.svc.ListAll(ctx, admin, Filter{Mode: "DOGE"}); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("expected invalid mode filter error, got %v", err)
	}
}

func TestOrphanedTransactionTransitionIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "BTC", Proof: proof})
	err := f.db.InTx(ctx, func(q *db.Queries) error {
		if err := q.DeleteBalances(ctx, alice.ID); err != nil {
			return err
		}
		return q.DeleteUser(ctx, alice.ID)
	})
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _ := f.svc.Create(ctx, alice, CreateInput{Type: domain.TxDeposit, Amount: dec("1"), Mode: "BTC", Proof: proof})
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "approved"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.svc.Delete(ctx, admin, tx.ID); !errors.Is(err, domain.ErrApprovedDelete) {
		t.Fatalf("expected conflict deleting approved, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, tx.ID, "pending"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := f.svc.Delete(ctx, admin, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, admin, tx.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
