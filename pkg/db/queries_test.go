package db

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestMigrationsAreIdempotent(t *testing.T) {
	database := newTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
	ok, err := columnExists(database.DB, "transactions", "bot_id")
	if err != nil || !ok {
		t.Fatalf("bot_id column missing: %v", err)
	}
}

func TestUserQueries(t *testing.T) {
	database := newTestDB(t)
	q := database.Queries()
	ctx := context.Background()

	u := &User{ID: "u1", Email: "alice@example.com", PasswordHash: "hash", UserName: "alice", Role: "user"}
	if err := q.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	t.Run("duplicate email", func(t *testing.T) {
		dup := &User{ID: "u2", Email: "alice@example.com", PasswordHash: "x", Role: "user"}
		if err := q.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("lookup by email is case-insensitive", func(t *testing.T) {
		got, err := q.GetUserByEmail(ctx, "  Alice@Example.com ")
		if err != nil {
			t.Fatalf("GetUserByEmail: %v", err)
		}
		if got.ID != "u1" || got.IsVerified {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		u.IsVerified = true
		u.ProfilePicture = StringList{"/uploads/profile/a.png"}
		if err := q.UpdateUser(ctx, u); err != nil {
			t.Fatalf("UpdateUser: %v", err)
		}
		got, err := q.GetUserByID(ctx, "u1")
		if err != nil {
			t.Fatalf("GetUserByID: %v", err)
		}
		if !got.IsVerified || len(got.ProfilePicture) != 1 {
			t.Errorf("update not persisted: %+v", got)
		}
		if err := q.DeleteUser(ctx, "u1"); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		if _, err := q.GetUserByID(ctx, "u1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBalanceVersioning(t *testing.T) {
	database := newTestDB(t)
	q := database.Queries()
	ctx := context.Background()

	if err := q.CreateBalances(ctx, "u1", []string{"BTC", "ETH"}); err != nil {
		t.Fatalf("CreateBalances: %v", err)
	}

	b, err := q.GetBalance(ctx, "u1", "BTC")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !b.Amount.IsZero() || b.Version != 0 {
		t.Fatalf("unexpected initial balance %+v", b)
	}

	if err := q.UpdateBalance(ctx, "u1", "BTC", decimal.RequireFromString("1.5"), b.Version); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if err := q.UpdateBalance(ctx, "u1", "BTC", decimal.RequireFromString("9"), b.Version); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale version should conflict, got %v", err)
	}

	b, _ = q.GetBalance(ctx, "u1", "BTC")
	if !b.Amount.Equal(decimal.RequireFromString("1.5")) || b.Version != 1 {
		t.Fatalf("unexpected balance after update %+v", b)
	}

	t.Run("user isolation", func(t *testing.T) {
		if _, err := q.ListBalances(ctx, ""); err != ErrUserIDRequired {
			t.Errorf("expected ErrUserIDRequired, got %v", err)
		}
		rows, err := q.ListBalances(ctx, "u2")
		if err != nil || len(rows) != 0 {
			t.Errorf("u2 should have no balances, got %d (%v)", len(rows), err)
		}
	})
}

func TestTransactionQueries(t *testing.T) {
	database := newTestDB(t)
	q := database.Queries()
	ctx := context.Background()

	for i, id := range []string{"t1", "t2", "t3"} {
		typ := "deposit"
		if i == 2 {
			typ = "withdrawal"
		}
		tx := &Transaction{
			ID: id, UserID: "u1", Type: typ, Amount: decimal.NewFromInt(int64(10 * (i + 1))),
			Mode: "BTC", Status: "pending", Proof: StringList{"/uploads/proof/" + id},
		}
		if err := q.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		txs, err := q.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if len(txs) != 3 || txs[0].ID != "t3" || txs[2].ID != "t1" {
			t.Fatalf("unexpected order: %v", txs)
		}
		if len(txs[0].Proof) != 1 {
			t.Errorf("proof not round-tripped: %v", txs[0].Proof)
		}
	})

	t.Run("filters", func(t *testing.T) {
		txs, err := q.ListTransactions(ctx, TransactionFilter{Type: "withdrawal"})
		if err != nil || len(txs) != 1 || txs[0].ID != "t3" {
			t.Fatalf("type filter: %v %v", txs, err)
		}
		txs, _ = q.ListTransactions(ctx, TransactionFilter{UserID: "other"})
		if len(txs) != 0 {
			t.Errorf("expected no rows for other user, got %d", len(txs))
		}
	})

	t.Run("optimistic status update", func(t *testing.T) {
		tx, err := q.GetTransaction(ctx, "t1")
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if err := q.UpdateTransactionStatus(ctx, "t1", "approved", tx.Version); err != nil {
			t.Fatalf("UpdateTransactionStatus: %v", err)
		}
		if err := q.UpdateTransactionStatus(ctx, "t1", "declined", tx.Version); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected version conflict, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := q.DeleteTransaction(ctx, "t2"); err != nil {
			t.Fatalf("DeleteTransaction: %v", err)
		}
		if err := q.DeleteTransaction(ctx, "t2"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestInTxRollsBack(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.InTx(ctx, func(q *Queries) error {
		if err := q.CreateBalances(ctx, "u1", []string{"BTC"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	rows, err := database.Queries().ListBalances(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBalances: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rollback did not discard rows: %d", len(rows))
	}
}

func TestBotAndNotificationQueries(t *testing.T) {
	database := newTestDB(t)
	q := database.Queries()
	ctx := context.Background()

	bot := &Bot{ID: "b1", Name: "Alpha", Price: decimal.NewFromInt(100), Mode: "BTC",
		DailyReturnPercent: decimal.NewFromInt(2), DurationDays: 30, MaxReturnPercent: decimal.NewFromInt(60), Status: "active"}
	if err := q.CreateBot(ctx, bot); err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if err := q.CreateBot(ctx, &Bot{ID: "b2", Name: "Alpha", Price: decimal.NewFromInt(60), Status: "active"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
	active, err := q.ListBots(ctx, "active")
	if err != nil || len(active) != 1 {
		t.Fatalf("ListBots: %v %v", active, err)
	}

	n := &Notification{UserID: "u1", Template: "register", Title: "Welcome", Message: "hi"}
	if err := q.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	inbox, err := q.ListNotifications(ctx, "u1", 10)
	if err != nil || len(inbox) != 1 || inbox[0].IsRead {
		t.Fatalf("ListNotifications: %v %v", inbox, err)
	}
	if n, err := q.MarkNotificationsRead(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("MarkNotificationsRead: %d %v", n, err)
	}
}

func TestVerifySchema(t *testing.T) {
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer database.Close()

	missing, err := VerifySchema(database)
	if err != nil {
		t.Fatalf("VerifySchema: %v", err)
	}
	if len(missing) != len(expectedTables)+len(columnMigrations) {
		t.Fatalf("empty database reported %d missing items: %v", len(missing), missing)
	}

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	missing, err = VerifySchema(database)
	if err != nil || len(missing) != 0 {
		t.Fatalf("after migrations missing=%v err=%v", missing, err)
	}
}
