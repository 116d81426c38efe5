package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"investment-core/internal/domain"
	"investment-core/internal/ledger"
	"investment-core/internal/notify"
	"investment-core/pkg/db"
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

func (c *captureNotifier) last(tpl notify.Template) (notify.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.reqs) - 1; i >= 0; i-- {
		if c.reqs[i].Template == tpl {
			return c.reqs[i], true
		}
	}
	return notify.Request{}, false
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID string, role domain.Role) (string, error) {
	return "token-" + userID + "-" + string(role), nil
}

func newService(t *testing.T) (*Service, *captureNotifier) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	n := &captureNotifier{}
	return NewService(database, fakeTokens{}, n, nil), n
}

func register(t *testing.T, svc *Service, email string) db.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{UserName: "alice", Email: email, Password: "s3cret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func TestRegister(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()

	u := register(t, svc, "  Alice@Example.com ")
	if u.Email != "alice@example.com" || u.IsVerified || u.Role != string(domain.RoleUser) {
		t.Fatalf("unexpected user %+v", u)
	}
	if len(u.VerificationCode) != 6 {
		t.Fatalf("code = %q, want 6 digits", u.VerificationCode)
	}

	bal, err := ledger.Snapshot(ctx, svc.db.Queries(), u.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, c := range ledger.Supported {
		if !bal.Get(c).IsZero() {
			t.Fatalf("%s balance = %s, want 0", c, bal.Get(c))
		}
	}
	rows, _ := svc.db.Queries().ListBalances(ctx, u.ID)
	if len(rows) != len(ledger.Supported) {
		t.Fatalf("balance rows = %d, want %d", len(rows), len(ledger.Supported))
	}

	req, ok := n.last(notify.TemplateRegister)
	if !ok || req.Params["CODE"] != u.VerificationCode || req.Recipient.UserID != u.ID {
		t.Fatalf("register notification = %+v", req)
	}
	if _, ok := n.last(notify.TemplateUserRegistered); !ok {
		t.Fatal("admins were not notified")
	}

	t.Run("duplicate email reports verification state", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{UserName: "bob", Email: "alice@example.com", Password: "x"})
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		var existing *ExistingAccountError
		if !errors.As(err, &existing) || existing.IsVerified {
			t.Fatalf("expected unverified ExistingAccountError, got %#v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []RegisterInput{
			{UserName: "x", Email: "not-an-email", Password: "p"},
			{UserName: "", Email: "x@example.com", Password: "p"},
			{UserName: "x", Email: "x@example.com", Password: ""},
		}
		for _, in := range cases {
			if _, err := svc.Register(ctx, in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
			}
		}
	})
}

func TestVerifyAndLogin(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()
	u := register(t, svc, "alice@example.com")

	if _, err := svc.Login(ctx, "alice@example.com", "s3cret"); !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if _, err := svc.Verify(ctx, "nobody@example.com", "123456"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	wrong := "000000"
	if u.VerificationCode == wrong {
		wrong = "111111"
	}
	if _, err := svc.Verify(ctx, "alice@example.com", wrong); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	got, err := svc.Verify(ctx, "alice@example.com", u.VerificationCode)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !got.IsVerified || got.VerificationCodeOld != u.VerificationCode {
		t.Fatalf("unexpected user after verify %+v", got)
	}
	if _, ok := n.last(notify.TemplateUserVerified); !ok {
		t.Fatal("admins were not told about verification")
	}
	if _, err := svc.Verify(ctx, "alice@example.com", u.VerificationCode); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}

	t.Run("login", func(t *testing.T) {
		if _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := svc.Login(ctx, "ghost@example.com", "s3cret"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		sess, err := svc.Login(ctx, "ALICE@example.com", "s3cret")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if sess.Token != "token-"+u.ID+"-user" {
			t.Fatalf("token = %q", sess.Token)
		}
		if _, ok := n.last(notify.TemplateUserLoggedIn); !ok {
			t.Fatal("admins were not told about login")
		}
	})
}

func TestResendVerificationRejectsConsumedCode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u := register(t, svc, "alice@example.com")

	if err := svc.ResendVerification(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	fresh, _ := svc.db.Queries().GetUserByEmail(ctx, "alice@example.com")
	if fresh.VerificationCode == u.VerificationCode {
		t.Fatal("code was not rotated")
	}
	if _, err := svc.Verify(ctx, "alice@example.com", u.VerificationCode); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("stale code accepted: %v", err)
	}

	// a code equal to the consumed one never verifies
	fresh.VerificationCodeOld = fresh.VerificationCode
	if err := svc.db.Queries().UpdateUser(ctx, &fresh); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, err := svc.Verify(ctx, "alice@example.com", fresh.VerificationCode); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("reused code accepted: %v", err)
	}
}

func TestProfile(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()
	u := register(t, svc, "alice@example.com")
	actor := domain.Actor{ID: u.ID, Role: domain.RoleUser}

	name := "Alice Liddell"
	flag := "GB"
	got, err := svc.UpdateProfile(ctx, actor, ProfilePatch{FullName: &name, CountryFlag: &flag})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FullName != name || got.CountryFlag != flag {
		t.Fatalf("unexpected user %+v", got)
	}
	req, ok := n.last(notify.TemplateProfileUpdated)
	if !ok || req.Params["FIELDS"] != "fullName, countryFlag" || !req.Recipient.Admins {
		t.Fatalf("profile notification = %+v", req)
	}

	empty := " "
	if _, err := svc.UpdateProfile(ctx, actor, ProfilePatch{UserName: &empty}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, old, err := svc.ChangeProfilePicture(ctx, actor, []string{"/uploads/profile/a.png"})
	if err != nil || len(old) != 0 {
		t.Fatalf("ChangeProfilePicture = %v, %v", old, err)
	}
	_, old, _ = svc.ChangeProfilePicture(ctx, actor, []string{"/uploads/profile/b.png"})
	if len(old) != 1 || old[0] != "/uploads/profile/a.png" {
		t.Fatalf("replaced = %v", old)
	}

	me, err := svc.Me(ctx, actor)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.User.ProfilePicture[0] != "/uploads/profile/b.png" || len(me.Balances) != len(ledger.Supported) {
		t.Fatalf("unexpected profile %+v", me)
	}
}

func TestAdminUserManagement(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root@example.com", "rootpw"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "root@example.com", "rootpw"); err != nil {
		t.Fatalf("EnsureAdmin twice: %v", err)
	}
	rootUser, err := svc.db.Queries().GetUserByEmail(ctx, "root@example.com")
	if err != nil || rootUser.Role != string(domain.RoleAdmin) || !rootUser.IsVerified {
		t.Fatalf("bootstrap admin = %+v, %v", rootUser, err)
	}
	sess, err := svc.Login(ctx, "root@example.com", "rootpw")
	if err != nil {
		t.Fatalf("admin Login: %v", err)
	}
	admin := domain.Actor{ID: sess.User.ID, Role: domain.RoleAdmin}

	u := register(t, svc, "alice@example.com")
	user := domain.Actor{ID: u.ID, Role: domain.RoleUser}

	if _, err := svc.List(ctx, user, 0, 0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	list, err := svc.List(ctx, admin, 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %d, %v", len(list), err)
	}

	verified := true
	bad := "root"
	if _, err := svc.Update(ctx, admin, u.ID, UserPatch{Role: &bad}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	updated, err := svc.Update(ctx, admin, u.ID, UserPatch{IsVerified: &verified})
	if err != nil || !updated.IsVerified {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	if err := svc.Delete(ctx, admin, admin.ID); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected self-delete to fail, got %v", err)
	}
	if err := svc.Delete(ctx, admin, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, admin, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rows, _ := svc.db.Queries().ListBalances(ctx, u.ID)
	if len(rows) != 0 {
		t.Fatalf("balances left behind: %d", len(rows))
	}
	if err := svc.Delete(ctx, admin, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
