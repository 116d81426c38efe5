package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserIDRequired  = errors.New("user_id is required for data isolation")
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrVersionConflict = errors.New("row version changed")
)

const defaultListLimit = 100

// Queries runs statements against either the database or an open
// transaction, depending on how it was obtained.
type Queries struct {
	ext sqlx.ExtContext
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

// ----------------------------------------
// User Queries
// ----------------------------------------

const userColumns = `id, email, password_hash, user_name, full_name, phone_number, country,
	country_flag, profile_picture, role, is_verified, verification_code,
	verification_code_old, created_at, updated_at`

// CreateUser inserts a user row. Duplicate emails return ErrDuplicate.
func (q *Queries) CreateUser(ctx context.Context, u *User) error {
	ts := now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = ts
	}
	u.UpdatedAt = ts
	if u.ProfilePicture == nil {
		u.ProfilePicture = StringList{}
	}

	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :password_hash, :user_name, :full_name, :phone_number, :country,
			:country_flag, :profile_picture, :role, :is_verified, :verification_code,
			:verification_code_old, :created_at, :updated_at)
	`, u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID fetches a user by id.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := sqlx.GetContext(ctx, q.ext, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by (lower-cased) email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := sqlx.GetContext(ctx, q.ext, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// ListUsers returns users newest first.
func (q *Queries) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	users := []User{}
	err := sqlx.SelectContext(ctx, q.ext, &users, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return users, nil
}

// ListUserIDsByRole returns the ids of every user with role.
func (q *Queries) ListUserIDsByRole(ctx context.Context, role string) ([]string, error) {
	ids := []string{}
	if err := sqlx.SelectContext(ctx, q.ext, &ids, `SELECT id FROM users WHERE role = ?`, role); err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	return ids, nil
}

// UpdateUser writes every mutable column of u.
func (q *Queries) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = now()
	res, err := sqlx.NamedExecContext(ctx, q.ext, `
		UPDATE users SET
			password_hash = :password_hash,
			user_name = :user_name,
			full_name = :full_name,
			phone_number = :phone_number,
			country = :country,
			country_flag = :country_flag,
			profile_picture = :profile_picture,
			role = :role,
			is_verified = :is_verified,
			verification_code = :verification_code,
			verification_code_old = :verification_code_old,
			updated_at = :updated_at
		WHERE id = :id
	`, u)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

// DeleteUser removes a user row.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	res, err := q.ext.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----------------------------------------
// Balance Queries
// ----------------------------------------

// CreateBalances inserts a zero balance row per currency for a user.
func (q *Queries) CreateBalances(ctx context.Context, userID string, currencies []string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	ts := now()
	for _, c := range currencies {
		if _, err := q.ext.ExecContext(ctx, `
			INSERT INTO balances (user_id, currency, amount, version, updated_at)
			VALUES (?, ?, '0', 0, ?)
			ON CONFLICT(user_id, currency) DO NOTHING
		`, userID, c, ts); err != nil {
			return fmt.Errorf("insert balance %s: %w", c, err)
		}
	}
	return nil
}

// ListBalances returns every balance row of a user.
func (q *Queries) ListBalances(ctx context.Context, userID string) ([]Balance, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	rows := []Balance{}
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT user_id, currency, amount, version, updated_at
		FROM balances WHERE user_id = ?
		ORDER BY currency`, userID)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	return rows, nil
}

// GetBalance returns one balance row.
func (q *Queries) GetBalance(ctx context.Context, userID, currency string) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrUserIDRequired
	}
	var b Balance
	err := sqlx.GetContext(ctx, q.ext, &b, `
		SELECT user_id, currency, amount, version, updated_at
		FROM balances WHERE user_id = ? AND currency = ?`, userID, currency)
	if err != nil {
		return Balance{}, notFound(err)
	}
	return b, nil
}

// UpdateBalance sets amount if the row is still at version, bumping it.
// A stale version returns ErrVersionConflict.
func (q *Queries) UpdateBalance(ctx context.Context, userID, currency string, amount decimal.Decimal, version int64) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE balances
		SET amount = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND currency = ? AND version = ?
	`, amount.String(), now(), userID, currency, version)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// DeleteBalances removes every balance row of a user.
func (q *Queries) DeleteBalances(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	if _, err := q.ext.ExecContext(ctx, `DELETE FROM balances WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete balances: %w", err)
	}
	return nil
}

// ----------------------------------------
// Transaction Queries
// ----------------------------------------

const transactionColumns = `id, user_id, type, amount, mode, status, proof, address, plan,
	bot_id, daily_return_percent, duration_days, max_return_percent, version,
	created_at, updated_at`

// CreateTransaction inserts a transaction row.
func (q *Queries) CreateTransaction(ctx context.Context, t *Transaction) error {
	if t.UserID == "" {
		return ErrUserIDRequired
	}
	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts
	if t.Proof == nil {
		t.Proof = StringList{}
	}

	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :user_id, :type, :amount, :mode, :status, :proof, :address, :plan,
			:bot_id, :daily_return_percent, :duration_days, :max_return_percent, :version,
			:created_at, :updated_at)
	`, t)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction fetches a transaction by id.
func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q.ext, &t, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return Transaction{}, notFound(err)
	}
	return t, nil
}

// ListTransactions returns transactions matching f, newest first.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, f.Mode)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	txs := []Transaction{}
	if err := sqlx.SelectContext(ctx, q.ext, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txs, nil
}

// UpdateTransactionStatus moves a transaction to status if it is still at
// version. A stale version returns ErrVersionConflict.
func (q *Queries) UpdateTransactionStatus(ctx context.Context, id, status string, version int64) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, status, now(), id, version)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// DeleteTransaction removes a transaction row.
func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.ext.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res)
}

// ----------------------------------------
// Bot Queries
// ----------------------------------------

const botColumns = `id, name, description, price, mode, daily_return_percent, duration_days,
	max_return_percent, status, created_at, updated_at`

// CreateBot inserts a bot. Duplicate names return ErrDuplicate.
func (q *Queries) CreateBot(ctx context.Context, b *Bot) error {
	ts := now()
	b.CreatedAt = ts
	b.UpdatedAt = ts
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO bots (`+botColumns+`)
		VALUES (:id, :name, :description, :price, :mode, :daily_return_percent, :duration_days,
			:max_return_percent, :status, :created_at, :updated_at)
	`, b)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// GetBot fetches a bot by id.
func (q *Queries) GetBot(ctx context.Context, id string) (Bot, error) {
	var b Bot
	if err := sqlx.GetContext(ctx, q.ext, &b, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id); err != nil {
		return Bot{}, notFound(err)
	}
	return b, nil
}

// GetBotByName fetches a bot by its unique name.
func (q *Queries) GetBotByName(ctx context.Context, name string) (Bot, error) {
	var b Bot
	if err := sqlx.GetContext(ctx, q.ext, &b, `SELECT `+botColumns+` FROM bots WHERE name = ?`, name); err != nil {
		return Bot{}, notFound(err)
	}
	return b, nil
}

// ListBots returns bots newest first, optionally only those with status.
func (q *Queries) ListBots(ctx context.Context, status string) ([]Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	bots := []Bot{}
	if err := sqlx.SelectContext(ctx, q.ext, &bots, query, args...); err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	return bots, nil
}

// UpdateBot writes every mutable column of b.
func (q *Queries) UpdateBot(ctx context.Context, b *Bot) error {
	b.UpdatedAt = now()
	res, err := sqlx.NamedExecContext(ctx, q.ext, `
		UPDATE bots SET
			name = :name,
			description = :description,
			price = :price,
			mode = :mode,
			daily_return_percent = :daily_return_percent,
			duration_days = :duration_days,
			max_return_percent = :max_return_percent,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`, b)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update bot: %w", err)
	}
	return expectOne(res)
}

// DeleteBot removes a bot.
func (q *Queries) DeleteBot(ctx context.Context, id string) error {
	res, err := q.ext.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	return expectOne(res)
}

// ----------------------------------------
// Notification Queries
// ----------------------------------------

// InsertNotificationSQL is the statement used by asynchronous inbox writers.
const InsertNotificationSQL = `
	INSERT INTO notifications (user_id, template, title, message, meta, is_read, created_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)`

// CreateNotification inserts an inbox entry synchronously.
func (q *Queries) CreateNotification(ctx context.Context, n *Notification) error {
	if n.UserID == "" {
		return ErrUserIDRequired
	}
	if len(n.Meta) == 0 {
		n.Meta = []byte("{}")
	}
	n.CreatedAt = now()
	res, err := q.ext.ExecContext(ctx, InsertNotificationSQL,
		n.UserID, n.Template, n.Title, n.Message, string(n.Meta), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		n.ID = id
	}
	return nil
}

// ListNotifications returns a user's inbox newest first.
func (q *Queries) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	out := []Notification{}
	err := sqlx.SelectContext(ctx, q.ext, &out, `
		SELECT id, user_id, template, title, message, meta, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationsRead flags every unread notification of a user as read.
func (q *Queries) MarkNotificationsRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	res, err := q.ext.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
