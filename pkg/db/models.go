package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// StringList is a list of strings stored as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan StringList: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan StringList: %w", err)
	}
	*l = out
	return nil
}

// User represents an application user.
type User struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	UserName            string     `db:"user_name"`
	FullName            string     `db:"full_name"`
	PhoneNumber         string     `db:"phone_number"`
	Country             string     `db:"country"`
	CountryFlag         string     `db:"country_flag"`
	ProfilePicture      StringList `db:"profile_picture"`
	Role                string     `db:"role"`
	IsVerified          bool       `db:"is_verified"`
	VerificationCode    string     `db:"verification_code"`
	VerificationCodeOld string     `db:"verification_code_old"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Balance is one per-currency balance row of a user.
type Balance struct {
	UserID    string          `db:"user_id"`
	Currency  string          `db:"currency"`
	Amount    decimal.Decimal `db:"amount"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Transaction is a persisted financial intent with a lifecycle status.
// Type, amount and mode never change after insert.
type Transaction struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	Type               string          `db:"type"`
	Amount             decimal.Decimal `db:"amount"`
	Mode               string          `db:"mode"`
	Status             string          `db:"status"`
	Proof              StringList      `db:"proof"`
	Address            string          `db:"address"`
	Plan               string          `db:"plan"`
	BotID              string          `db:"bot_id"`
	DailyReturnPercent decimal.Decimal `db:"daily_return_percent"`
	DurationDays       int             `db:"duration_days"`
	MaxReturnPercent   decimal.Decimal `db:"max_return_percent"`
	Version            int64           `db:"version"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Bot is a purchasable trading bot in the catalog.
type Bot struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	Description        string          `db:"description"`
	Price              decimal.Decimal `db:"price"`
	Mode               string          `db:"mode"`
	DailyReturnPercent decimal.Decimal `db:"daily_return_percent"`
	DurationDays       int             `db:"duration_days"`
	MaxReturnPercent   decimal.Decimal `db:"max_return_percent"`
	Status             string          `db:"status"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Notification is one inbox entry of a user.
type Notification struct {
	ID        int64          `db:"id"`
	UserID    string         `db:"user_id"`
	Template  string         `db:"template"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	Meta      types.JSONText `db:"meta"`
	IsRead    bool           `db:"is_read"`
	CreatedAt time.Time      `db:"created_at"`
}

// TransactionFilter narrows ListTransactions. Empty fields match everything.
type TransactionFilter struct {
	UserID string
	Status string
	Type   string
	Mode   string
	Limit  int
	Offset int
}
