package api

import (
	"time"

	"investment-core/internal/ledger"
	"investment-core/pkg/db"
)

type userView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	UserName       string    `json:"userName"`
	FullName       string    `json:"fullName"`
	PhoneNumber    string    `json:"phoneNumber"`
	Country        string    `json:"country"`
	CountryFlag    string    `json:"countryFlag"`
	ProfilePicture []string  `json:"profilePicture"`
	Role           string    `json:"role"`
	IsVerified     bool      `json:"isVerified"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toUserView(u db.User) userView {
	pics := []string(u.ProfilePicture)
	if pics == nil {
		pics = []string{}
	}
	return userView{
		ID:             u.ID,
		Email:          u.Email,
		UserName:       u.UserName,
		FullName:       u.FullName,
		PhoneNumber:    u.PhoneNumber,
		Country:        u.Country,
		CountryFlag:    u.CountryFlag,
		ProfilePicture: pics,
		Role:           u.Role,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUserViews(users []db.User) []userView {
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = toUserView(u)
	}
	return out
}

func balanceView(b ledger.Balance) map[string]string {
	out := make(map[string]string, len(b))
	for c, v := range b {
		out[string(c)] = v.String()
	}
	return out
}

type transactionView struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	Type               string    `json:"type"`
	Amount             string    `json:"amount"`
	Mode               string    `json:"mode"`
	Status             string    `json:"status"`
	Proof              []string  `json:"proof"`
	Address            string    `json:"address,omitempty"`
	Plan               string    `json:"plan,omitempty"`
	BotID              string    `json:"botId,omitempty"`
	DailyReturnPercent string    `json:"dailyReturnPercent,omitempty"`
	DurationDays       int       `json:"durationDays,omitempty"`
	MaxReturnPercent   string    `json:"maxReturnPercent,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toTransactionView(t db.Transaction) transactionView {
	v := transactionView{
		ID:        t.ID,
		UserID:    t.UserID,
		Type:      t.Type,
		Amount:    t.Amount.String(),
		Mode:      t.Mode,
		Status:    t.Status,
		Proof:     []string(t.Proof),
		Address:   t.Address,
		Plan:      t.Plan,
		BotID:     t.BotID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if v.Proof == nil {
		v.Proof = []string{}
	}
	if t.BotID != "" {
		v.DailyReturnPercent = t.DailyReturnPercent.String()
		v.DurationDays = t.DurationDays
		v.MaxReturnPercent = t.MaxReturnPercent.String()
	}
	return v
}

func toTransactionViews(list []db.Transaction) []transactionView {
	out := make([]transactionView, len(list))
	for i, t := range list {
		out[i] = toTransactionView(t)
	}
	return out
}

type botView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Price              string    `json:"price"`
	Mode               string    `json:"mode"`
	DailyReturnPercent string    `json:"dailyReturnPercent"`
	DurationDays       int       `json:"durationDays"`
	MaxReturnPercent   string    `json:"maxReturnPercent"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toBotView(b db.Bot) botView {
	return botView{
		ID:                 b.ID,
		Name:               b.Name,
		Description:        b.Description,
		Price:              b.Price.String(),
		Mode:               b.Mode,
		DailyReturnPercent: b.DailyReturnPercent.String(),
		DurationDays:       b.DurationDays,
		MaxReturnPercent:   b.MaxReturnPercent.String(),
		Status:             b.Status,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func toBotViews(list []db.Bot) []botView {
	out := make([]botView, len(list))
	for i, b := range list {
		out[i] = toBotView(b)
	}
	return out
}

type notificationView struct {
	ID        int64     `json:"id"`
	Template  string    `json:"template"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Meta      any       `json:"meta,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationViews(list []db.Notification) []notificationView {
	out := make([]notificationView, len(list))
	for i, n := range list {
		out[i] = notificationView{
			ID:        n.ID,
			Template:  n.Template,
			Title:     n.Title,
			Message:   n.Message,
			Meta:      n.Meta,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}
