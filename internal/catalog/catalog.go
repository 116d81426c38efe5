// Package catalog manages the purchasable bot definitions.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"investment-core/internal/domain"
	"investment-core/internal/ledger"
	"investment-core/pkg/db"
)

var (
	minPrice = decimal.NewFromInt(50)
	maxPrice = decimal.NewFromInt(1000)
)

// Service is the bot catalog.
type Service struct {
	db  *db.Database
	log *zap.Logger
}

// NewService creates a catalog backed by database.
func NewService(database *db.Database, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: database, log: log.With(zap.String("component", "catalog"))}
}

// BotInput carries a full bot definition for create.
type BotInput struct {
	Name               string
	Description        string
	Price              *decimal.Decimal
	Mode               string
	DailyReturnPercent *decimal.Decimal
	DurationDays       *int
	MaxReturnPercent   *decimal.Decimal
	Status             string
}

// BotPatch carries the fields to change; nil means unchanged.
type BotPatch struct {
	Name               *string
	Description        *string
	Price              *decimal.Decimal
	Mode               *string
	DailyReturnPercent *decimal.Decimal
	DurationDays       *int
	MaxReturnPercent   *decimal.Decimal
	Status             *string
}

func validate(b *db.Bot) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return domain.ErrInvalidBot.Withf("name is required")
	}
	if b.Price.LessThan(minPrice) || b.Price.GreaterThan(maxPrice) {
		return domain.ErrInvalidBot.Withf("price must be between %s and %s", minPrice, maxPrice)
	}
	if b.DailyReturnPercent.IsNegative() {
		return domain.ErrInvalidBot.Withf("dailyReturnPercent must be >= 0")
	}
	if b.DurationDays < 1 {
		return domain.ErrInvalidBot.Withf("durationDays must be >= 1")
	}
	if b.MaxReturnPercent.IsNegative() {
		return domain.ErrInvalidBot.Withf("maxReturnPercent must be >= 0")
	}
	if b.Mode != "" {
		c, ok := ledger.ParseCurrency(b.Mode)
		if !ok {
			return domain.ErrInvalidMode
		}
		b.Mode = string(c)
	}
	switch domain.BotStatus(b.Status) {
	case "":
		b.Status = string(domain.BotActive)
	case domain.BotActive, domain.BotInactive:
	default:
		return domain.ErrInvalidBot.Withf("status must be active or inactive")
	}
	return nil
}

// Create adds a bot. Every numeric field is required.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in BotInput) (db.Bot, error) {
	if err := domain.Authorize(actor, domain.ActionManageBots); err != nil {
		return db.Bot{}, err
	}
	if in.Price == nil || in.DailyReturnPercent == nil || in.DurationDays == nil || in.MaxReturnPercent == nil {
		return db.Bot{}, domain.ErrInvalidBot.Withf("name, price, dailyReturnPercent, durationDays and maxReturnPercent are required")
	}
	b := db.Bot{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Description:        strings.TrimSpace(in.Description),
		Price:              *in.Price,
		Mode:               in.Mode,
		DailyReturnPercent: *in.DailyReturnPercent,
		DurationDays:       *in.DurationDays,
		MaxReturnPercent:   *in.MaxReturnPercent,
		Status:             in.Status,
	}
	if err := validate(&b); err != nil {
		return db.Bot{}, err
	}
	if err := s.db.Queries().CreateBot(ctx, &b); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return db.Bot{}, domain.ErrDuplicateName.Withf("bot %q already exists", b.Name)
		}
		return db.Bot{}, err
	}
	s.log.Info("bot created", zap.String("id", b.ID), zap.String("name", b.Name), zap.String("admin_id", actor.ID))
	return b, nil
}

// Update applies a partial change under the create rules.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, p BotPatch) (db.Bot, error) {
	if err := domain.Authorize(actor, domain.ActionManageBots); err != nil {
		return db.Bot{}, err
	}
	var out db.Bot
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		b, err := q.GetBot(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		if p.Name != nil {
			b.Name = *p.Name
		}
		if p.Description != nil {
			b.Description = strings.TrimSpace(*p.Description)
		}
		if p.Price != nil {
			b.Price = *p.Price
		}
		if p.Mode != nil {
			b.Mode = *p.Mode
		}
		if p.DailyReturnPercent != nil {
			b.DailyReturnPercent = *p.DailyReturnPercent
		}
		if p.DurationDays != nil {
			b.DurationDays = *p.DurationDays
		}
		if p.MaxReturnPercent != nil {
			b.MaxReturnPercent = *p.MaxReturnPercent
		}
		if p.Status != nil {
			b.Status = *p.Status
		}
		if err := validate(&b); err != nil {
			return err
		}
		if err := q.UpdateBot(ctx, &b); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return domain.ErrDuplicateName.Withf("bot %q already exists", b.Name)
			}
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return db.Bot{}, err
	}
	s.log.Info("bot updated", zap.String("id", id), zap.String("admin_id", actor.ID))
	return out, nil
}

// ToggleStatus flips a bot between active and inactive.
func (s *Service) ToggleStatus(ctx context.Context, actor domain.Actor, id string) (db.Bot, error) {
	if err := domain.Authorize(actor, domain.ActionManageBots); err != nil {
		return db.Bot{}, err
	}
	var out db.Bot
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		b, err := q.GetBot(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		b.Status = string(domain.BotStatus(b.Status).Toggle())
		if err := q.UpdateBot(ctx, &b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return db.Bot{}, err
	}
	s.log.Info("bot status toggled", zap.String("id", id), zap.String("status", out.Status))
	return out, nil
}

// Delete removes a bot. Past purchases keep their copied metadata.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.Authorize(actor, domain.ActionManageBots); err != nil {
		return err
	}
	if err := s.db.Queries().DeleteBot(ctx, id); err != nil {
		return notFound(err, id)
	}
	s.log.Info("bot deleted", zap.String("id", id), zap.String("admin_id", actor.ID))
	return nil
}

// Get returns one bot. Users cannot see inactive bots.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (db.Bot, error) {
	if err := domain.Authorize(actor, domain.ActionViewBots); err != nil {
		return db.Bot{}, err
	}
	b, err := s.db.Queries().GetBot(ctx, id)
	if err != nil {
		return db.Bot{}, notFound(err, id)
	}
	if b.Status != string(domain.BotActive) && !domain.Allowed(actor.Role, domain.ActionManageBots) {
		return db.Bot{}, domain.ErrNotFound.Withf("bot %s not found", id)
	}
	return b, nil
}

// List returns bots newest first: active only for users, all for admins.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]db.Bot, error) {
	if err := domain.Authorize(actor, domain.ActionViewBots); err != nil {
		return nil, err
	}
	status := string(domain.BotActive)
	if domain.Allowed(actor.Role, domain.ActionManageBots) {
		status = ""
	}
	return s.db.Queries().ListBots(ctx, status)
}

func notFound(err error, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return domain.ErrNotFound.Withf("bot %s not found", id)
	}
	return fmt.Errorf("bot %s: %w", id, err)
}
