package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"investment-core/pkg/db"
)

// SeedBot is one bot entry in the catalog file.
type SeedBot struct {
	Name               string  `yaml:"name"`
	Description        string  `yaml:"description"`
	Price              float64 `yaml:"price"`
	Mode               string  `yaml:"mode"`
	DailyReturnPercent float64 `yaml:"daily_return_percent"`
	DurationDays       int     `yaml:"duration_days"`
	MaxReturnPercent   float64 `yaml:"max_return_percent"`
	Active             *bool   `yaml:"active"`
}

// SeedFile is the top-level YAML structure.
type SeedFile struct {
	Bots []SeedBot `yaml:"bots"`
}

// LoadFile reads bot definitions from a YAML file.
func LoadFile(path string) ([]SeedBot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Bots, nil
}

func (sb SeedBot) toBot() db.Bot {
	status := "active"
	if sb.Active != nil && !*sb.Active {
		status = "inactive"
	}
	return db.Bot{
		Name:               sb.Name,
		Description:        sb.Description,
		Price:              decimal.NewFromFloat(sb.Price),
		Mode:               sb.Mode,
		DailyReturnPercent: decimal.NewFromFloat(sb.DailyReturnPercent),
		DurationDays:       sb.DurationDays,
		MaxReturnPercent:   decimal.NewFromFloat(sb.MaxReturnPercent),
		Status:             status,
	}
}

// Sync upserts the seed bots by name in one database transaction. Existing
// ids are kept so past purchases still point at the same bot.
func (s *Service) Sync(ctx context.Context, seeds []SeedBot) (int, error) {
	n := 0
	err := s.db.InTx(ctx, func(q *db.Queries) error {
		for _, sb := range seeds {
			b := sb.toBot()
			if err := validate(&b); err != nil {
				return fmt.Errorf("bot %q: %w", sb.Name, err)
			}

			existing, err := q.GetBotByName(ctx, b.Name)
			switch {
			case errors.Is(err, db.ErrNotFound):
				b.ID = uuid.NewString()
				if err := q.CreateBot(ctx, &b); err != nil {
					return fmt.Errorf("failed to insert bot %s: %w", b.Name, err)
				}
			case err != nil:
				return err
			default:
				b.ID = existing.ID
				b.CreatedAt = existing.CreatedAt
				if err := q.UpdateBot(ctx, &b); err != nil {
					return fmt.Errorf("failed to update bot %s: %w", b.Name, err)
				}
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("catalog synced", zap.Int("bots", n))
	return n, nil
}

// SyncFile loads path and syncs it. A missing file is not an error.
func (s *Service) SyncFile(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	seeds, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info("no catalog file", zap.String("path", path))
			return 0, nil
		}
		return 0, err
	}
	return s.Sync(ctx, seeds)
}
