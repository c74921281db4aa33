package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/entity"
	"github.com/Additional-Code/foundry/internal/identifier"
	"github.com/Additional-Code/foundry/internal/pipeline"
)

// Module registers the seeder with Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds a handful of in-pipeline orders if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	prefix := identifier.PeriodCode(now)

	layupDone := now.AddDate(0, 0, -10)
	pluggingDone := now.AddDate(0, 0, -4)

	samples := []entity.Order{
		{
			OrderID:           identifier.FormatIdentifier(prefix, 1),
			CustomerID:        "CUST-ACME",
			CustomerPO:        "PO-88120",
			ModelID:           "M40A5",
			Handedness:        "right",
			CurrentDepartment: string(pipeline.Layup),
			Status:            entity.StatusActive,
			OrderDate:         now.AddDate(0, 0, -3),
			DueDate:           now.AddDate(0, 0, 87),
			CreatedAt:         now.AddDate(0, 0, -3),
			UpdatedAt:         now,
		},
		{
			OrderID:           identifier.FormatIdentifier(prefix, 2),
			CustomerID:        "CUST-NORTHW",
			ModelID:           "M24",
			Handedness:        "left",
			IsAdjustable:      true,
			CurrentDepartment: string(pipeline.Plugging),
			Status:            entity.StatusActive,
			OrderDate:         now.AddDate(0, 0, -40),
			DueDate:           now.AddDate(0, 0, 50),
			LayupCompletedAt:  &layupDone,
			CreatedAt:         now.AddDate(0, 0, -40),
			UpdatedAt:         now,
		},
		{
			OrderID:             identifier.FormatIdentifier(prefix, 3),
			CustomerID:          "CUST-ACME",
			ModelID:             "M70",
			Handedness:          "right",
			CurrentDepartment:   string(pipeline.CNC),
			Status:              entity.StatusActive,
			OrderDate:           now.AddDate(0, 0, -55),
			DueDate:             now.AddDate(0, 0, 35),
			LayupCompletedAt:    &layupDone,
			PluggingCompletedAt: &pluggingDone,
			CreatedAt:           now.AddDate(0, 0, -55),
			UpdatedAt:           now,
		},
	}

	for _, sample := range samples {
		order := sample
		_, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (order_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
