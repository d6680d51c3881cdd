package migration

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Tax   *config.TaxConfigHolder
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run migrates the schema and, when SEED_FILE is set, loads demo data.
// A seed file that cannot be read fails startup.
func Run(p Params) error {
	if err := Migrate(p.DB, p.Cfg.DBType); err != nil {
		return err
	}

	path := strings.TrimSpace(p.Cfg.SeedFile)
	if path == "" {
		return nil
	}
	ds, err := seed.Load(path)
	if err != nil {
		return err
	}
	summary, err := seed.Apply(context.Background(), p.DB, ds, seed.Options{
		Node:    p.GenID,
		VatRate: p.Tax.VatRate(),
		Now:     p.Clock.Now(),
	})
	if err != nil {
		return err
	}
	p.Log.Named("migration").Info("seed applied",
		zap.String("path", path),
		zap.Bool("skipped", summary.Skipped),
		zap.Int("vendors", summary.Vendors),
		zap.Int("returns", summary.Returns),
		zap.Int("transactions", summary.Transactions),
	)
	return nil
}
