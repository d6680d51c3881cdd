package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/audit"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/lock"
	"github.com/smallbiznis/vatdesk/internal/observability"
	"github.com/smallbiznis/vatdesk/internal/transaction"
	"github.com/smallbiznis/vatdesk/internal/vatreturn"
	"github.com/smallbiznis/vatdesk/internal/vendordir"
	"github.com/smallbiznis/vatdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "vatctl",
	Short: "Operate a vatdesk database from the command line",
	Long: `vatctl runs the same commands as the vatdesk HTTP service against the
configured database: schema migration, seeding, ledger import,
reconciliation and export.

Configuration is read from the environment and .env, exactly as the service does.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "vatctl: %v\n", err)
		os.Exit(1)
	}
}

// runApp starts the infrastructure and domain modules, fills targets and
// calls fn. The app is stopped before returning.
func runApp(ctx context.Context, fn func() error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		audit.Module,
		vendordir.Module,
		transaction.Module,
		vatreturn.Module,
		fx.Populate(targets...),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "vatctl: shutdown: %v\n", err)
		}
	}()
	return fn()
}

func newSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

// cliContext tags audit entries and logs with the operating system user.
func cliContext(ctx context.Context) context.Context {
	actor := "unknown"
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		actor = u.Username
	}
	return auditcontext.WithActor(ctx, string(auditdomain.ActorTypeCLI), actor)
}

func logStep(log *zap.Logger, msg string, fields ...zap.Field) {
	if log == nil {
		return
	}
	log.Named("vatctl").Info(msg, fields...)
}
