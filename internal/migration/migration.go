package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations/postgres"

// Models lists every table the service owns, in creation order.
func Models() []any {
	return []any{
		&vendordomain.Vendor{},
		&vatdomain.VatReturn{},
		&vatdomain.Version{},
		&vatdomain.Activity{},
		&txdomain.Transaction{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date. Postgres uses the versioned SQL files;
// mysql and sqlite fall back to gorm AutoMigrate.
func Migrate(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	default:
		return conn.AutoMigrate(Models()...)
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
