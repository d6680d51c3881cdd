package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
}

// Repository persists returns with their versions and activity. Methods take
// the *gorm.DB to run on so callers can group writes in one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *VatReturn) error
	// Update writes r only if the stored revision still equals expectedRevision.
	Update(ctx context.Context, db *gorm.DB, r *VatReturn, expectedRevision int64) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VatReturn, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]VatReturn, error)

	InsertVersion(ctx context.Context, db *gorm.DB, v *Version) error
	ListVersions(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]Version, error)

	InsertActivity(ctx context.Context, db *gorm.DB, a *Activity) error
	ListActivities(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]Activity, error)
}
