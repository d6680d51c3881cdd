package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Matched  *bool
	Type     Type
	ReturnID *snowflake.ID
	From     *time.Time
	To       *time.Time
}

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, txs []Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	// List returns newest first.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
	ListUnmatched(ctx context.Context, db *gorm.DB) ([]Transaction, error)
	ListByReturn(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]Transaction, error)
	// MarkMatched flips one unmatched row; false means it was already matched.
	MarkMatched(ctx context.Context, db *gorm.DB, id snowflake.ID, returnID *snowflake.ID, at time.Time) (bool, error)
	// Claim matches every still-unmatched row among ids and returns how many it flipped.
	Claim(ctx context.Context, db *gorm.DB, ids []snowflake.ID, returnID snowflake.ID, at time.Time) (int64, error)
}
