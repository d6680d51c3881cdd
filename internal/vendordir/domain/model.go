package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)

type Vendor struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Vendor) TableName() string { return "vendors" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Vendor, error)
	List(ctx context.Context, db *gorm.DB) ([]Vendor, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Vendor, error)
}

type Response struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	// Names resolves display names for ids; unknown ids are omitted.
	Names(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error)
}
