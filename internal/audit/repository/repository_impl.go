package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/vatdesk/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns newest entries first, fetching one row past Limit so callers can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Scopes(matchFilter(filter), afterCursor(filter.Cursor)).
		Order("created_at desc, id desc").
		Scopes(limitPlusOne(filter.Limit)).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func matchFilter(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		equals := []struct {
			column string
			value  string
		}{
			{"action", filter.Action},
			{"target_type", filter.TargetType},
			{"target_id", filter.TargetID},
			{"actor_type", filter.ActorType},
		}
		for _, eq := range equals {
			if v := strings.TrimSpace(eq.value); v != "" {
				tx = tx.Where(eq.column+" = ?", v)
			}
		}
		if filter.StartAt != nil {
			tx = tx.Where("created_at >= ?", filter.StartAt.UTC())
		}
		if filter.EndAt != nil {
			tx = tx.Where("created_at <= ?", filter.EndAt.UTC())
		}
		return tx
	}
}

func afterCursor(cursor *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if cursor == nil {
			return tx
		}
		at := cursor.CreatedAt.UTC()
		return tx.Where("created_at < ? OR (created_at = ? AND id < ?)", at, at, cursor.ID)
	}
}

func limitPlusOne(limit int) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit + 1)
	}
}
