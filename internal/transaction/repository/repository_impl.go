package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(txs, insertBatchSize).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	var items []domain.Transaction
	stmt := db.WithContext(ctx).Model(&domain.Transaction{})
	if filter.Matched != nil {
		stmt = stmt.Where("matched = ?", *filter.Matched)
	}
	if t := strings.TrimSpace(string(filter.Type)); t != "" {
		stmt = stmt.Where("type = ?", t)
	}
	if filter.ReturnID != nil {
		stmt = stmt.Where("matched_return_id = ?", *filter.ReturnID)
	}
	if filter.From != nil {
		stmt = stmt.Where("date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("date <= ?", filter.To.UTC())
	}
	if err := stmt.Order("date desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListUnmatched(ctx context.Context, db *gorm.DB) ([]domain.Transaction, error) {
	var items []domain.Transaction
	err := db.WithContext(ctx).
		Where("matched = ?", false).
		Order("date asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByReturn(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]domain.Transaction, error) {
	var items []domain.Transaction
	err := db.WithContext(ctx).
		Where("matched_return_id = ?", returnID).
		Order("date asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkMatched(ctx context.Context, db *gorm.DB, id snowflake.ID, returnID *snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND matched = ?", id, false).
		Updates(map[string]any{
			"matched":           true,
			"matched_return_id": returnID,
			"matched_at":        at,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, ids []snowflake.ID, returnID snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id IN ? AND matched = ?", ids, false).
		Updates(map[string]any{
			"matched":           true,
			"matched_return_id": returnID,
			"matched_at":        at,
			"updated_at":        at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
