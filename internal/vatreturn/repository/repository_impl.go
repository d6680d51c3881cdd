package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ret *domain.VatReturn) error {
	if ret == nil {
		return nil
	}
	return db.WithContext(ctx).Create(ret).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, ret *domain.VatReturn, expectedRevision int64) error {
	if ret == nil {
		return nil
	}
	res := db.WithContext(ctx).
		Model(ret).
		Where("revision = ?", expectedRevision).
		Select("*").
		Omit("id", "created_at").
		Updates(ret)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VatReturn, error) {
	var ret domain.VatReturn
	err := db.WithContext(ctx).Where("id = ?", id).First(&ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.VatReturn, error) {
	var items []domain.VatReturn
	stmt := db.WithContext(ctx).Model(&domain.VatReturn{})
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertVersion(ctx context.Context, db *gorm.DB, v *domain.Version) error {
	if v == nil {
		return nil
	}
	return db.WithContext(ctx).Create(v).Error
}

func (r *repo) ListVersions(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]domain.Version, error) {
	var items []domain.Version
	err := db.WithContext(ctx).
		Where("return_id = ?", returnID).
		Order("seq asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertActivity(ctx context.Context, db *gorm.DB, a *domain.Activity) error {
	if a == nil {
		return nil
	}
	return db.WithContext(ctx).Create(a).Error
}

func (r *repo) ListActivities(ctx context.Context, db *gorm.DB, returnID snowflake.ID) ([]domain.Activity, error) {
	var items []domain.Activity
	err := db.WithContext(ctx).
		Where("return_id = ?", returnID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
