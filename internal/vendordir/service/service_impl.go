package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("vendor.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	vendorID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || vendorID == 0 {
		return nil, domain.ErrInvalidID
	}
	v, err := s.repo.FindByID(ctx, s.db, vendorID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(v)
	return &resp, nil
}

func (s *Service) Names(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	items, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[snowflake.ID]string, len(items))
	for _, v := range items {
		names[v.ID] = v.Name
	}
	return names, nil
}

func toResponse(v *domain.Vendor) domain.Response {
	return domain.Response{ID: v.ID.String(), Name: v.Name}
}
