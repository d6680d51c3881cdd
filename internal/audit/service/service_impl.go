package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/audit/masking"
	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	actorType = strings.TrimSpace(actorType)
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	resolvedActorType, resolvedActorID := s.resolveActor(ctx, actorType, actorID)
	ipAddress := auditcontext.IPAddressFromContext(ctx)
	userAgent := auditcontext.UserAgentFromContext(ctx)

	payload := masking.MaskMetadata(metadata)
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  resolvedActorType,
		ActorID:    resolvedActorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

func (s *Service) List(ctx context.Context, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidTimeRange
	}
	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}
	pageSize := min(max(req.PageSize, 0), maxPageSize)
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	rows, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	rows, pageInfo, err := pagination.Page(rows, pageSize, func(row *domain.AuditLog) pagination.Cursor {
		return pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	resp := domain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: make([]domain.AuditLog, 0, len(rows))}
	for _, row := range rows {
		if row != nil {
			resp.AuditLogs = append(resp.AuditLogs, *row)
		}
	}
	return resp, nil
}

// decodeCursor turns a page token back into the (created_at, id) position it was cut at.
func decodeCursor(token string) (*domain.AuditCursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	c, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(c.ID)
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

// resolveActor prefers explicit arguments, then the request's actor, then "system".
func (s *Service) resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	id := normalizePointer(actorID)
	if actorType != "" {
		return actorType, id
	}
	ctxType, ctxID := auditcontext.ActorFromContext(ctx)
	if ctxType == "" {
		return string(domain.ActorTypeSystem), id
	}
	if id == nil {
		id = normalizePointer(&ctxID)
	}
	return ctxType, id
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
