package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/observability/logger"
	"github.com/smallbiznis/vatdesk/internal/observability/metrics"
	"github.com/smallbiznis/vatdesk/internal/observability/tracing"
	"github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Returns  domain.ReturnActivity
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	returns  domain.ReturnActivity
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("transaction.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		returns:  p.Returns,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Import(ctx context.Context, req domain.ImportRequest) (_ *domain.ImportResult, err error) {
	ctx, span := tracing.Start(ctx, "transaction.import",
		attribute.String("source", req.Source),
		attribute.Int("rows", len(req.Rows)),
	)
	defer func() { tracing.End(span, err) }()

	var returnID *snowflake.ID
	if raw := strings.TrimSpace(req.ReturnID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		if err := s.returns.EnsureReturn(ctx, id); err != nil {
			return nil, err
		}
		returnID = &id
	}

	now := s.clock.Now()
	batchID := ulid.Make().String()
	span.SetAttributes(attribute.String("import.batch_id", batchID))
	result := &domain.ImportResult{
		BatchID:      batchID,
		Rows:         make([]domain.RowResult, 0, len(req.Rows)),
		Transactions: []domain.Response{},
	}
	toInsert := make([]domain.Transaction, 0, len(req.Rows))
	for i, row := range req.Rows {
		n := normalizeRow(row)
		rr := domain.RowResult{Row: i + 1, Status: n.status, Warnings: n.warnings}
		if n.status != domain.RowRejected {
			n.tx.ID = s.genID.Generate()
			n.tx.CreatedAt = now
			n.tx.UpdatedAt = now
			rr.TransactionID = n.tx.ID.String()
			toInsert = append(toInsert, n.tx)
		}
		switch n.status {
		case domain.RowImported:
			result.Imported++
		case domain.RowDefaulted:
			result.Defaulted++
		case domain.RowRejected:
			result.Rejected++
		}
		result.Rows = append(result.Rows, rr)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBatch(ctx, tx, toInsert)
	}); err != nil {
		return nil, err
	}

	s.metrics.AddImported(string(domain.RowImported), result.Imported)
	s.metrics.AddImported(string(domain.RowDefaulted), result.Defaulted)
	s.metrics.AddImported(string(domain.RowRejected), result.Rejected)

	// newest first, matching List
	for i := len(toInsert) - 1; i >= 0; i-- {
		result.Transactions = append(result.Transactions, domain.ToResponse(&toInsert[i]))
	}

	s.reportWarnings(ctx, batchID, req.Source, returnID, result.Rows)

	_ = s.auditSvc.AuditLog(ctx, "", nil, "transaction.imported", "transaction", nil, map[string]any{
		"batch_id":  batchID,
		"source":    req.Source,
		"imported":  result.Imported,
		"defaulted": result.Defaulted,
		"rejected":  result.Rejected,
	})
	logger.FromContext(ctx).Info("transactions imported",
		zap.String("batch_id", batchID),
		zap.String("source", req.Source),
		zap.Int("imported", result.Imported),
		zap.Int("defaulted", result.Defaulted),
		zap.Int("rejected", result.Rejected),
	)
	return result, nil
}

// reportWarnings surfaces every defaulted or rejected row. Failures here are
// logged and never fail an import that has already been committed.
func (s *Service) reportWarnings(ctx context.Context, batchID, source string, returnID *snowflake.ID, rows []domain.RowResult) {
	for _, rr := range rows {
		if rr.Status == domain.RowImported {
			continue
		}
		message := "row " + strconv.Itoa(rr.Row) + " " + string(rr.Status) + ": " + strings.Join(rr.Warnings, "; ")
		s.log.Warn("import row normalized",
			zap.String("batch_id", batchID),
			zap.String("source", source),
			zap.Int("row", rr.Row),
			zap.String("status", string(rr.Status)),
			zap.Strings("warnings", rr.Warnings),
		)

		var targetID *string
		if rr.TransactionID != "" {
			id := rr.TransactionID
			targetID = &id
		}
		if err := s.auditSvc.AuditLog(ctx, "", nil, "transaction.import."+string(rr.Status), "transaction", targetID, map[string]any{
			"batch_id": batchID,
			"source":   source,
			"row":      rr.Row,
			"warnings": rr.Warnings,
		}); err != nil {
			s.log.Warn("failed to audit import warning", zap.Int("row", rr.Row), zap.Error(err))
		}

		if returnID != nil {
			if err := s.returns.AppendActivity(ctx, *returnID, "warning", message); err != nil {
				s.log.Warn("failed to append import warning", zap.Int("row", rr.Row), zap.Error(err))
			}
		}
	}
}

func (s *Service) Match(ctx context.Context, req domain.MatchRequest) (*domain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var returnID *snowflake.ID
	if raw := strings.TrimSpace(req.ReturnID); raw != "" {
		rid, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		returnID = &rid
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	if existing.Matched {
		resp := domain.ToResponse(existing)
		return &resp, nil
	}

	var changed bool
	if returnID != nil {
		// status, period and the activity entry are the return engine's concern
		changed, err = s.returns.MatchTransaction(ctx, *returnID, id)
	} else {
		changed, err = s.repo.MarkMatched(ctx, s.db, id, nil, s.clock.Now())
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	if !changed {
		// lost a race with another matcher; their result stands
		resp := domain.ToResponse(updated)
		return &resp, nil
	}

	targetID := id.String()
	metadata := map[string]any{}
	if returnID != nil {
		metadata["return_id"] = returnID.String()
	}
	_ = s.auditSvc.AuditLog(ctx, "", nil, "transaction.matched", "transaction", &targetID, metadata)

	resp := domain.ToResponse(updated)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	txID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	tx, err := s.repo.FindByID(ctx, s.db, txID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, domain.ErrNotFound
	}
	resp := domain.ToResponse(tx)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{Matched: req.Matched}
	if raw := strings.TrimSpace(req.Type); raw != "" {
		t, ok := parseType(raw)
		if !ok {
			return nil, domain.ErrInvalidFilter
		}
		filter.Type = t
	}
	if raw := strings.TrimSpace(req.ReturnID); raw != "" {
		rid, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		filter.ReturnID = &rid
	}
	from, err := parseOptionalDate(req.From)
	if err != nil {
		return nil, domain.ErrInvalidFilter
	}
	to, err := parseOptionalDate(req.To)
	if err != nil {
		return nil, domain.ErrInvalidFilter
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, domain.ErrInvalidFilter
	}
	filter.From, filter.To = from, to

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(items))
	for i := range items {
		out = append(out, domain.ToResponse(&items[i]))
	}
	return out, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
