package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/smallbiznis/vatdesk/internal/clock"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/export"
	"github.com/smallbiznis/vatdesk/internal/lock"
	"github.com/smallbiznis/vatdesk/internal/observability/logger"
	"github.com/smallbiznis/vatdesk/internal/observability/metrics"
	"github.com/smallbiznis/vatdesk/internal/observability/tracing"
	"github.com/smallbiznis/vatdesk/internal/reconcile"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	dbutil "github.com/smallbiznis/vatdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WriteLockKey serializes every command that mutates returns or claims transactions.
const WriteLockKey = "vatdesk:vat_returns:write"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Locker   lock.Locker
	Tax      *config.TaxConfigHolder
	Repo     domain.Repository
	TxRepo   txdomain.Repository
	Vendors  vendordomain.Service
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	locker   lock.Locker
	tax      *config.TaxConfigHolder
	repo     domain.Repository
	txRepo   txdomain.Repository
	vendors  vendordomain.Service
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("vatreturn.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		locker:   p.Locker,
		tax:      p.Tax,
		repo:     p.Repo,
		txRepo:   p.TxRepo,
		vendors:  p.Vendors,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

var (
	_ domain.Service          = (*Service)(nil)
	_ txdomain.ReturnActivity = (*Service)(nil)
)

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (resp *domain.Response, err error) {
	ctx, finish := s.command(ctx, "create")
	defer func() { finish(err) }()

	period, err := domain.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ret := &domain.VatReturn{
		ID:             s.genID.Generate(),
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		Status:         domain.StatusDraft,
		TaxableSales:   req.TaxableSales.Round(2),
		ZeroRatedSales: req.ZeroRatedSales.Round(2),
		ExemptSales:    req.ExemptSales.Round(2),
		InputVat:       req.InputVat.Round(2),
		Adjustments:    req.Adjustments.Round(2),
		Credits:        req.Credits.Round(2),
		Penalties:      req.Penalties.Round(2),
		Attachments:    normalizeAttachments(req.Attachments),
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateAmounts(ret); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkOverlap(ctx, period, ret.ID); err != nil {
		return nil, err
	}

	ret.Recompute(s.tax.VatRate())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, ret); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ret, domain.ActivityCreate,
			fmt.Sprintf("created draft for %s at rate %s", period, ret.VatRate))
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "vat_return.created", ret, nil)
	logger.FromContext(ctx).Info("vat return created",
		zap.String("return_id", ret.ID.String()),
		zap.String("period", period.String()),
	)
	out := toResponse(ret)
	return &out, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (resp *domain.Response, err error) {
	ctx, finish := s.command(ctx, "update")
	defer func() { finish(err) }()

	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	ret, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ret.Status == domain.StatusFiled {
		return nil, &domain.TransitionError{From: ret.Status, Action: "update"}
	}

	changed, err := applyUpdate(ret, req)
	if err != nil {
		return nil, err
	}
	if err := validateAmounts(ret); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, ret.Period(), ret.ID); err != nil {
		return nil, err
	}

	// rate is re-read on every update, so output VAT follows the current setting
	ret.Recompute(s.tax.VatRate())

	message := "updated"
	if len(changed) > 0 {
		message = "updated " + strings.Join(changed, ", ")
	}
	if err := s.save(ctx, ret, domain.ActivityUpdate, message); err != nil {
		return nil, err
	}

	s.audit(ctx, "vat_return.updated", ret, map[string]any{"fields": changed})
	out := toResponse(ret)
	return &out, nil
}

func (s *Service) MarkReady(ctx context.Context, id string) (resp *domain.Response, err error) {
	ctx, finish := s.command(ctx, "ready")
	defer func() { finish(err) }()

	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	ret, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	switch ret.Status {
	case domain.StatusReady:
		out := toResponse(ret)
		return &out, nil
	case domain.StatusFiled:
		return nil, &domain.TransitionError{From: ret.Status, Action: "mark ready"}
	}

	ret.Status = domain.StatusReady
	if err := s.save(ctx, ret, domain.ActivityReady, "marked ready for filing"); err != nil {
		return nil, err
	}

	s.audit(ctx, "vat_return.ready", ret, nil)
	out := toResponse(ret)
	return &out, nil
}

func (s *Service) MarkFiled(ctx context.Context, req domain.FileRequest) (resp *domain.Response, err error) {
	ctx, finish := s.command(ctx, "file")
	defer func() { finish(err) }()

	returnID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, domain.ErrInvalidFilingReference
	}

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	ret, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status == domain.StatusFiled {
		return nil, &domain.TransitionError{From: ret.Status, Action: "file"}
	}
	if err := s.checkOverlap(ctx, ret.Period(), ret.ID); err != nil {
		return nil, err
	}

	filedAt := s.clock.Now()
	if req.FiledAt != nil && !req.FiledAt.IsZero() {
		filedAt = req.FiledAt.UTC()
	}
	ret.Status = domain.StatusFiled
	ret.FilingReference = &reference
	ret.FiledAt = &filedAt
	if filedBy := resolveFiledBy(ctx, req.FiledBy); filedBy != "" {
		ret.FiledBy = &filedBy
	}

	if err := s.save(ctx, ret, domain.ActivityFiled, "filed with reference "+reference); err != nil {
		return nil, err
	}

	s.audit(ctx, "vat_return.filed", ret, map[string]any{"filing_reference": reference})
	logger.FromContext(ctx).Info("vat return filed",
		zap.String("return_id", ret.ID.String()),
		zap.String("period", ret.Period().String()),
	)
	out := toResponse(ret)
	return &out, nil
}

func (s *Service) AutoReconcile(ctx context.Context, id string) (result *domain.ReconcileResult, err error) {
	ctx, finish := s.command(ctx, "reconcile")
	defer func() { finish(err) }()

	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	ret, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status == domain.StatusFiled {
		return nil, &domain.TransitionError{From: ret.Status, Action: "reconcile"}
	}

	// rows imported after this snapshot wait for the next pass
	snapshot, err := s.txRepo.ListUnmatched(ctx, s.db)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	_, changed := reconcile.AutoReconcile(ret.Period(), snapshot, ret.ID, now)

	var claimed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.txRepo.Claim(ctx, tx, changed, ret.ID, now)
		if err != nil {
			return err
		}
		claimed = n
		return s.insertActivity(ctx, tx, ret.ID, domain.ActivityReconcile,
			fmt.Sprintf("auto-reconciled %d transaction(s) for %s", n, ret.Period()))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddReconciled(int(claimed))

	matched, err := s.txRepo.ListByReturn(ctx, s.db, ret.ID)
	if err != nil {
		return nil, err
	}
	variance := reconcile.Summarize(ret, matched)
	if !variance.Balanced {
		s.log.Debug("reconciled figures differ from declared VAT",
			zap.String("return_id", ret.ID.String()),
			zap.String("output_vat_delta", variance.OutputVatDelta.StringFixed(2)),
			zap.String("input_vat_delta", variance.InputVatDelta.StringFixed(2)),
		)
	}

	ids := make([]string, 0, len(changed))
	for _, txID := range changed {
		ids = append(ids, txID.String())
	}
	s.audit(ctx, "vat_return.reconciled", ret, map[string]any{"matched": claimed})
	return &domain.ReconcileResult{
		ReturnID:       ret.ID.String(),
		MatchedCount:   int(claimed),
		TransactionIDs: ids,
		Variance:       variance,
	}, nil
}

func (s *Service) Export(ctx context.Context, id string, format string) (*domain.Document, error) {
	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ret, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	txs, err := s.txRepo.ListByReturn(ctx, s.db, ret.ID)
	if err != nil {
		return nil, err
	}

	var names map[snowflake.ID]string
	if vendorIDs := collectVendorIDs(txs); len(vendorIDs) > 0 && s.vendors != nil {
		names, err = s.vendors.Names(ctx, vendorIDs)
		if err != nil {
			return nil, err
		}
	}

	return export.Render(format, export.Input{
		Return:       ret,
		Transactions: txs,
		VendorNames:  names,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ret, err := s.load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	out := toResponse(ret)
	return &out, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) ListVersions(ctx context.Context, id string) ([]domain.VersionResponse, error) {
	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, returnID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListVersions(ctx, s.db, returnID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.VersionResponse, 0, len(items))
	for _, v := range items {
		out = append(out, domain.VersionResponse{
			ID:        v.ID.String(),
			Seq:       v.Seq,
			Snapshot:  v.Snapshot.Data(),
			CreatedAt: v.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) ListActivity(ctx context.Context, id string) ([]domain.ActivityResponse, error) {
	returnID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, returnID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListActivities(ctx, s.db, returnID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, domain.ActivityResponse{
			ID:        a.ID.String(),
			Type:      a.Type,
			Message:   a.Message,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

// EnsureReturn reports domain.ErrNotFound for unknown returns.
func (s *Service) EnsureReturn(ctx context.Context, returnID snowflake.ID) error {
	_, err := s.load(ctx, returnID)
	return err
}

// AppendActivity records an entry written on behalf of another component.
func (s *Service) AppendActivity(ctx context.Context, returnID snowflake.ID, activityType string, message string) error {
	return s.insertActivity(ctx, s.db, returnID, domain.ActivityType(activityType), message)
}

// MatchTransaction claims one transaction for a return on behalf of a manual match.
// Filed returns are closed, and a transaction dated outside the return's period cannot join it.
func (s *Service) MatchTransaction(ctx context.Context, returnID, txID snowflake.ID) (claimed bool, err error) {
	ctx, finish := s.command(ctx, "match")
	defer func() { finish(err) }()

	release, err := s.locker.Acquire(ctx, WriteLockKey)
	if err != nil {
		return false, err
	}
	defer release()

	ret, err := s.load(ctx, returnID)
	if err != nil {
		return false, err
	}
	if ret.Status == domain.StatusFiled {
		return false, &domain.TransitionError{From: ret.Status, Action: "match"}
	}

	tx, err := s.txRepo.FindByID(ctx, s.db, txID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, txdomain.ErrNotFound
	}
	if tx.Matched {
		return false, nil
	}
	if !ret.Period().Contains(tx.Date) {
		return false, fmt.Errorf("%w: %s is outside %s", domain.ErrOutsidePeriod, domain.FormatDate(tx.Date), ret.Period())
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		n, err := s.txRepo.Claim(ctx, db, []snowflake.ID{txID}, ret.ID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		claimed = true
		return s.insertActivity(ctx, db, ret.ID, domain.ActivityMatch,
			fmt.Sprintf("transaction %s matched manually", txID))
	})
	if err != nil {
		return false, err
	}
	if claimed {
		s.metrics.AddReconciled(1)
	}
	return claimed, nil
}

// command traces a state-changing command and counts its outcome.
func (s *Service) command(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := tracing.Start(ctx, "vatreturn."+name)
	return ctx, func(err error) {
		tracing.End(span, err)
		s.metrics.ObserveCommand(name, err)
	}
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.VatReturn, error) {
	ret, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, domain.ErrNotFound
	}
	return ret, nil
}

// checkOverlap rejects a period sharing any day with a filed return other than self.
func (s *Service) checkOverlap(ctx context.Context, period domain.Period, self snowflake.ID) error {
	filed, err := s.repo.List(ctx, s.db, domain.ListFilter{Status: domain.StatusFiled})
	if err != nil {
		return err
	}
	for i := range filed {
		other := &filed[i]
		if other.ID == self {
			continue
		}
		if period.Overlaps(other.Period()) {
			return &domain.OverlapError{
				Requested:     period,
				ConflictingID: other.ID,
				Conflicting:   other.Period(),
			}
		}
	}
	return nil
}

// save bumps the revision and writes the row, a version and an activity atomically.
func (s *Service) save(ctx context.Context, ret *domain.VatReturn, activity domain.ActivityType, message string) error {
	expected := ret.Revision
	ret.Revision++
	ret.UpdatedAt = s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, ret, expected); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, ret, activity, message)
	})
	if err != nil {
		ret.Revision = expected
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.log.Warn("revision conflict",
				zap.String("return_id", ret.ID.String()),
				zap.Int64("expected_revision", expected),
			)
		}
		return err
	}
	return nil
}

func (s *Service) appendHistory(ctx context.Context, tx *gorm.DB, ret *domain.VatReturn, activity domain.ActivityType, message string) error {
	version := &domain.Version{
		ID:        s.genID.Generate(),
		ReturnID:  ret.ID,
		Seq:       ret.Revision,
		Snapshot:  datatypes.NewJSONType(ret.Snapshot()),
		CreatedAt: ret.UpdatedAt,
	}
	if err := s.repo.InsertVersion(ctx, tx, version); err != nil {
		// (return_id, seq) is unique; a clash means another writer took this revision
		if dbutil.IsDuplicateKeyErr(err) {
			return domain.ErrConcurrentModification
		}
		return err
	}
	return s.insertActivity(ctx, tx, ret.ID, activity, message)
}

func (s *Service) insertActivity(ctx context.Context, db *gorm.DB, returnID snowflake.ID, activity domain.ActivityType, message string) error {
	return s.repo.InsertActivity(ctx, db, &domain.Activity{
		ID:        s.genID.Generate(),
		ReturnID:  returnID,
		Type:      activity,
		Message:   message,
		CreatedAt: s.clock.Now(),
	})
}

func (s *Service) audit(ctx context.Context, action string, ret *domain.VatReturn, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := ret.ID.String()
	metadata := map[string]any{
		"status":   string(ret.Status),
		"period":   ret.Period().String(),
		"revision": ret.Revision,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "vat_return", &targetID, metadata)
}

func applyUpdate(ret *domain.VatReturn, req domain.UpdateRequest) ([]string, error) {
	var changed []string
	if req.PeriodStart != nil || req.PeriodEnd != nil {
		start, end := domain.FormatDate(ret.PeriodStart), domain.FormatDate(ret.PeriodEnd)
		if req.PeriodStart != nil {
			start = *req.PeriodStart
		}
		if req.PeriodEnd != nil {
			end = *req.PeriodEnd
		}
		period, err := domain.ParsePeriod(start, end)
		if err != nil {
			return nil, err
		}
		if !period.Start.Equal(ret.PeriodStart) || !period.End.Equal(ret.PeriodEnd) {
			changed = append(changed, "period")
		}
		ret.PeriodStart, ret.PeriodEnd = period.Start, period.End
	}

	amounts := []struct {
		name  string
		value *decimal.Decimal
		dst   *decimal.Decimal
	}{
		{"taxable_sales", req.TaxableSales, &ret.TaxableSales},
		{"zero_rated_sales", req.ZeroRatedSales, &ret.ZeroRatedSales},
		{"exempt_sales", req.ExemptSales, &ret.ExemptSales},
		{"input_vat", req.InputVat, &ret.InputVat},
		{"adjustments", req.Adjustments, &ret.Adjustments},
		{"credits", req.Credits, &ret.Credits},
		{"penalties", req.Penalties, &ret.Penalties},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		v := a.value.Round(2)
		if !v.Equal(*a.dst) {
			changed = append(changed, a.name)
		}
		*a.dst = v
	}

	if req.Attachments != nil {
		ret.Attachments = normalizeAttachments(*req.Attachments)
		changed = append(changed, "attachments")
	}
	return changed, nil
}

func validateAmounts(ret *domain.VatReturn) error {
	for _, v := range []decimal.Decimal{
		ret.TaxableSales, ret.ZeroRatedSales, ret.ExemptSales,
		ret.InputVat, ret.Credits, ret.Penalties,
	} {
		if v.IsNegative() {
			return domain.ErrInvalidAmount
		}
	}
	return nil
}

func normalizeAttachments(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func resolveFiledBy(ctx context.Context, filedBy string) string {
	if filedBy = strings.TrimSpace(filedBy); filedBy != "" {
		return filedBy
	}
	_, actorID := auditcontext.ActorFromContext(ctx)
	return strings.TrimSpace(actorID)
}

func collectVendorIDs(txs []txdomain.Transaction) []snowflake.ID {
	seen := map[snowflake.ID]struct{}{}
	var ids []snowflake.ID
	for _, tx := range txs {
		if tx.VendorID == nil {
			continue
		}
		if _, ok := seen[*tx.VendorID]; ok {
			continue
		}
		seen[*tx.VendorID] = struct{}{}
		ids = append(ids, *tx.VendorID)
	}
	return ids
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func toResponse(r *domain.VatReturn) domain.Response {
	attachments := []string(r.Attachments)
	if attachments == nil {
		attachments = []string{}
	}
	resp := domain.Response{
		ID:             r.ID.String(),
		PeriodStart:    domain.FormatDate(r.PeriodStart),
		PeriodEnd:      domain.FormatDate(r.PeriodEnd),
		Status:         r.Status,
		TaxableSales:   r.TaxableSales,
		ZeroRatedSales: r.ZeroRatedSales,
		ExemptSales:    r.ExemptSales,
		VatRate:        r.VatRate,
		OutputVat:      r.OutputVat,
		InputVat:       r.InputVat,
		Adjustments:    r.Adjustments,
		Credits:        r.Credits,
		Penalties:      r.Penalties,
		NetVat:         r.NetVat(),
		Attachments:    attachments,
		Revision:       r.Revision,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Status == domain.StatusFiled && r.FilingReference != nil && r.FiledAt != nil {
		resp.Filing = &domain.FilingResponse{Reference: *r.FilingReference, FiledAt: *r.FiledAt}
		if r.FiledBy != nil {
			resp.Filing.FiledBy = *r.FiledBy
		}
	}
	return resp
}
