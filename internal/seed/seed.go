// Package seed loads demo returns, transactions and vendors from a JSON file.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LoadError is returned when the data source cannot be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("seed: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type Dataset struct {
	Vendors      []VendorRecord      `json:"vendors"`
	Returns      []ReturnRecord      `json:"returns"`
	Transactions []TransactionRecord `json:"transactions"`
}

type VendorRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ReturnRecord struct {
	ID              string          `json:"id"`
	PeriodStart     string          `json:"period_start"`
	PeriodEnd       string          `json:"period_end"`
	Status          string          `json:"status"`
	TaxableSales    decimal.Decimal `json:"taxable_sales"`
	ZeroRatedSales  decimal.Decimal `json:"zero_rated_sales"`
	ExemptSales     decimal.Decimal `json:"exempt_sales"`
	InputVat        decimal.Decimal `json:"input_vat"`
	Adjustments     decimal.Decimal `json:"adjustments"`
	Credits         decimal.Decimal `json:"credits"`
	Penalties       decimal.Decimal `json:"penalties"`
	Attachments     []string        `json:"attachments"`
	FilingReference string          `json:"filing_reference"`
	FiledBy         string          `json:"filed_by"`
}

type TransactionRecord struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Type          string          `json:"type"`
	VendorID      string          `json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	VatAmount     decimal.Decimal `json:"vat_amount"`
	Category      string          `json:"category"`
	VatCategory   string          `json:"vat_category"`
	Matched       bool            `json:"matched"`
}

// Load reads path. A missing or malformed file is a *LoadError, never an empty dataset.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &ds, nil
}

// Options controls how records become rows.
type Options struct {
	Node    *snowflake.Node
	VatRate decimal.Decimal
	Now     time.Time
}

// Summary counts what Apply wrote.
type Summary struct {
	Vendors      int
	Returns      int
	Transactions int
	Skipped      bool
}

// Apply writes the dataset in one transaction. It is a no-op when any return
// already exists, so repeated startups do not duplicate demo data.
func Apply(ctx context.Context, db *gorm.DB, ds *Dataset, opts Options) (Summary, error) {
	if db == nil {
		return Summary{}, errors.New("seed database handle is required")
	}
	if ds == nil {
		return Summary{}, errors.New("seed dataset is required")
	}
	if opts.Node == nil {
		return Summary{}, errors.New("seed id generator is required")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	var summary Summary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&vatdomain.VatReturn{}).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			summary.Skipped = true
			return nil
		}

		for i, rec := range ds.Vendors {
			v, err := buildVendor(rec, opts)
			if err != nil {
				return fmt.Errorf("vendor %d: %w", i, err)
			}
			if err := tx.Create(v).Error; err != nil {
				return err
			}
			summary.Vendors++
		}

		for i, rec := range ds.Returns {
			ret, err := buildReturn(rec, opts)
			if err != nil {
				return fmt.Errorf("return %d: %w", i, err)
			}
			if err := tx.Create(ret).Error; err != nil {
				return err
			}
			if err := tx.Create(&vatdomain.Version{
				ID:        opts.Node.Generate(),
				ReturnID:  ret.ID,
				Seq:       ret.Revision,
				Snapshot:  datatypes.NewJSONType(ret.Snapshot()),
				CreatedAt: opts.Now,
			}).Error; err != nil {
				return err
			}
			if err := tx.Create(&vatdomain.Activity{
				ID:        opts.Node.Generate(),
				ReturnID:  ret.ID,
				Type:      vatdomain.ActivityCreate,
				Message:   "seeded " + string(ret.Status) + " return for " + ret.Period().String(),
				CreatedAt: opts.Now,
			}).Error; err != nil {
				return err
			}
			summary.Returns++
		}

		txs := make([]txdomain.Transaction, 0, len(ds.Transactions))
		for i, rec := range ds.Transactions {
			t, err := buildTransaction(rec, opts)
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			txs = append(txs, *t)
		}
		if len(txs) > 0 {
			if err := tx.CreateInBatches(txs, 200).Error; err != nil {
				return err
			}
		}
		summary.Transactions = len(txs)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func buildVendor(rec VendorRecord, opts Options) (*vendordomain.Vendor, error) {
	id, err := idOrGenerate(rec.ID, opts.Node)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return nil, errors.New("vendor name is required")
	}
	return &vendordomain.Vendor{ID: id, Name: name, CreatedAt: opts.Now}, nil
}

func buildReturn(rec ReturnRecord, opts Options) (*vatdomain.VatReturn, error) {
	id, err := idOrGenerate(rec.ID, opts.Node)
	if err != nil {
		return nil, err
	}
	period, err := vatdomain.ParsePeriod(rec.PeriodStart, rec.PeriodEnd)
	if err != nil {
		return nil, err
	}
	status := vatdomain.Status(strings.ToLower(strings.TrimSpace(rec.Status)))
	if status == "" {
		status = vatdomain.StatusDraft
	}
	if !status.Valid() {
		return nil, vatdomain.ErrInvalidStatus
	}

	ret := &vatdomain.VatReturn{
		ID:             id,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		Status:         status,
		TaxableSales:   rec.TaxableSales.Round(2),
		ZeroRatedSales: rec.ZeroRatedSales.Round(2),
		ExemptSales:    rec.ExemptSales.Round(2),
		InputVat:       rec.InputVat.Round(2),
		Adjustments:    rec.Adjustments.Round(2),
		Credits:        rec.Credits.Round(2),
		Penalties:      rec.Penalties.Round(2),
		Attachments:    rec.Attachments,
		Revision:       1,
		CreatedAt:      opts.Now,
		UpdatedAt:      opts.Now,
	}
	ret.Recompute(opts.VatRate)

	if status == vatdomain.StatusFiled {
		ref := strings.TrimSpace(rec.FilingReference)
		if ref == "" {
			return nil, vatdomain.ErrInvalidFilingReference
		}
		filedAt := opts.Now
		ret.FilingReference = &ref
		ret.FiledAt = &filedAt
		if by := strings.TrimSpace(rec.FiledBy); by != "" {
			ret.FiledBy = &by
		}
	}
	return ret, nil
}

func buildTransaction(rec TransactionRecord, opts Options) (*txdomain.Transaction, error) {
	id, err := idOrGenerate(rec.ID, opts.Node)
	if err != nil {
		return nil, err
	}
	date, err := vatdomain.ParseDate(rec.Date)
	if err != nil {
		return nil, err
	}
	txType := txdomain.Type(strings.ToLower(strings.TrimSpace(rec.Type)))
	if txType != txdomain.TypeSale && txType != txdomain.TypePurchase {
		return nil, fmt.Errorf("unknown transaction type %q", rec.Type)
	}
	category := txdomain.VatCategory(strings.ToLower(strings.TrimSpace(rec.VatCategory)))
	if category == "" {
		category = txdomain.VatCategoryVatable
	}

	t := &txdomain.Transaction{
		ID:            id,
		Date:          date,
		Type:          txType,
		InvoiceNumber: rec.InvoiceNumber,
		Amount:        rec.Amount.Round(2),
		VatAmount:     rec.VatAmount.Round(2),
		Category:      rec.Category,
		VatCategory:   category,
		Matched:       rec.Matched,
		CreatedAt:     opts.Now,
		UpdatedAt:     opts.Now,
	}
	if rec.Matched {
		at := opts.Now
		t.MatchedAt = &at
	}
	if raw := strings.TrimSpace(rec.VendorID); raw != "" {
		vendorID, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor_id %q", rec.VendorID)
		}
		t.VendorID = &vendorID
	}
	return t, nil
}

func idOrGenerate(raw string, node *snowflake.Node) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return node.Generate(), nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
