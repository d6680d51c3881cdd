package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

// normalized is the outcome of cleaning one raw row.
type normalized struct {
	tx       domain.Transaction
	status   domain.RowStatus
	warnings []string
}

func normalizeRow(row domain.ImportRow) normalized {
	out := normalized{status: domain.RowImported}

	date, err := vatdomain.ParseDate(row.Date)
	if err != nil {
		out.status = domain.RowRejected
		out.warnings = append(out.warnings, fmt.Sprintf("invalid date %q", row.Date))
	}
	txType, ok := parseType(row.Type)
	if !ok {
		out.status = domain.RowRejected
		out.warnings = append(out.warnings, fmt.Sprintf("unknown type %q", row.Type))
	}
	if out.status == domain.RowRejected {
		return out
	}

	out.tx = domain.Transaction{
		Date:          date,
		Type:          txType,
		InvoiceNumber: strings.TrimSpace(row.InvoiceNumber),
		Category:      strings.TrimSpace(row.Category),
		VatCategory:   domain.VatCategoryVatable,
	}

	out.tx.Amount = out.parseMoney("amount", row.Amount)
	out.tx.VatAmount = out.parseMoney("vat_amount", row.VatAmount)

	if raw := strings.TrimSpace(row.VendorID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			out.warn(fmt.Sprintf("invalid vendor_id %q dropped", row.VendorID))
		} else {
			out.tx.VendorID = &id
		}
	}

	if raw := strings.ToLower(strings.TrimSpace(row.VatCategory)); raw != "" {
		switch c := domain.VatCategory(raw); c {
		case domain.VatCategoryVatable, domain.VatCategoryZeroRated, domain.VatCategoryExempt:
			out.tx.VatCategory = c
		default:
			out.warn(fmt.Sprintf("unknown vat_category %q defaulted to vatable", row.VatCategory))
		}
	}
	return out
}

// parseMoney treats blank as zero and anything unparsable as zero with a warning.
func (n *normalized) parseMoney(field, raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		n.warn(fmt.Sprintf("malformed %s %q defaulted to 0", field, raw))
		return decimal.Zero
	}
	return d.Round(2)
}

func (n *normalized) warn(msg string) {
	n.warnings = append(n.warnings, msg)
	if n.status == domain.RowImported {
		n.status = domain.RowDefaulted
	}
}

func parseType(raw string) (domain.Type, bool) {
	switch t := domain.Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case domain.TypeSale, domain.TypePurchase:
		return t, true
	default:
		return "", false
	}
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := vatdomain.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
