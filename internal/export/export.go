// Package export renders a return and its matched transactions into
// downloadable documents. It performs no I/O.
package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported_format")

// Input is everything a renderer needs. VendorNames may be nil.
type Input struct {
	Return       *vatdomain.VatReturn
	Transactions []txdomain.Transaction
	VendorNames  map[snowflake.ID]string
}

// Render dispatches on format. Formats are matched case-insensitively.
func Render(format string, in Input) (*vatdomain.Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatCSV:
		body, err = ToCSV(in)
		contentType = "text/csv"
	case FormatPDF:
		body, err = ToPDF(in)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return &vatdomain.Document{
		Format:      format,
		ContentType: contentType,
		Filename:    filename(in.Return, format),
		Body:        body,
	}, nil
}

func filename(ret *vatdomain.VatReturn, format string) string {
	return slug.Make(fmt.Sprintf("vat return %s %s", ret.ID, vatdomain.FormatDate(ret.PeriodStart))) + "." + format
}

// sortedTransactions orders by date then id without touching the caller's slice.
func sortedTransactions(txs []txdomain.Transaction) []txdomain.Transaction {
	out := make([]txdomain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func filingReference(ret *vatdomain.VatReturn) string {
	if ret.FilingReference == nil {
		return ""
	}
	return *ret.FilingReference
}
