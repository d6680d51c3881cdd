package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultVatRate is used when neither tax.yml nor VAT_RATE provide one.
var DefaultVatRate = decimal.RequireFromString("0.20")

var ErrInvalidVatRate = errors.New("invalid_vat_rate")

// TaxConfig is an immutable snapshot of the process-wide tax settings.
type TaxConfig struct {
	VatRate   decimal.Decimal
	Source    string
	UpdatedAt time.Time
}

// TaxConfigHolder serves the current TaxConfig. Readers take one snapshot
// per command so a concurrent rate change never splits a computation.
type TaxConfigHolder struct {
	current atomic.Value // holds TaxConfig
	log     *zap.Logger
}

func NewTaxConfigHolder(cfg Config, log *zap.Logger) (*TaxConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.tax")

	v := viper.New()
	if cfg.Tax.ConfigPath != "" {
		v.SetConfigFile(cfg.Tax.ConfigPath)
	} else {
		v.SetConfigName("tax")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/vatdesk")
		v.AddConfigPath(".")
	}
	v.SetDefault("vat.rate", DefaultVatRate.String())

	source := "default"
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read tax config: %w", err)
		}
	} else {
		source = v.ConfigFileUsed()
	}

	rate, err := ParseVatRate(v.GetString("vat.rate"))
	if err != nil {
		return nil, err
	}
	if cfg.Tax.RateOverride != "" {
		rate, err = ParseVatRate(cfg.Tax.RateOverride)
		if err != nil {
			return nil, err
		}
		source = "env:VAT_RATE"
	}

	holder := &TaxConfigHolder{log: log}
	holder.store(rate, source)

	if v.ConfigFileUsed() != "" && cfg.Tax.RateOverride == "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := ParseVatRate(v.GetString("vat.rate"))
			if err != nil {
				log.Warn("invalid vat rate ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.store(updated, e.Name)
			log.Info("vat rate reloaded", zap.String("file", e.Name), zap.String("rate", updated.String()))
		})
	}

	return holder, nil
}

// NewStaticTaxConfigHolder returns a holder pinned to rate, with no file watching.
func NewStaticTaxConfigHolder(rate decimal.Decimal) *TaxConfigHolder {
	holder := &TaxConfigHolder{log: zap.NewNop()}
	holder.store(rate, "static")
	return holder
}

func (h *TaxConfigHolder) Get() TaxConfig {
	return h.current.Load().(TaxConfig)
}

// VatRate returns the rate in effect right now.
func (h *TaxConfigHolder) VatRate() decimal.Decimal {
	return h.Get().VatRate
}

// SetVatRate changes the rate for future recomputation only.
func (h *TaxConfigHolder) SetVatRate(rate decimal.Decimal, source string) error {
	if err := validateVatRate(rate); err != nil {
		return err
	}
	if strings.TrimSpace(source) == "" {
		source = "runtime"
	}
	h.store(rate, source)
	h.log.Info("vat rate changed", zap.String("source", source), zap.String("rate", rate.String()))
	return nil
}

func (h *TaxConfigHolder) store(rate decimal.Decimal, source string) {
	h.current.Store(TaxConfig{
		VatRate:   rate,
		Source:    source,
		UpdatedAt: time.Now().UTC(),
	})
}

// ParseVatRate parses a decimal fraction such as "0.20".
func ParseVatRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidVatRate
	}
	if err := validateVatRate(rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

func validateVatRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidVatRate
	}
	return nil
}
