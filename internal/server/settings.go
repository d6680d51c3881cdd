package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vatdesk/internal/config"
)

type vatRateResponse struct {
	VatRate   decimal.Decimal `json:"vat_rate"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type updateVatRateRequest struct {
	VatRate string `json:"vat_rate"`
}

func toVatRateResponse(cfg config.TaxConfig) vatRateResponse {
	return vatRateResponse{
		VatRate:   cfg.VatRate,
		Source:    cfg.Source,
		UpdatedAt: cfg.UpdatedAt,
	}
}

func (s *Server) GetVatRate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": toVatRateResponse(s.tax.Get())})
}

// UpdateVatRate affects returns created or updated afterwards; stored snapshots keep their rate.
func (s *Server) UpdateVatRate(c *gin.Context) {
	var req updateVatRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rate, err := config.ParseVatRate(req.VatRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	previous := s.tax.VatRate()
	if err := s.tax.SetVatRate(rate, "api"); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		target := "vat_rate"
		_ = s.auditSvc.AuditLog(c.Request.Context(), "", nil, "settings.vat_rate.updated", "setting", &target, map[string]any{
			"previous": previous.String(),
			"vat_rate": rate.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": toVatRateResponse(s.tax.Get())})
}
