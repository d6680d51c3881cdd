package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	"github.com/smallbiznis/vatdesk/internal/transaction/ledgercsv"
	"go.uber.org/zap"
)

const importFormField = "file"

// ImportRateLimit throttles imports per client IP. Redis failures let the request through.
func (s *Server) ImportRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.importLimiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.importLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("import rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// ImportTransactions accepts either a JSON body of rows or a multipart CSV upload.
func (s *Server) ImportTransactions(c *gin.Context) {
	var req txdomain.ImportRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile(importFormField)
		if err != nil {
			AbortWithError(c, newValidationError(importFormField, "required", "a csv file is required"))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		defer file.Close()

		rows, err := ledgercsv.Read(file)
		if err != nil {
			if errors.Is(err, ledgercsv.ErrMissingColumn) {
				AbortWithError(c, newValidationError(importFormField, "missing_column", err.Error()))
				return
			}
			AbortWithError(c, newValidationError(importFormField, "invalid_csv", err.Error()))
			return
		}
		req = txdomain.ImportRequest{
			ReturnID: strings.TrimSpace(c.PostForm("return_id")),
			Source:   fileHeader.Filename,
			Rows:     rows,
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.Source) == "" {
		req.Source = "api"
	}

	resp, err := s.transactionSvc.Import(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		Matched  string `form:"matched"`
		Type     string `form:"type"`
		ReturnID string `form:"return_id"`
		From     string `form:"from"`
		To       string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	matched, err := parseOptionalBool(query.Matched)
	if err != nil {
		AbortWithError(c, newValidationError("matched", "invalid_matched", "invalid matched"))
		return
	}

	resp, err := s.transactionSvc.List(c.Request.Context(), txdomain.ListRequest{
		Matched:  matched,
		Type:     strings.TrimSpace(query.Type),
		ReturnID: strings.TrimSpace(query.ReturnID),
		From:     strings.TrimSpace(query.From),
		To:       strings.TrimSpace(query.To),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTransaction(c *gin.Context) {
	resp, err := s.transactionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type matchTransactionRequest struct {
	ReturnID string `json:"return_id"`
}

func (s *Server) MatchTransaction(c *gin.Context) {
	var req matchTransactionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.transactionSvc.Match(c.Request.Context(), txdomain.MatchRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		ReturnID: strings.TrimSpace(req.ReturnID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
