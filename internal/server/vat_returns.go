package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
)

func (s *Server) CreateVatReturn(c *gin.Context) {
	var req vatdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.vatReturnSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListVatReturns(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.vatReturnSvc.List(c.Request.Context(), vatdomain.ListRequest{
		Status: strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetVatReturn(c *gin.Context) {
	resp, err := s.vatReturnSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateVatReturn(c *gin.Context) {
	var req vatdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.vatReturnSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkVatReturnReady(c *gin.Context) {
	resp, err := s.vatReturnSvc.MarkReady(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type fileVatReturnRequest struct {
	Reference string `json:"reference"`
	FiledBy   string `json:"filed_by"`
	FiledAt   string `json:"filed_at"`
}

func (s *Server) FileVatReturn(c *gin.Context) {
	var req fileVatReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var filedAt *time.Time
	if raw := strings.TrimSpace(req.FiledAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("filed_at", "invalid_filed_at", "filed_at must be RFC3339"))
			return
		}
		filedAt = &parsed
	}

	resp, err := s.vatReturnSvc.MarkFiled(c.Request.Context(), vatdomain.FileRequest{
		ID:        strings.TrimSpace(c.Param("id")),
		Reference: strings.TrimSpace(req.Reference),
		FiledBy:   strings.TrimSpace(req.FiledBy),
		FiledAt:   filedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileVatReturn(c *gin.Context) {
	resp, err := s.vatReturnSvc.AutoReconcile(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportVatReturn(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))

	doc, err := s.vatReturnSvc.Export(c.Request.Context(), strings.TrimSpace(c.Param("id")), format)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (s *Server) ListVatReturnVersions(c *gin.Context) {
	resp, err := s.vatReturnSvc.ListVersions(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListVatReturnActivity(c *gin.Context) {
	resp, err := s.vatReturnSvc.ListActivity(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
