package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blsnider/invoice-parser/extraction"
	"github.com/blsnider/invoice-parser/service"
)

// RecordHandler handles HTTP requests for stored records
type RecordHandler struct {
	recordService *service.RecordService
	parseService  *service.ParseService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(recordService *service.RecordService, parseService *service.ParseService) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		parseService:  parseService,
	}
}

func recordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "invalid record id format",
			"code":    service.CodeValidationError,
		})
		return uuid.Nil, false
	}
	return id, true
}

// GetRecord handles GET /api/v1/records/:id
func (h *RecordHandler) GetRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	record, err := h.recordService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"record_id": record.RecordID,
		"data":      record,
	})
}

// GetPreview handles GET /api/v1/records/:id/preview
func (h *RecordHandler) GetPreview(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	expiresIn := 0
	if v := c.Query("expires_in"); v != "" {
		expiresIn, _ = strconv.Atoi(v)
	}

	url, err := h.recordService.PreviewURL(c.Request.Context(), id, time.Duration(expiresIn)*time.Second)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"record_id":    id,
		"signed_url":   url,
		"expires_in":   expiresIn,
		"content_type": "application/pdf",
	})
}

// ListRecords handles GET /api/v1/records
func (h *RecordHandler) ListRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.recordService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   result.Total,
		"limit":   result.Limit,
		"offset":  result.Offset,
		"items":   result.Items,
	})
}

// DeleteRecord handles DELETE /api/v1/records/:id
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	if err := h.recordService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "record " + id.String() + " deleted",
	})
}

// ReprocessRecord handles POST /api/v1/records/:id/reprocess
func (h *RecordHandler) ReprocessRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	result, err := h.parseService.Reprocess(c.Request.Context(), id, extraction.DefaultOptions())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"record_id":       result.Record.RecordID,
		"data":            result.Record,
		"preview_url":     result.PreviewURL,
		"processing_time": result.ProcessingTime,
	})
}
