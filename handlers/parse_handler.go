package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blsnider/invoice-parser/extraction"
	"github.com/blsnider/invoice-parser/models"
	"github.com/blsnider/invoice-parser/service"
)

// ParseHandler handles HTTP requests for document parsing
type ParseHandler struct {
	parseService *service.ParseService
}

// NewParseHandler creates a new parse handler
func NewParseHandler(parseService *service.ParseService) *ParseHandler {
	return &ParseHandler{parseService: parseService}
}

// ParseDocument handles POST /api/v1/parse
func (h *ParseHandler) ParseDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "file is required",
			"code":    service.CodeValidationError,
		})
		return
	}

	content, err := readUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "failed to read uploaded file",
			"code":    service.CodeValidationError,
		})
		return
	}

	input := service.ParseInput{
		Content:  content,
		Filename: fileHeader.Filename,
		Kind:     documentKind(c),
		Options:  extractionOptions(c),
	}

	result, err := h.parseService.ParseOne(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"record_id":       result.Record.RecordID,
		"data":            result.Record,
		"preview_url":     result.PreviewURL,
		"duplicate":       result.Duplicate,
		"processing_time": result.ProcessingTime,
	})
}

// ParseBatch handles POST /api/v1/parse-batch
func (h *ParseHandler) ParseBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "malformed multipart form",
			"code":    service.CodeValidationError,
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "at least one file is required",
			"code":    service.CodeValidationError,
		})
		return
	}

	kind := documentKind(c)
	opts := extractionOptions(c)

	items := make([]service.ParseInput, 0, len(files))
	for _, fileHeader := range files {
		content, err := readUpload(fileHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   true,
				"message": "failed to read uploaded file " + fileHeader.Filename,
				"code":    service.CodeValidationError,
			})
			return
		}
		items = append(items, service.ParseInput{
			Content:  content,
			Filename: fileHeader.Filename,
			Kind:     kind,
			Options:  opts,
		})
	}

	maxWorkers, _ := strconv.Atoi(c.PostForm("max_workers"))

	result, err := h.parseService.ParseBatch(c.Request.Context(), items, maxWorkers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         result.Failed == 0,
		"total":           result.Total,
		"succeeded":       result.Succeeded,
		"failed":          result.Failed,
		"results":         result.Results,
		"processing_time": result.ProcessingTime,
	})
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func documentKind(c *gin.Context) models.DocumentKind {
	kind := models.DocumentKind(c.PostForm("document_kind"))
	if kind == "" {
		return models.DocumentKindInvoice
	}
	return kind
}

func extractionOptions(c *gin.Context) extraction.Options {
	opts := extraction.DefaultOptions()
	if v := c.PostForm("extract_tables"); v != "" {
		opts.ExtractTables = v == "true" || v == "1"
	}
	if v := c.PostForm("extract_line_items"); v != "" {
		opts.ExtractLineItems = v == "true" || v == "1"
	}
	return opts
}
