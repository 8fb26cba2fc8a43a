package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blsnider/invoice-parser/dedup"
	"github.com/blsnider/invoice-parser/extraction"
	"github.com/blsnider/invoice-parser/models"
	"github.com/blsnider/invoice-parser/service"
	"github.com/blsnider/invoice-parser/storage"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, content []byte, kind models.DocumentKind, opts extraction.Options) (*models.RawExtraction, error) {
	if strings.Contains(string(content), "unreadable") {
		return nil, extraction.ErrMalformedResponse
	}
	return &models.RawExtraction{
		Fields: map[string]models.RawField{
			"invoice_number": {Value: "INV-100", Confidence: 0.97},
			"total_amount":   {Value: "$1,100.00", Confidence: 0.95},
		},
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	parseService := service.NewParseService(
		service.WithStorage(store),
		service.WithExtractor(stubExtractor{}),
		service.WithIndex(dedup.NewMemoryIndex()),
	)
	recordService := service.NewRecordService(
		service.RecordWithStorage(store),
		service.RecordWithIndex(dedup.NewMemoryIndex()),
	)

	parseHandler := NewParseHandler(parseService)
	recordHandler := NewRecordHandler(recordService, parseService)

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/parse", parseHandler.ParseDocument)
		v1.POST("/parse-batch", parseHandler.ParseBatch)
		v1.GET("/records", recordHandler.ListRecords)
		v1.GET("/records/:id", recordHandler.GetRecord)
		v1.GET("/records/:id/preview", recordHandler.GetPreview)
		v1.DELETE("/records/:id", recordHandler.DeleteRecord)
		v1.POST("/records/:id/reprocess", recordHandler.ReprocessRecord)
	}
	return router
}

func multipartBody(t *testing.T, field string, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func TestParseEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "file",
		map[string][]byte{"invoice.pdf": []byte("%PDF-1.4 invoice")},
		map[string]string{"document_kind": "invoice"})
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse", body, contentType)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["record_id"])
	assert.Equal(t, false, resp["duplicate"])

	data := resp["data"].(map[string]any)
	fields := data["structured_fields"].(map[string]any)
	total := fields["total_amount"].(map[string]any)
	assert.Equal(t, "1100.00", total["value"])
}

func TestParseEndpointRejectsNonPDF(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "file",
		map[string][]byte{"notes.txt": []byte("plain text")}, nil)
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeInvalidFileType, resp["code"])
}

func TestParseEndpointRequiresFile(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "file", nil, map[string]string{"document_kind": "invoice"})
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeValidationError, resp["code"])
}

func TestParseEndpointExtractionFailure(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "file",
		map[string][]byte{"scan.pdf": []byte("%PDF-1.4 unreadable")}, nil)
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse", body, contentType)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, service.CodeExtractionError, resp["code"])
}

func TestParseBatchEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"one.pdf": []byte("%PDF-1.4 one"),
		"two.pdf": []byte("%PDF-1.4 unreadable two"),
	}, map[string]string{"max_workers": "2"})
	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse-batch", body, contentType)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, float64(2), resp["total"])
	assert.Equal(t, float64(1), resp["succeeded"])
	assert.Equal(t, float64(1), resp["failed"])
	assert.Len(t, resp["results"], 2)
}

func TestRecordLifecycle(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, "file",
		map[string][]byte{"invoice.pdf": []byte("%PDF-1.4 lifecycle")}, nil)
	_, resp := doRequest(t, router, http.MethodPost, "/api/v1/parse", body, contentType)
	recordID := resp["record_id"].(string)

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/records/"+recordID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, recordID, resp["record_id"])

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/records/"+recordID+"/preview?expires_in=60", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp["signed_url"])

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/records", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), resp["total"])

	rec, _ = doRequest(t, router, http.MethodPost, "/api/v1/records/"+recordID+"/reprocess", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, router, http.MethodDelete, "/api/v1/records/"+recordID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/records/"+recordID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.CodeNotFound, resp["code"])
}

func TestRecordInvalidID(t *testing.T) {
	router := newTestRouter(t)

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/records/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeValidationError, resp["code"])
}
