package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/image-inspector-go/internal/config"
	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/observer"
	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

const (
	// Version is reported by the health endpoint
	Version = "1.0.0"

	HeaderRequestID = "X-Request-ID"
	// HeaderSessionID groups uploads from one client for the stale-result guard
	HeaderSessionID = "X-Session-ID"

	historyExportName  = "metadata_history.json"
	metadataExportName = "metadata_extraction.json"

	requestIDKey = "request_id"
)

type handler struct {
	svc     service.InspectionService
	metrics *observer.MetricsObserver
	cfg     *config.Config
}

// NewHandler builds the gin router. metrics may be nil, which disables /metrics.
func NewHandler(svc service.InspectionService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, metrics: metrics, cfg: cfg}

	r.GET("/health", healthCheck)
	r.POST("/analyze", h.analyzeUpload)
	r.POST("/analyze/url", h.analyzeURL)

	history := r.Group("/history")
	{
		history.GET("", h.listHistory)
		history.DELETE("", h.clearHistory)
		history.GET("/export", h.exportHistory)
		history.GET("/:id", h.getHistory)
		history.GET("/:id/export", h.exportMetadata)
		history.DELETE("/:id", h.deleteHistory)
	}

	r.GET("/settings", h.getSettings)
	r.PUT("/settings", h.saveSettings)
	r.POST("/settings/reset", h.resetSettings)

	if metrics != nil {
		r.GET("/metrics", h.getMetrics)
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) analysisContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func (h *handler) analyzeUpload(c *gin.Context) {
	ctx, cancel := h.analysisContext(c)
	defer cancel()

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, bodyError("a multipart \"file\" field is required", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to open upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, bodyError("failed to read upload", err))
		return
	}

	upload := service.Upload{
		Session:     c.GetHeader(HeaderSessionID),
		Name:        fh.Filename,
		MIMEType:    fh.Header.Get("Content-Type"),
		Data:        data,
		SkipHistory: c.Query("no_history") == "true",
	}
	if raw := c.PostForm("last_modified"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperrors.NewValidationError("last_modified must be epoch milliseconds", err))
			return
		}
		upload.LastModified = time.UnixMilli(ms)
	}

	resp, err := h.svc.Analyze(ctx, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyzeURL(c *gin.Context) {
	ctx, cancel := h.analysisContext(c)
	defer cancel()

	var req models.AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bodyError("invalid request format", err))
		return
	}

	resp, err := h.svc.AnalyzeURL(ctx, c.GetHeader(HeaderSessionID), req.URL, c.Query("no_history") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) listHistory(c *gin.Context) {
	var q models.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, apperrors.NewValidationError("invalid history query", err))
		return
	}
	items, err := h.svc.ListHistory(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.HistoryResponse{Count: len(items), Items: items})
}

func (h *handler) getHistory(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	rec, err := h.svc.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) deleteHistory(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteHistory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearHistory(c *gin.Context) {
	if err := h.svc.ClearHistory(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) exportHistory(c *gin.Context) {
	data, err := h.svc.ExportHistory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, historyExportName, data)
}

func (h *handler) exportMetadata(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	data, err := h.svc.ExportMetadata(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, metadataExportName, data)
}

func (h *handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Settings(c.Request.Context()))
}

// saveSettings merges the body over the current settings, so omitted fields
// keep their values.
func (h *handler) saveSettings(c *gin.Context) {
	settings := h.svc.Settings(c.Request.Context())
	if err := c.ShouldBindJSON(&settings); err != nil {
		respondError(c, bodyError("invalid settings", err))
		return
	}
	if err := h.svc.SaveSettings(c.Request.Context(), settings); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *handler) resetSettings(c *gin.Context) {
	settings, err := h.svc.ResetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *handler) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func historyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.NewValidationError("history id must be an integer", err))
		return 0, false
	}
	return id, true
}

func attachment(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// bodyError maps request body failures, reporting an exceeded size limit as 413
func bodyError(message string, err error) *apperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		appErr := apperrors.NewValidationError("request body too large", err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	return apperrors.NewValidationError(message, err)
}

// Middleware and helper functions

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id":  c.GetString(requestIDKey),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)

	resp := models.ErrorResponse{
		Error:     http.StatusText(code),
		Type:      string(apperrors.GetType(err)),
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  resp.RequestID,
		"status_code": code,
		"error_type":  resp.Type,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, resp)
}
