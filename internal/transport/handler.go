package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/neuravision/neuravision/internal/config"
	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/factory"
	"github.com/neuravision/neuravision/internal/logger"
	"github.com/neuravision/neuravision/internal/observer"
	"github.com/neuravision/neuravision/internal/repository"
	"github.com/neuravision/neuravision/internal/service"
	"github.com/neuravision/neuravision/internal/session"
	"github.com/neuravision/neuravision/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	headerAPIKey    = "X-API-Key"
	headerSessionID = "X-Session-ID"
)

// Handler serves the analysis API
type Handler struct {
	svc      service.ImageAnalysisService
	sessions *session.Store
	metrics  *observer.MetricsObserver
	cfg      *config.Config
}

func NewHandler(svc service.ImageAnalysisService, sessions *session.Store, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	h := &Handler{svc: svc, sessions: sessions, metrics: metrics, cfg: cfg}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", h.getMetrics)
	r.GET("/presets", h.listPresets)

	r.POST("/sessions", h.createSession)
	r.GET("/sessions/:id", h.getSession)
	r.PUT("/sessions/:id", h.updateSession)
	r.DELETE("/sessions/:id", h.deleteSession)

	r.POST("/analyze", h.analyzeUpload)
	r.POST("/analyze/url", h.analyzeURL)

	return r
}

func (h *Handler) analyzeUpload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logRequest(c, "Processing image upload analysis request")

	// FormFile parses the multipart body; PostForm reads from the parsed form.
	file, err := c.FormFile("image")
	input := service.AnalyzeInput{
		Prompt:     c.PostForm("prompt"),
		Preset:     c.PostForm("preset"),
		Credential: credentialFromRequest(c),
		SessionID:  c.GetHeader(headerSessionID),
	}

	switch {
	case err == nil:
		data, err := readUpload(file, h.cfg.Analysis.MaxImageBytes)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid upload", err)
			return
		}
		input.Image = data
		input.Filename = file.Filename
	case isBodyTooLarge(err):
		respondError(c, http.StatusRequestEntityTooLarge, "request body too large", err)
		return
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	resp, err := h.svc.AnalyzeUpload(ctx, input)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "analysis rejected", err)
		return
	}
	respondAnalysis(c, resp)
}

func (h *Handler) analyzeURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logRequest(c, "Processing remote image analysis request")

	var req models.RemoteAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).Error("Invalid request format")
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	sourceType, err := factory.ParseSourceType(req.Source)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid source", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"url":    req.URL,
		"source": sourceType,
	}).Debug("Fetching image")

	resp, err := h.svc.AnalyzeRemote(ctx, service.RemoteInput{
		Ref:        repository.ImageRef{Source: sourceType, Location: req.URL},
		Prompt:     req.Prompt,
		Preset:     req.Preset,
		Credential: credentialFromRequest(c),
		SessionID:  c.GetHeader(headerSessionID),
	})
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "analysis rejected", err)
		return
	}
	respondAnalysis(c, resp)
}

func (h *Handler) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": h.svc.Presets()})
}

func (h *Handler) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "2.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// credentialFromRequest reads the API key from a bearer token or the X-API-Key header
func credentialFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := cutPrefixFold(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader(headerAPIKey))
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func readUpload(file *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("cannot open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read uploaded file", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Image exceeds %d bytes", maxBytes), nil)
	}
	return data, nil
}

func respondAnalysis(c *gin.Context, resp *models.AnalysisResponse) {
	fields := logrus.Fields{
		"state":              resp.State,
		"model":              resp.Model,
		"processing_time_ms": resp.ProcessingTimeMs,
	}
	if resp.Succeeded() {
		logger.WithFields(fields).Info("Image analysis completed successfully")
	} else {
		fields["error_type"] = resp.ErrorType
		logger.WithFields(fields).Warn("Image analysis failed")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func logRequest(c *gin.Context, msg string) {
	logger.WithFields(logrus.Fields{
		"method":      c.Request.Method,
		"path":        c.Request.URL.Path,
		"user_agent":  c.Request.UserAgent(),
		"ip":          c.ClientIP(),
		"has_session": c.GetHeader(headerSessionID) != "",
	}).Info(msg)
}

// Middleware and helper functions
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
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case isBodyTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
