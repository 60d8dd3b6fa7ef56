package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/bio-generator/internal/domain/generator"
)

// Handler wires the HTTP transport to the generator service.
type Handler struct {
	generatorSvc generator.Service
	logger       *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(generatorSvc generator.Service, logger *slog.Logger) *Handler {
	return &Handler{
		generatorSvc: generatorSvc,
		logger:       logger.With("component", "http.handler"),
	}
}

// Generate streams the generated bio as chunked plain text.
func (h *Handler) Generate(c *gin.Context) {
	var req generator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	stream, err := h.generatorSvc.Stream(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, NewHTTPError(statusForAppError(err), "generate_failed", errMessage(err), err))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	for delta := range stream {
		if delta.Err != nil {
			if !c.Writer.Written() {
				abortWithError(c, NewHTTPError(statusForAppError(delta.Err), "generate_failed", errMessage(delta.Err), delta.Err))
				return
			}
			h.logger.Error("generation failed mid-stream, dropping connection", "error", delta.Err, "bytes", c.Writer.Size(), "request_id", requestID(c))
			panic(http.ErrAbortHandler)
		}
		if !c.Writer.Written() {
			writeStreamHeaders(c)
		}
		if _, err := c.Writer.WriteString(delta.Text); err != nil {
			h.logger.Warn("write generation chunk failed", "error", err, "request_id", requestID(c))
			return
		}
		flusher.Flush()
	}
	if !c.Writer.Written() {
		writeStreamHeaders(c)
	}
}

// writeStreamHeaders is deferred until the first chunk so an early failure can still answer with a JSON envelope.
func writeStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// History returns the most recent generations, newest first.
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}

	records, err := h.generatorSvc.History(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "history_failed", errMessage(err), err))
		return
	}
	if records == nil {
		records = []generator.HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
