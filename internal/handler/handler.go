package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/chat"
	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/internal/speech"
	"github.com/young1lin/voicechat/pkg/logger"
)

const conversationsPrefix = "/api/conversations/"

// Conversation answers a chat history.
type Conversation interface {
	Run(ctx context.Context, history []models.ConversationTurn) (*chat.Result, error)
}

// Journal records completed exchanges. A nil Journal disables recording.
type Journal interface {
	Record(ex models.Exchange) error
	Get(id string) (*models.Exchange, bool)
	Delete(id string) error
}

// Options configures an APIHandler.
type Options struct {
	Conversation Conversation
	Transcriber  speech.Transcriber
	Synthesizer  speech.Synthesizer
	Journal      Journal
	MaxUploadMB  int
}

// APIHandler serves the voice chat API.
type APIHandler struct {
	conversation Conversation
	transcriber  speech.Transcriber
	synthesizer  speech.Synthesizer
	journal      Journal
	maxUpload    int64
	metrics      http.Handler
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(opts Options) *APIHandler {
	maxUpload := int64(opts.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	return &APIHandler{
		conversation: opts.Conversation,
		transcriber:  opts.Transcriber,
		synthesizer:  opts.Synthesizer,
		journal:      opts.Journal,
		maxUpload:    maxUpload,
		metrics:      promhttp.Handler(),
	}
}

// ServeHTTP handles all HTTP requests
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}

	log := logger.WithTraceID(traceID)
	ctx := logger.ContextWithTraceID(r.Context(), traceID)
	ctx = logger.ContextWithLogger(ctx, log)
	r = r.WithContext(ctx)

	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	route := h.route(rec, r, log)

	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	log.Info("request completed",
		zap.Int("status", rec.status),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// route dispatches r and returns the route label used for metrics.
func (h *APIHandler) route(w http.ResponseWriter, r *http.Request, log *zap.Logger) string {
	path := r.URL.Path
	switch {
	case path == "/api/chat":
		if h.allow(w, r, log, http.MethodPost) {
			h.handleChat(w, r, log)
		}
		return "chat"
	case path == "/api/transcribe":
		if h.allow(w, r, log, http.MethodPost) {
			h.handleTranscribe(w, r, log)
		}
		return "transcribe"
	case path == "/api/tts":
		if h.allow(w, r, log, http.MethodPost) {
			h.handleTTS(w, r, log)
		}
		return "tts"
	case path == "/api/health":
		if h.allow(w, r, log, http.MethodGet) {
			writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
		}
		return "health"
	case strings.HasPrefix(path, conversationsPrefix):
		if h.allow(w, r, log, http.MethodGet, http.MethodDelete) {
			id := strings.TrimPrefix(path, conversationsPrefix)
			if r.Method == http.MethodDelete {
				h.handleDeleteConversation(w, id, log)
			} else {
				h.handleGetConversation(w, r, id, log)
			}
		}
		return "conversations"
	case path == "/metrics":
		h.metrics.ServeHTTP(w, r)
		return "metrics"
	default:
		h.handleError(w, http.StatusNotFound, "Not found", log)
		return "not_found"
	}
}

func (h *APIHandler) allow(w http.ResponseWriter, r *http.Request, log *zap.Logger, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	h.handleError(w, http.StatusMethodNotAllowed, "Method not allowed", log)
	return false
}

// handleError writes an error envelope. message is sent to the client as is,
// so it must never carry upstream detail.
func (h *APIHandler) handleError(w http.ResponseWriter, status int, message string, log *zap.Logger) {
	log.Warn("request error",
		zap.String("message", message),
		zap.Int("status", status),
	)
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the status code for metrics and logging while
// still exposing http.Flusher to streaming handlers.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// extractTraceID extracts trace ID from various possible headers
func extractTraceID(r *http.Request) string {
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	return uuid.New().String()[:16]
}
