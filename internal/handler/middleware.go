package handler

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

// Recovery turns a panic in next into a 500 JSON envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.FromContext(r.Context()).Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("stack", string(debug.Stack())),
				)
				writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Wrap applies the middleware chain: CORS, then panic recovery, then next.
func Wrap(next http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "X-Trace-ID", "X-Request-ID"},
		ExposedHeaders: []string{"X-Trace-ID", "X-Conversation-ID"},
	})
	return corsHandler.Handler(Recovery(next))
}
