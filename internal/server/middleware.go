package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/events"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// loggingMiddleware assigns a trace id and logs request lifecycle. Bodies are
// never logged here; they may contain the sensitive content this service
// exists to remove.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.totalRequests.Add(1)

		traceID := uuid.NewString()
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.logger.WithTraceID(traceID).Info("HTTP request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.logger.WithTraceID(traceID).Info("HTTP request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", duration),
			zap.Int("response_size", rw.size),
		)

		s.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeRequestLog,
			Timestamp: time.Now(),
			TraceID:   traceID,
			Data: events.RequestLogEvent{
				TraceID:    traceID,
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rw.statusCode,
				ClientIP:   clientIP(r),
				UserAgent:  r.UserAgent(),
				Duration:   duration,
			},
		})
	})
}

// rateLimitMiddleware rejects clients exceeding the per-IP limit.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			traceID := getTraceID(r.Context())
			s.logger.WithTraceID(traceID).Warn("Rate limit exceeded",
				zap.String("client_ip", ip))
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", traceID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// getTraceID extracts the trace ID from context
func getTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return "unknown"
}
