package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/hrcore/leave-management/internal"
)

// redactedFields never reach the logs in clear text. Leave applications carry
// medical notes, so the redaction set covers health data alongside the usual
// credential material.
var redactedFields = []string{
	"password",
	"password_hash",
	"token",
	"access_token",
	"refresh_token",
	"authorization",
	"secret",
	"api_key",
	"doctor_note",
	"medical",
}

// maxLoggedBody caps how much of a request or response body lands in a log
// line.
const maxLoggedBody = 4 << 10

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())

			var reqBody []byte
			if r.Body != nil {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), r.Body))
			}

			attrs := []any{
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			if actor, ok := internal.ActorFromContext(r.Context()); ok {
				attrs = append(attrs, "employee_id", actor.ID, "role", actor.Role)
			}
			if len(reqBody) > 0 {
				attrs = append(attrs, "body", redactBody(reqBody))
			}
			logger.Info("incoming request", attrs...)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request served",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.written,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// redactBody parses a JSON body and masks redacted fields. Non-JSON bodies
// are dropped entirely rather than risk logging something sensitive.
func redactBody(body []byte) string {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "[non-json body omitted]"
	}
	out, err := json.Marshal(redactValue(data))
	if err != nil {
		return "[unloggable body]"
	}
	return string(out)
}

func redactValue(data any) any {
	switch v := data.(type) {
	case map[string]any:
		masked := make(map[string]any, len(v))
		for key, value := range v {
			if isRedacted(key) {
				masked[key] = "[REDACTED]"
				continue
			}
			masked[key] = redactValue(value)
		}
		return masked
	case []any:
		masked := make([]any, len(v))
		for i, item := range v {
			masked[i] = redactValue(item)
		}
		return masked
	default:
		return v
	}
}

func isRedacted(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range redactedFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}
