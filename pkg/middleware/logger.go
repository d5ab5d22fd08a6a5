package middleware

import (
	"bytes"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/nodepulse/nodepulse/pkg/logger"
	"github.com/rs/xid"
)

// LoggerMiddleware attaches a request-scoped zerolog logger to the
// context, recovers panics, and logs one line per completed request.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = xid.New().String()
		}
		start := time.Now()
		log := logger.Logger(ctx).With().
			Str("method", r.Method).Str("req_id", reqID).
			Str("url", r.URL.String()).Logger()

		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Msgf("Recovered from panic, stack trace: %s", string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		ctx = log.WithContext(ctx)
		r = r.WithContext(ctx)
		rw := newStatusWriter(w)
		next.ServeHTTP(rw, r)

		log = log.With().
			Int("cost_msec", int(time.Since(start).Milliseconds())).
			Int("status_code", rw.statusCode).
			Logger()
		switch {
		case rw.statusCode >= 500:
			log.Error().Str("response_body", rw.errBody.String()).Msg("Request completed with server error")
		case rw.statusCode >= 400:
			log.Warn().Str("response_body", rw.errBody.String()).Msg("Request completed with client error")
		default:
			log.Info().Msg("Request completed successfully")
		}
	})
}

// statusWriter records the status code and keeps a bounded copy of
// error response bodies for the completion log line.
type statusWriter struct {
	http.ResponseWriter
	errBody    bytes.Buffer
	statusCode int
}

const maxLoggedBody = 2048

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.statusCode >= 400 && sw.errBody.Len() < maxLoggedBody {
		n := len(b)
		if room := maxLoggedBody - sw.errBody.Len(); n > room {
			n = room
		}
		sw.errBody.Write(b[:n])
	}
	return sw.ResponseWriter.Write(b)
}

// Flush lets SSE handlers stream through the wrapped writer.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
