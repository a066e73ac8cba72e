package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/logging"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// withRequestID reuses the caller's request id or generates one, and puts
// it in the request context for logging.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// recoverer turns a panic into a generic 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.WithContext(r.Context()).Error("panic serving request",
					logging.F("panic", rec),
					logging.F("path", r.URL.Path),
				)
				writeError(w, mnerrors.Internal("Internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs and counts requests to an API route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.deps.Metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), elapsed.Seconds())

		log := s.logger.WithContext(r.Context())
		fields := []logging.Field{
			logging.F("method", r.Method),
			logging.F("route", route),
			logging.F("status", rec.status),
			logging.F("elapsed_ms", elapsed.Milliseconds()),
		}
		if rec.status >= http.StatusInternalServerError {
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request completed", fields...)
	})
}
