package server

import (
	"net/http"
	"time"

	"cardano-forge/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

const requestIDHeader = "X-Request-Id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Record.Info("HTTP",
			"METHOD", r.Method,
			"PATH", r.URL.Path,
			"STATUS", ww.Status(),
			"DURATION", time.Since(start).String(),
			"REQUEST", ww.Header().Get(requestIDHeader),
		)
	})
}
