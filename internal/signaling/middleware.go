package signaling

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pterm/pterm"
)

// requestLogger logs one line per request through pterm.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		pterm.DefaultLogger.Info("request", pterm.DefaultLogger.Args(
			"method", r.Method,
			"uri", r.RequestURI,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"from", r.RemoteAddr,
			"id", middleware.GetReqID(r.Context()),
			"took", time.Since(start).Round(time.Millisecond),
		))
	})
}
