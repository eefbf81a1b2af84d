package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/auth"
	"github.com/sells-group/leadgen/internal/leadgen"
)

func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			writeReason(w, http.StatusUnauthorized, leadgen.ReasonUnauthorized)
			return
		}
		acct, err := h.deps.Verifier.Verify(token)
		if err != nil {
			zap.L().Debug("api: session rejected",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeReason(w, http.StatusUnauthorized, leadgen.ReasonUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAccount(r.Context(), acct)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		switch {
		case status >= 500:
			zap.L().Error("api: request", fields...)
		case status >= 400:
			zap.L().Warn("api: request", fields...)
		default:
			zap.L().Info("api: request", fields...)
		}
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zap.L().Error("api: panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
				writeReason(w, http.StatusInternalServerError, leadgen.ReasonInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
