package router

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// Recover turns a panic into a bare 500. The stack goes to the log only.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID(r)),
					zap.ByteString("stack", debug.Stack()))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Internal Server Error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
