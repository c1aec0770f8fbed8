// internal/router/router.go
package router

import (
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"donation-service/config"
	"donation-service/internal/handler"
	"donation-service/internal/metrics"
	"donation-service/internal/receipt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	DonationHandler *handler.DonationHandler
	CallbackHandler *handler.CallbackHandler
	Health          http.HandlerFunc
	Limiter         Limiter
	ReceiptsDir     string
	Callback        config.CallbackConfig
	CORS            config.CORSConfig
	TrustedProxies  []string
}

func SetupRoutes(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(deps.TrustedProxies, logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(Recover(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(SecurityHeaders()...)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Compress(5))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Payment gateway callbacks are never rate limited
		r.With(CallbackGuard(deps.Callback, logger)).Post("/callback", deps.CallbackHandler.HandleSTKCallback)

		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(RateLimit(deps.Limiter, logger))
			}

			r.Get("/health", deps.Health)
			r.Post("/donate", deps.DonationHandler.Donate)
			r.Get("/receipts/*", http.StripPrefix(receipt.URLPrefix,
				http.FileServer(filesOnly{http.Dir(deps.ReceiptsDir)})).ServeHTTP)
		})
	})

	return r
}

// filesOnly hides directories so the receipts folder cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// SecurityHeaders sets the response headers a browser-facing API should carry.
func SecurityHeaders() []func(http.Handler) http.Handler {
	headers := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "SAMEORIGIN"},
		{"Referrer-Policy", "no-referrer"},
		{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
		{"X-DNS-Prefetch-Control", "off"},
		{"Cross-Origin-Opener-Policy", "same-origin"},
		{"X-XSS-Protection", "0"},
	}
	mw := make([]func(http.Handler) http.Handler, 0, len(headers))
	for _, h := range headers {
		mw = append(mw, middleware.SetHeader(h[0], h[1]))
	}
	return mw
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(status)).
				Observe(duration.Seconds())

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.String("request_id", requestID(r)))
		})
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
