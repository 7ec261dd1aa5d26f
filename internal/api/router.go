package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/handler"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/auth"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpmetrics "github.com/slok/go-http-metrics/metrics"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

func SetupRouter(h *handler.Handler, redisClient redis.RedisClient, jwtService *auth.JWTService, checks map[string]HealthCheck) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery, logging)

	mw := middleware.New(middleware.Config{
		Recorder: httpRecorder(),
	})
	router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", healthz(checks)).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	h.RegisterPublicRoutes(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(auth.AuthMiddleware(redisClient, jwtService))
	h.RegisterProtectedRoutes(protected)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AuthMiddleware(redisClient, jwtService), auth.RequireAdmin)
	h.RegisterAdminRoutes(admin)

	return router
}

var (
	recorderOnce sync.Once
	recorder     httpmetrics.Recorder
)

// httpRecorder registers the HTTP collectors once per process.
func httpRecorder() httpmetrics.Recorder {
	recorderOnce.Do(func() {
		recorder = metrics.NewRecorder(metrics.Config{})
	})
	return recorder
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	}
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		zap.S().Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start))
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.S().Errorw("panic recovered",
					"path", r.URL.Path,
					"error", rec,
					"stack", string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
