// Package api serves geoff over HTTP for the map client.
//
//	POST /query     {"prompt": "..."}  answer a question
//	POST /plan      {"plan": {...}}    run a caller-supplied plan
//	GET  /examples  ?limit=N           list example questions
//	GET  /schemas                      table and column catalog
//	GET  /health                       liveness with a database ping
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/examples"
	"github.com/roach88/geoff/internal/service"
)

const (
	routeQuery    = "/query"
	routePlan     = "/plan"
	routeExamples = "/examples"
	routeSchemas  = "/schemas"
	routeHealth   = "/health"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Backend answers requests. Implemented by *service.Service.
type Backend interface {
	Ask(ctx context.Context, question string) (*service.Response, error)
	RunPlan(ctx context.Context, raw []byte) (*service.Response, error)
	Ping(ctx context.Context) error
	Catalog() *catalog.Catalog
	Examples() *examples.Library
}

// Options configures the router.
type Options struct {
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
	// RequestTimeout bounds each request. Zero disables the bound.
	RequestTimeout time.Duration
}

type handler struct {
	backend Backend
	log     *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(b Backend, o Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{backend: b, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if o.RequestTimeout > 0 {
		r.Use(middleware.Timeout(o.RequestTimeout))
	}

	r.Post(routeQuery, h.query)
	r.Post(routePlan, h.plan)
	r.Get(routeExamples, h.examples)
	r.Get(routeSchemas, h.schemas)
	r.Get(routeHealth, h.health)

	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// requestLogger logs one line per request after it completes.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
