package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"salestracker/internal/cache"
	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	applog "salestracker/internal/log"
	"salestracker/internal/middleware/ratelimit"
	"salestracker/internal/middleware/security"
	"salestracker/internal/middleware/trace"
	"salestracker/internal/records"
	"salestracker/internal/services"
	appweb "salestracker/web"
)

type (
	// SaleSubmitter accepts sales from the form, the API and the service
	// worker replay.
	SaleSubmitter interface {
		Submit(ctx context.Context, in core.SaleInput) (services.SubmitResult, error)
		Replay(ctx context.Context, in core.SaleInput) (services.SubmitResult, error)
	}

	// Dashboard serves chart series from the record snapshot.
	Dashboard interface {
		Chart(ctx context.Context, q services.ChartQuery) (services.ChartResult, error)
		Snapshot() services.Snapshot
	}

	// Flusher runs and reports pending queue flushes.
	Flusher interface {
		Flush(ctx context.Context) (services.FlushResult, error)
		LastResult() (services.FlushResult, bool)
		FlushCounts() (ok, failed int64)
	}

	// PendingReader is the read side of the local pending queue.
	PendingReader interface {
		ListPending(ctx context.Context) ([]core.PendingEntry, error)
		Count(ctx context.Context) (int64, error)
		Ping(ctx context.Context) error
	}

	// StatsReporter exposes hit and miss counters of a cache.
	StatsReporter interface {
		Stats() cache.Stats
	}
)

// Deps are the collaborators the handlers use. Cache is optional.
type Deps struct {
	Sales     SaleSubmitter
	Dashboard Dashboard
	Sync      Flusher
	Queue     PendingReader
	Monitor   *connectivity.Monitor
	Store     records.Pinger
	Cache     StatsReporter
	Backend   string
}

// Options tune the server middleware.
type Options struct {
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	deps       Deps
	templates  *template.Template
	staticFS   fs.FS
	validate   *validator.Validate
	logger     *applog.Logger
	structured *applog.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	chartCache   *cache.LRUCache[services.ChartResult]
	cacheManager *cache.Manager

	appMetrics   *appMetrics
	shutdownOnce sync.Once
	now          func() time.Time
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentHTTP})
	} else {
		logger = logger.WithComponent(applog.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		deps:             deps,
		validate:         newValidator(),
		logger:           logger,
		structured:       applog.NewStructuredLogger(logger.WithComponent(applog.ComponentSales)),
		securityDetector: security.NewDetector(),
		chartCache:       cache.NewLRUCache[services.ChartResult](100, 5*time.Minute),
		cacheManager:     cache.NewManager(),
		appMetrics:       newAppMetrics(),
		now:              time.Now,
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Methods:           []string{http.MethodPost},
	})

	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		s.staticFS = sub
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
		mux.Handle("/sw.js", security.NoCacheMiddleware(http.HandlerFunc(s.handleServiceWorker)))
		mux.HandleFunc("/manifest.webmanifest", s.handleManifest)
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// Pages and HTMX partials
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/sales", s.handleCreateSale)
	mux.HandleFunc("/ui/chart", s.handleChartPartial)
	mux.HandleFunc("/ui/status", s.handleStatusPartial)

	// JSON API
	mux.HandleFunc("/api/sales", s.handleAPISales)
	mux.HandleFunc("/api/sync-sale", s.handleSyncSale)
	mux.HandleFunc("/api/sales/chart", s.handleChartAPI)
	mux.HandleFunc("/api/sales/export.xlsx", s.handleExport)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/pending", s.handlePending)
	mux.HandleFunc("/api/status", s.handleStatus)

	// Operations
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Outermost first: trace, security headers, detection, rate limit, logger.
	var handler http.Handler = mux
	handler = applog.Middleware(logger, trace.GetRequestID)(handler)
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down and try again shortly").Write(w)
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// chart returns a chart result, memoised per query and snapshot generation.
// A snapshot that was never fetched is not cached so the first request
// still triggers a fetch.
func (s *Server) chart(ctx context.Context, q services.ChartQuery) (services.ChartResult, error) {
	snap := s.deps.Dashboard.Snapshot()
	if snap.FetchedAt.IsZero() {
		return s.deps.Dashboard.Chart(ctx, q)
	}

	key := chartCacheKey(q, snap, core.DateOf(s.now()))
	if res, ok := s.chartCache.Get(key); ok {
		return res, nil
	}
	res, err := s.deps.Dashboard.Chart(ctx, q)
	if err != nil {
		return services.ChartResult{}, err
	}
	s.chartCache.Set(key, res)
	return res, nil
}

func chartCacheKey(q services.ChartQuery, snap services.Snapshot, today core.Date) string {
	month := ""
	if q.Month != (core.YearMonth{}) {
		month = q.Month.String()
	}
	end := ""
	if !q.End.IsZero() {
		end = q.End.String()
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
		q.Period, q.View, month, end, today, snap.FetchedAt.UnixNano(), snap.LastErrorAt.UnixNano())
}
