package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	applog "salestracker/internal/log"
	"salestracker/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks the templates, the local queue and the record store.
// The record store being down does not make the service unready: sales are
// queued while it is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.deps.Queue == nil {
		checks["queue"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.deps.Queue.Ping(ctx); err != nil {
		checks["queue"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["queue"] = "ok"
	}

	switch {
	case s.deps.Store == nil:
		checks["record_store"] = "not_configured"
	default:
		if err := s.deps.Store.Ping(ctx); err != nil {
			checks["record_store"] = fmt.Sprintf("unreachable: %v", err)
			if status == "ready" {
				status = "degraded"
			}
		} else {
			checks["record_store"] = "ok"
		}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	chartStats := s.chartCache.Stats()

	var flushOK, flushFailed int64
	if s.deps.Sync != nil {
		flushOK, flushFailed = s.deps.Sync.FlushCounts()
	}
	var pending int64 = -1
	if s.deps.Queue != nil {
		if n, err := s.deps.Queue.Count(r.Context()); err == nil {
			pending = n
		}
	}
	online := 1
	if s.deps.Monitor != nil && !s.deps.Monitor.IsOnline() {
		online = 0
	}

	metric := func(name, kind, help string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_errors_total", "counter", "HTTP responses with status 5xx", traceMetrics.ServerErrors)
	metric("sales_written_total", "counter", "Sales written directly to the record store", s.appMetrics.salesDirect.Load())
	metric("sales_queued_total", "counter", "Sales queued for a later flush", s.appMetrics.salesQueued.Load())
	metric("sales_replayed_total", "counter", "Sales replayed by the service worker", s.appMetrics.salesReplayed.Load())
	metric("sales_replay_failed_total", "counter", "Service worker replays that failed", s.appMetrics.replayFailed.Load())
	metric("flushes_ok_total", "counter", "Pending queue flushes that completed", flushOK)
	metric("flushes_failed_total", "counter", "Pending queue flushes that failed", flushFailed)
	metric("pending_sales", "gauge", "Sales waiting in the local queue", pending)
	metric("record_store_online", "gauge", "Whether the record store is reachable", online)
	metric("exports_total", "counter", "Workbooks exported", s.appMetrics.exports.Load())

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{cache=\"chart\"} %d\n", chartStats.Hits)
	if s.deps.Cache != nil {
		fmt.Fprintf(w, "cache_hits_total{cache=\"snapshot\"} %d\n", s.deps.Cache.Stats().Hits)
	}
	fmt.Fprintf(w, "\n# HELP cache_misses_total Total cache misses\n# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{cache=\"chart\"} %d\n", chartStats.Misses)
	if s.deps.Cache != nil {
		fmt.Fprintf(w, "cache_misses_total{cache=\"snapshot\"} %d\n", s.deps.Cache.Stats().Misses)
	}
	fmt.Fprintln(w)

	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

type statusResponse struct {
	State       connectivity.State    `json:"state"`
	Since       time.Time             `json:"since"`
	Pending     int64                 `json:"pending"`
	LastFlush   *services.FlushResult `json:"lastFlush,omitempty"`
	LastRefresh time.Time             `json:"lastRefresh"`
	LastError   string                `json:"lastError,omitempty"`
	Backend     string                `json:"backend,omitempty"`
}

func (s *Server) status(ctx context.Context) (statusResponse, error) {
	resp := statusResponse{State: connectivity.Online, Backend: s.deps.Backend}
	if s.deps.Monitor != nil {
		resp.State = s.deps.Monitor.State()
		resp.Since = s.deps.Monitor.Since()
	}
	if s.deps.Sync != nil {
		if last, ok := s.deps.Sync.LastResult(); ok {
			resp.LastFlush = &last
		}
	}
	if s.deps.Dashboard != nil {
		snap := s.deps.Dashboard.Snapshot()
		resp.LastRefresh = snap.FetchedAt
		resp.LastError = snap.LastError
	}
	n, err := s.deps.Queue.Count(ctx)
	if err != nil {
		return resp, fmt.Errorf("count pending: %w", err)
	}
	resp.Pending = n
	return resp, nil
}

// handleStatus reports connectivity, queue and refresh state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodGet) {
		return
	}
	resp, err := s.status(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Status check failed", applog.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatusPartial renders the connectivity badge.
func (s *Server) handleStatusPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	st, err := s.status(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Status check failed", applog.FieldError, err)
	}
	s.render(w, r, "status", st)
}

// handlePending lists the queued sales in flush order.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodGet) {
		return
	}
	entries, err := s.deps.Queue.ListPending(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list pending sales", applog.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "pending queue unavailable")
		return
	}
	if entries == nil {
		entries = []core.PendingEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleSync runs a flush now. It answers 503 when the flush failed so
// callers can tell a drained queue from a stalled one.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	res, err := s.deps.Sync.Flush(ctx)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Manual flush failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpFlush)
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	tab := r.URL.Query().Get("tab")
	if tab != "dashboard" {
		tab = "entry"
	}
	st, err := s.status(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Status unavailable for index", applog.FieldError, err)
	}

	data := struct {
		Today   string
		Tab     string
		Status  statusResponse
		Periods []option
		Views   []option
	}{
		Today:   core.DateOf(s.now()).String(),
		Tab:     tab,
		Status:  st,
		Periods: periodOptions(core.Daily),
		Views:   viewOptions(core.ViewTotal),
	}
	s.render(w, r, "index.html", data)
}

// handleServiceWorker serves the worker script from the root so its scope
// covers the whole app.
func (s *Server) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, "sw.js", "text/javascript; charset=utf-8")
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, "manifest.webmanifest", "application/manifest+json")
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, name, contentType string) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	data, err := fs.ReadFile(s.staticFS, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// render executes a named template. Errors after headers are sent can only
// be logged.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name,
			applog.FieldOperation, applog.OpRender)
	}
}
