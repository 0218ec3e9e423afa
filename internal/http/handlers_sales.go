package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"salestracker/internal/core"
	applog "salestracker/internal/log"
	"salestracker/internal/services"
)

const submitTimeout = 15 * time.Second

type saleResponse struct {
	Record  core.SalesRecord `json:"record"`
	ID      string           `json:"id,omitempty"`
	LocalID int64            `json:"localId,omitempty"`
	Queued  bool             `json:"queued"`
}

// parseSale reads and validates a sale from the body. The returned
// message is safe to show to the user.
func (s *Server) parseSale(w http.ResponseWriter, r *http.Request) (core.SaleInput, int, string, []string) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid sale body",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeValidation)
		return core.SaleInput{}, http.StatusBadRequest, "Invalid request format", nil
	}
	in := p.SaleInput()
	if err := s.validateSale(in); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return in, http.StatusUnprocessableEntity, "Invalid sale", ve.Fields
		}
		return in, http.StatusBadRequest, "Invalid sale", nil
	}
	return in, 0, "", nil
}

// submit runs a sale through the service and records metrics and logs.
func (s *Server) submit(ctx context.Context, in core.SaleInput) (services.SubmitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	res, err := s.deps.Sales.Submit(ctx, in)
	if err != nil {
		s.structured.LogError(ctx, "Failed to save sale", err, applog.OpCreate,
			applog.NewFields().WithErrorType(applog.ErrorTypeDatabase))
		return res, err
	}

	s.appMetrics.recordSubmit(res.Queued)
	ref := res.RemoteID
	if res.Queued {
		ref = strconv.FormatInt(res.LocalID, 10)
	}
	s.structured.LogSaleSubmitted(ctx, res.Record.Date.String(), res.Record.Cash.Cents, res.Record.Online.Cents, res.Queued, ref)
	return res, nil
}

// handleCreateSale is the htmx form submit. The entry form swaps the
// returned notice; triggers refresh the chart and reset the form.
func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	in, status, msg, fields := s.parseSale(w, r)
	if status != 0 {
		if len(fields) > 0 {
			msg += ": " + fields[0]
		}
		ErrorResponse(status, msg).Write(w)
		return
	}

	res, err := s.submit(r.Context(), in)
	if err != nil {
		InternalServerError("Error saving sale, please try again").Write(w)
		return
	}

	rec := res.Record
	summary := template.HTMLEscapeString(rec.Date.String()) +
		`: cash ` + template.HTMLEscapeString(formatMoney(rec.Cash)) +
		`, online ` + template.HTMLEscapeString(formatMoney(rec.Online)) +
		`, total ` + template.HTMLEscapeString(formatMoney(rec.Total()))

	b := NewHTMXResponse().
		TriggerSaleCreated(rec.Date.String(), res.Queued).
		TriggerChartRefresh().
		TriggerFormReset()

	if res.Queued {
		if n, err := s.deps.Queue.Count(r.Context()); err == nil {
			b.TriggerPendingChanged(n)
		}
		b.TriggerWarningNotification("Saved offline, it will sync when the connection is back").
			BodyHTML(`<div class="notice notice--warning" role="status">Saved offline (#` +
				strconv.FormatInt(res.LocalID, 10) + `) ` + summary + `</div>`)
	} else {
		b.TriggerSuccessNotification("Sale recorded").
			BodyHTML(`<div class="notice notice--success" role="status">Sale recorded ` + summary + `</div>`)
	}
	b.Write(w)
}

// handleAPISales lists the snapshot on GET and submits on POST. A written
// sale answers 201, a queued one 202.
func (s *Server) handleAPISales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		snap := s.deps.Dashboard.Snapshot()
		recs := snap.Records
		if recs == nil {
			recs = []core.SalesRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"records":   recs,
			"count":     len(recs),
			"fetchedAt": snap.FetchedAt,
			"stale":     snap.LastError != "",
			"error":     snap.LastError,
		})
	case http.MethodPost:
		in, status, msg, fields := s.parseSale(w, r)
		if status != 0 {
			writeJSONError(w, status, msg, fields...)
			return
		}
		res, err := s.submit(r.Context(), in)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "sale could not be saved")
			return
		}
		code := http.StatusCreated
		if res.Queued {
			code = http.StatusAccepted
		}
		writeJSON(w, code, saleResponse{Record: res.Record, ID: res.RemoteID, LocalID: res.LocalID, Queued: res.Queued})
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSyncSale receives a sale replayed by the service worker's
// background sync. It never queues: 503 tells the worker to keep the sale
// and retry later.
func (s *Server) handleSyncSale(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodPost) {
		return
	}
	in, status, msg, fields := s.parseSale(w, r)
	if status != 0 {
		writeJSONError(w, status, msg, fields...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()

	res, err := s.deps.Sales.Replay(ctx, in)
	if err != nil {
		s.appMetrics.replayFailed.Add(1)
		s.structured.LogError(ctx, "Failed to replay sale", err, applog.OpReplay,
			applog.NewFields().WithErrorType(applog.ErrorTypeUnavailable))
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	s.appMetrics.salesReplayed.Add(1)
	writeJSON(w, http.StatusCreated, saleResponse{Record: res.Record, ID: res.RemoteID})
}
