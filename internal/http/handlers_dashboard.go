package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"salestracker/internal/core"
	"salestracker/internal/export"
	applog "salestracker/internal/log"
	"salestracker/internal/services"
)

const chartTimeout = 15 * time.Second

type option struct {
	Value    string
	Label    string
	Selected bool
}

func periodOptions(selected core.Period) []option {
	periods := []struct {
		p     core.Period
		label string
	}{
		{core.Daily, "Daily"},
		{core.Weekly, "Weekly"},
		{core.Weeks, "By week"},
		{core.Monthly, "Monthly"},
	}
	opts := make([]option, 0, len(periods))
	for _, p := range periods {
		opts = append(opts, option{Value: string(p.p), Label: p.label, Selected: p.p == selected})
	}
	return opts
}

func viewOptions(selected core.ValueView) []option {
	views := []struct {
		v     core.ValueView
		label string
	}{
		{core.ViewTotal, "Total"},
		{core.ViewCash, "Cash"},
		{core.ViewOnline, "Online"},
	}
	opts := make([]option, 0, len(views))
	for _, v := range views {
		opts = append(opts, option{Value: string(v.v), Label: v.label, Selected: v.v == selected})
	}
	return opts
}

type barView struct {
	Date    string
	Label   string
	Value   string
	Cash    string
	Online  string
	Total   string
	Percent int
	Empty   bool
}

type chartView struct {
	Result    services.ChartResult
	Bars      []barView
	Value     string
	Cash      string
	Online    string
	Total     string
	Periods   []option
	Views     []option
	ExportURL template.URL
}

func newChartView(res services.ChartResult, q services.ChartQuery) chartView {
	var peak core.Money
	for _, p := range res.Points {
		if v := p.Value(res.View); v.Cents > peak.Cents {
			peak = v
		}
	}
	v := chartView{
		Result:    res,
		Value:     formatMoney(res.Summary.Value),
		Cash:      formatMoney(res.Summary.Cash),
		Online:    formatMoney(res.Summary.Online),
		Total:     formatMoney(res.Summary.Total),
		Periods:   periodOptions(res.Period),
		Views:     viewOptions(res.View),
		ExportURL: exportURL(q),
	}
	for _, p := range res.Points {
		val := p.Value(res.View)
		v.Bars = append(v.Bars, barView{
			Date:    p.Date,
			Label:   p.Label,
			Value:   formatMoney(val),
			Cash:    formatMoney(p.Cash),
			Online:  formatMoney(p.Online),
			Total:   formatMoney(p.Total),
			Percent: barPercent(val, peak),
			Empty:   val.IsZero(),
		})
	}
	return v
}

// exportURL links the workbook download for the same query as the chart.
func exportURL(q services.ChartQuery) template.URL {
	v := url.Values{}
	v.Set("period", string(q.Period))
	v.Set("view", string(q.View))
	if q.Month != (core.YearMonth{}) {
		v.Set("month", q.Month.String())
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.String())
	}
	return template.URL("/api/sales/export.xlsx?" + v.Encode())
}

// loadChart parses the query and builds the chart. Bad parameters come
// back as *badQueryError.
func (s *Server) loadChart(ctx context.Context, r *http.Request) (services.ChartQuery, services.ChartResult, error) {
	q, err := ParseChartQuery(r.URL.Query())
	if err != nil {
		return q, services.ChartResult{}, &badQueryError{err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, chartTimeout)
	defer cancel()

	res, err := s.chart(ctx, q)
	if err != nil {
		if isQueryError(err) {
			return q, res, &badQueryError{err: err}
		}
		return q, res, err
	}
	return q, res, nil
}

type badQueryError struct{ err error }

func (e *badQueryError) Error() string { return e.err.Error() }
func (e *badQueryError) Unwrap() error { return e.err }

func isQueryError(err error) bool {
	return errors.Is(err, core.ErrInvalidPeriod) ||
		errors.Is(err, core.ErrInvalidView) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidMonth) ||
		errors.Is(err, core.ErrInvalidWindow)
}

// handleChartPartial renders the chart for htmx.
func (s *Server) handleChartPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q, res, err := s.loadChart(r.Context(), r)
	if err != nil {
		var bq *badQueryError
		if errors.As(err, &bq) {
			BadRequestError(bq.Error()).Write(w)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Chart build failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpChart)
		InternalServerError("Error loading chart").Write(w)
		return
	}
	s.render(w, r, "chart.html", newChartView(res, q))
}

// handleChartAPI returns the chart series as JSON.
func (s *Server) handleChartAPI(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	_, res, err := s.loadChart(r.Context(), r)
	if err != nil {
		var bq *badQueryError
		if errors.As(err, &bq) {
			writeJSONError(w, http.StatusBadRequest, bq.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Chart build failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpChart)
		writeJSONError(w, http.StatusInternalServerError, "chart unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExport streams the chart series and its records as an xlsx
// workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethodJSON(w, r, http.MethodGet) {
		return
	}
	q, res, err := s.loadChart(r.Context(), r)
	if err != nil {
		var bq *badQueryError
		if errors.As(err, &bq) {
			writeJSONError(w, http.StatusBadRequest, bq.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "chart unavailable")
		return
	}

	wb := export.Workbook{
		Title:   res.Label,
		Points:  res.Points,
		Summary: res.Summary,
		Records: export.RecordsIn(res.Period, res.Points, s.deps.Dashboard.Snapshot().Records),
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, wb); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Workbook export failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpExport)
		writeJSONError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.appMetrics.exports.Add(1)

	key := exportKey(q, res)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(res.Period, key)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// exportKey names the range of an export: the month for the monthly view,
// the last bucket otherwise.
func exportKey(q services.ChartQuery, res services.ChartResult) string {
	if res.Period == core.Monthly && len(res.Points) > 0 {
		if d, err := core.ParseDate(res.Points[0].Date); err == nil {
			return d.YearMonth().String()
		}
	}
	if len(res.Points) > 0 {
		return res.Points[len(res.Points)-1].Date
	}
	return string(q.Period)
}
