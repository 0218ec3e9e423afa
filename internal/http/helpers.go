package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"salestracker/internal/core"
)

// formatMoney formats an amount for display, e.g. "₹1,234.50".
func formatMoney(m core.Money) string {
	s := m.String()
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "₹" + b.String() + "." + frac
}

// barPercent scales v against peak as a rounded percentage of bar height.
// Non-zero values get at least 2 so they stay visible.
func barPercent(v, peak core.Money) int {
	if peak.Cents <= 0 || v.Cents <= 0 {
		return 0
	}
	pct := int((v.Cents*100 + peak.Cents/2) / peak.Cents)
	if pct < 2 {
		pct = 2
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

var templateFuncs = template.FuncMap{
	"money": formatMoney,
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string, fields ...string) {
	writeJSON(w, status, errorBody{Error: msg, Fields: fields})
}

// requireMethodJSON writes a 405 with Allow when the method is not listed.
func requireMethodJSON(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
