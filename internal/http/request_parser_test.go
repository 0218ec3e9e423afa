package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"salestracker/internal/core"
)

func TestParseChartQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantErr   error
		period    core.Period
		view      core.ValueView
		wantMonth string
		wantEnd   string
	}{
		{name: "defaults", query: "", period: core.Daily, view: core.ViewTotal},
		{name: "weekly cash", query: "period=weekly&view=cash", period: core.Weekly, view: core.ViewCash},
		{name: "case insensitive", query: "period=MONTHLY&view=Online", period: core.Monthly, view: core.ViewOnline},
		{name: "month anchor", query: "period=monthly&month=2024-02", period: core.Monthly, view: core.ViewTotal, wantMonth: "2024-02"},
		{name: "end anchor", query: "period=weeks&end=2024-03-06", period: core.Weeks, view: core.ViewTotal, wantEnd: "2024-03-06"},
		{name: "bad period", query: "period=yearly", wantErr: core.ErrInvalidPeriod},
		{name: "bad view", query: "view=net", wantErr: core.ErrInvalidView},
		{name: "bad month", query: "month=2024-13", wantErr: core.ErrInvalidMonth},
		{name: "bad end", query: "end=06/03/2024", wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			q, err := ParseChartQuery(values)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Period != tt.period || q.View != tt.view {
				t.Errorf("got %s/%s, want %s/%s", q.Period, q.View, tt.period, tt.view)
			}
			if tt.wantMonth != "" && q.Month.String() != tt.wantMonth {
				t.Errorf("Month = %s, want %s", q.Month, tt.wantMonth)
			}
			if tt.wantMonth == "" && q.Month != (core.YearMonth{}) {
				t.Errorf("Month = %s, want unset", q.Month)
			}
			if tt.wantEnd != "" && q.End.String() != tt.wantEnd {
				t.Errorf("End = %s, want %s", q.End, tt.wantEnd)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"date": "2024-03-06", "cashAmount": 150, "onlineAmount": "75.25", "notes": "market day"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	in := parser.SaleInput()
	want := core.SaleInput{Date: "2024-03-06", Cash: "150", Online: "75.25", Notes: "market day"}
	if in != want {
		t.Errorf("SaleInput() = %+v, want %+v", in, want)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "date=2024-03-06&cashAmount=12.5&onlineAmount=&notes=rainy+day"
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("notes"); got != "rainy day" {
		t.Errorf("Get('notes') = %q, want 'rainy day'", got)
	}
	if got := parser.Get("onlineAmount"); got != "" {
		t.Errorf("Get('onlineAmount') = %q, want empty", got)
	}
}

func TestRequestBodyParser_SanitizesControlCharacters(t *testing.T) {
	body := `{"notes": "  line one\nline\u0007 two  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("notes"); got != "line one\nline two" {
		t.Errorf("Get('notes') = %q", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(`{"date": `))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() should fail on truncated JSON")
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := `{"notes": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() should fail when the body exceeds the limit")
	}
}

func TestValidateSale(t *testing.T) {
	s := &Server{validate: newValidator()}

	tests := []struct {
		name      string
		in        core.SaleInput
		wantField string
	}{
		{name: "valid", in: core.SaleInput{Date: "2024-03-06", Cash: "abc"}},
		{name: "empty date allowed", in: core.SaleInput{}},
		{name: "bad date", in: core.SaleInput{Date: "2024-3-6"}, wantField: "date must be a date"},
		{name: "long notes", in: core.SaleInput{Notes: strings.Repeat("n", 501)}, wantField: "notes must be at most 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.validateSale(tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if len(ve.Fields) != 1 || !strings.HasPrefix(ve.Fields[0], tt.wantField) {
				t.Errorf("Fields = %v, want prefix %q", ve.Fields, tt.wantField)
			}
		})
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"HEAD allowed with multiple", http.MethodHead, []string{http.MethodGet, http.MethodHead}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "₹0.00"},
		{5, "₹0.05"},
		{15000, "₹150.00"},
		{123450, "₹1,234.50"},
		{123456789, "₹1,234,567.89"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestBarPercent(t *testing.T) {
	peak := core.Money{Cents: 10000}
	tests := []struct {
		v    int64
		want int
	}{
		{0, 0},
		{10000, 100},
		{5000, 50},
		{10, 2},
	}
	for _, tt := range tests {
		if got := barPercent(core.Money{Cents: tt.v}, peak); got != tt.want {
			t.Errorf("barPercent(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
	if got := barPercent(core.Money{Cents: 5}, core.Money{}); got != 0 {
		t.Errorf("barPercent with zero peak = %d, want 0", got)
	}
}

func TestChartCacheKey_ChangesWithSnapshot(t *testing.T) {
	q, _ := ParseChartQuery(url.Values{"period": {"daily"}})
	today := core.NewDate(2024, time.March, 6)
	t1 := time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

	a := chartCacheKey(q, snapshotAt(t1), today)
	b := chartCacheKey(q, snapshotAt(t1.Add(time.Minute)), today)
	if a == b {
		t.Fatalf("key did not change with a new snapshot: %s", a)
	}
	c := chartCacheKey(q, snapshotAt(t1), today.AddDays(1))
	if a == c {
		t.Fatalf("key did not change with the day: %s", a)
	}
}
