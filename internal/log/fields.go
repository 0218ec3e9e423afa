package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldRecordID    = "id"
	FieldLocalID     = "local_id"
	FieldSaleDate    = "date"
	FieldCashCents   = "cash_cents"
	FieldOnlineCents = "online_cents"
	FieldQueued      = "queued"
	FieldPending     = "pending"
	FieldPeriod      = "period"
	FieldView        = "view"
	FieldState       = "state"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentSales        = "sales"
	ComponentDashboard    = "dashboard"
	ComponentSync         = "sync"
	ComponentQueue        = "queue"
	ComponentConnectivity = "connectivity"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentCache        = "cache"
	ComponentBackend      = "backend"
	ComponentExport       = "export"
	ComponentTemplate     = "template"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpReplay   = "replay"
	OpList     = "list"
	OpFlush    = "flush"
	OpChart    = "chart"
	OpExport   = "export"
	OpRender   = "render"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeUnavailable   = "unavailable_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSale adds the identifying fields of a sale. Amounts are logged in
// cents so they can be summed from logs.
func (f LogFields) WithSale(date string, cashCents, onlineCents int64) LogFields {
	f[FieldSaleDate] = date
	f[FieldCashCents] = cashCents
	f[FieldOnlineCents] = onlineCents
	return f
}

// WithChart adds the chart selection fields.
func (f LogFields) WithChart(period, view string) LogFields {
	f[FieldPeriod] = period
	f[FieldView] = view
	return f
}

// ToSlice converts LogFields to a slice for slog, skipping the component
// key, which the Logger already carries.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
