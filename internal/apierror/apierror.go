// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Stable machine-readable codes. Clients switch on Code, never on Detail.
const (
	CodeValidacion           = "VALIDATION_ERROR"
	CodeJSONInvalido         = "INVALID_JSON"
	CodeNoEncontrado         = "NOT_FOUND"
	CodeStockInsuficiente    = "INSUFFICIENT_STOCK"
	CodeParcialInsuficiente  = "INSUFFICIENT_PARTIAL_STOCK"
	CodeSerialNoDisponible   = "SERIAL_UNAVAILABLE"
	CodeSerialRequerido      = "MISSING_SERIAL"
	CodeSerialDuplicado      = "DUPLICATE_SERIAL"
	CodeDescuentoInvalido    = "INVALID_DISCOUNT"
	CodeTransaccionDuplicada = "DUPLICATE_TRANSACTION"
	CodeYaAnulada            = "ALREADY_VOIDED"
	CodeVentaAnulada         = "SALE_VOIDED"
	CodeNoAutorizado         = "UNAUTHORIZED"
	CodeProhibido            = "FORBIDDEN"
	CodeLimite               = "RATE_LIMITED"
	CodeInterno              = "INTERNAL_ERROR"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func NewCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Code: CodeValidacion, Fields: fields}
}
