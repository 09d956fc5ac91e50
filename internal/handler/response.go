package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers stay short:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "NotFoundError", "message": "card not found with id abc123"}
//
// The "error" field is the error KIND, so a client can switch on it without
// parsing messages.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/greeting-cards/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // error kind, e.g. "IllegalTransitionError"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input field, for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to its HTTP status code.
//
// This is the ONLY place that knows about both. Services return kinds;
// how a kind looks over HTTP is decided here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is() walks the whole chain, so this works no matter how many times
// the service wrapped the error:
//
//	service returns: fmt.Errorf("approve card abc: %w", apperror.IllegalTransition(...))
//	errors.Is walks: outer error → AppError → ErrIllegalTransition ✓ → 409
//
// Storage and unknown errors get a generic message. Their text can contain
// SQL or file paths, so the caller logs it and the client never sees it.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: apperror.Kind(err)}

	var appErr *apperror.AppError
	switch {
	case status == http.StatusInternalServerError:
		resp.Message = "an internal error occurred"
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	default:
		resp.Message = err.Error()
	}

	writeJSON(w, status, resp)
}

// HandleNotFound answers unmatched paths in the standard error format.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperror.NotFound("route", r.URL.Path))
}

// HandleMethodNotAllowed answers a known path called with the wrong method.
// There is no error kind for 405, so it goes out as InvalidOperationError
// with the HTTP status chi's router would have used.
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   apperror.Kind(apperror.ErrInvalidOperation),
		Message: r.Method + " is not supported on " + r.URL.Path,
	})
}

// =========================================================================
// REQUEST DECODING
// =========================================================================

// maxBodyBytes caps request bodies. Cards are text plus an image URL, so
// anything larger is not a card.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst.
//
// A malformed body is a ValidationError (400), the same kind the service
// would return for bad field values.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

// requestValidator checks request DTOs before they reach the service.
// validator.Validate caches struct metadata and is safe for concurrent use,
// so one instance serves every handler.
var requestValidator = newRequestValidator()

// newRequestValidator reports fields by their JSON name, so a client sees
// "recipientEmail" rather than the Go field name.
func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// validateRequest runs the `validate` struct tags on dst and turns the first
// failure into a ValidationError naming the JSON field.
func validateRequest(dst any) error {
	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("body", err.Error())
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, field+" is required")
	case "email":
		return apperror.ValidationFailed(field, field+" must be a valid email address")
	default:
		return apperror.ValidationFailed(field, field+" failed the "+fe.Tag()+" check")
	}
}
