package identity

import (
	stderrors "errors"
	"net/http"
	"runtime/debug"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorDetail is one entry in the errors list of an APIError, usually one
// offending field.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// APIError is the uniform error contract we expose to transport layers:
// a status code, a human message, success pinned to false, optional
// per-field details, and an optional stack trace for non-production use.
type APIError struct {
	StatusCode int           `json:"status_code"`
	Message    string        `json:"message"`
	Success    bool          `json:"success"`
	TextCode   string        `json:"text_code,omitempty"`
	Errors     []ErrorDetail `json:"errors,omitempty"`
	Stack      string        `json:"stack,omitempty"`
}

// Error satisfies the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// PrettyJSON renders the error for debug logging.
func (e *APIError) PrettyJSON() string {
	return print.MaybePrettyJSON(e)
}

// APIErrorOption customizes APIError construction.
type APIErrorOption func(*APIError)

// WithStackTrace attaches the current stack. Meant for development
// environments; production responses should leave the stack out.
func WithStackTrace() APIErrorOption {
	return func(e *APIError) {
		e.Stack = string(debug.Stack())
	}
}

// ToAPIError translates any internal failure into the uniform response
// shape. Rich errors keep their category-derived status, text code, and
// field details; everything else becomes a 500.
func ToAPIError(err error, opts ...APIErrorOption) *APIError {
	if err == nil {
		return nil
	}

	out := &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Something went wrong",
		Success:    false,
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		out.Message = richErr.Message
		out.TextCode = richErr.TextCode
		out.StatusCode = statusFromRichError(richErr)
	} else {
		out.Message = err.Error()
	}

	out.Errors = detailsFromError(err)

	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}

	return out
}

func statusFromRichError(err *goerrors.Error) int {
	if err.Code > 0 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// detailsFromError flattens ozzo validation errors into per-field details so
// clients can highlight the offending inputs.
func detailsFromError(err error) []ErrorDetail {
	var verrs validation.Errors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}

	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]ErrorDetail, 0, len(fields))
	for _, field := range fields {
		details = append(details, ErrorDetail{
			Field:   field,
			Message: verrs[field].Error(),
		})
	}

	return details
}
