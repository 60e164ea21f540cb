package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput          = "APPROVALS_BAD_INPUT"
	ServiceErrorUnauthenticated   = "APPROVALS_UNAUTHENTICATED"
	ServiceErrorTransportFailure  = "APPROVALS_TRANSPORT_FAILURE"
	ServiceErrorFormatInvalid     = "APPROVALS_FORMAT_INVALID"
	ServiceErrorActionUnsupported = "APPROVALS_ACTION_UNSUPPORTED"
	ServiceErrorInternal          = "APPROVALS_INTERNAL_ERROR"
)

const maxBodyExcerpt = 512

// NewValidationError reports a missing or malformed correlation input. It is
// always raised before any network call.
func NewValidationError(field string, message string) error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// NewAuthenticationError reports that no usable credential exists for the
// subject. Callers cannot recover locally; the user has to re-authenticate.
func NewAuthenticationError(subjectID string, message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ServiceErrorUnauthenticated).
		WithMetadata(map[string]any{"subject_id": strings.TrimSpace(subjectID)})
}

// NewTransportError reports a non-success upstream response.
func NewTransportError(statusCode int, body []byte, metadata map[string]any) error {
	excerpt := BodyExcerpt(body)
	message := fmt.Sprintf("upstream responded with HTTP %d %s", statusCode, http.StatusText(statusCode))
	if excerpt != "" {
		message += ": " + excerpt
	}
	code := statusCode
	if code < 400 {
		code = http.StatusBadGateway
	}
	fields := cloneFields(metadata)
	fields["status_code"] = statusCode
	fields["body_excerpt"] = excerpt
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(code).
		WithTextCode(ServiceErrorTransportFailure).
		WithMetadata(fields)
}

// WrapTransportError reports a network level failure (no response received).
func WrapTransportError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return nil
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorTransportFailure)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewFormatError reports a successful response that lacks an expected field.
func NewFormatError(field string, message string) error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorFormatInvalid).
		WithMetadata(map[string]any{"field": strings.TrimSpace(field)})
}

func NewUnsupportedActionError(backend string, kind ActionKind) error {
	return goerrors.New(
		fmt.Sprintf("action %s not supported by %s adapter", strings.TrimSpace(string(kind)), backend),
		goerrors.CategoryOperation,
	).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ServiceErrorActionUnsupported).
		WithMetadata(map[string]any{"backend": backend, "action": string(kind)})
}

func IsValidationError(err error) bool {
	return hasTextCode(err, ServiceErrorBadInput)
}

func IsAuthenticationError(err error) bool {
	return hasTextCode(err, ServiceErrorUnauthenticated)
}

func IsTransportError(err error) bool {
	return hasTextCode(err, ServiceErrorTransportFailure)
}

func IsFormatError(err error) bool {
	return hasTextCode(err, ServiceErrorFormatInvalid)
}

func IsUnsupportedActionError(err error) bool {
	return hasTextCode(err, ServiceErrorActionUnsupported)
}

// IsAuthFailure classifies an upstream error as a session rejection: an HTTP
// 401 or an "unauthorized" marker in the message. A locally raised
// AuthenticationError is never an auth failure; refreshing cannot fix it.
func IsAuthFailure(err error) bool {
	if err == nil || IsAuthenticationError(err) {
		return false
	}
	if TransportStatus(err) == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "http 401")
}

// TransportStatus returns the upstream status carried by a TransportError, or 0.
func TransportStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return 0
	}
	switch status := richErr.Metadata["status_code"].(type) {
	case int:
		return status
	case int64:
		return int(status)
	case float64:
		return int(status)
	}
	return 0
}

func BodyExcerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxBodyExcerpt {
		return text
	}
	return text[:maxBodyExcerpt] + "..."
}

func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not supported"):
		return newServiceError(err.Error(), goerrors.CategoryOperation, ServiceErrorActionUnsupported)
	case strings.Contains(msg, "token expired"), strings.Contains(msg, "re-authenticate"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ServiceErrorUnauthenticated)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "missing"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthenticated
	case goerrors.CategoryExternal:
		return ServiceErrorTransportFailure
	case goerrors.CategoryOperation:
		return ServiceErrorActionUnsupported
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError exposes the service error envelope to outer layers.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}
