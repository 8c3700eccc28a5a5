package failure

import (
	"errors"
	"net/http"
)

// Failure is a wrapper for error messages and codes using standard HTTP response codes.
// Kind carries a machine-readable error identifier so API clients can branch on
// business-rule violations without parsing the message.
type Failure struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Kinds for state-conflict and validation failures surfaced by the engine.
const (
	KindPropertyNotAvailable    = "PROPERTY_NOT_AVAILABLE"
	KindPropertyOccupied        = "PROPERTY_OCCUPIED"
	KindNotPendingCheckin       = "NOT_PENDING_CHECKIN"
	KindNotCheckedIn            = "NOT_CHECKED_IN"
	KindAlreadyCheckedOut       = "ALREADY_CHECKED_OUT"
	KindAlreadyTerminal         = "ALREADY_TERMINAL"
	KindRentalNotActive         = "RENTAL_NOT_ACTIVE"
	KindOverpaymentRejected     = "OVERPAYMENT_REJECTED"
	KindDuplicatePayment        = "DUPLICATE_PAYMENT"
	KindPaymentRequired         = "PAYMENT_REQUIRED"
	KindUnsupportedRentalType   = "UNSUPPORTED_RENTAL_TYPE"
	KindInvalidDuration         = "INVALID_DURATION"
	KindCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
)

var InvalidPageParam = &Failure{Code: http.StatusBadRequest, Message: "invalid page parameter"}
var InvalidLimitParam = &Failure{Code: http.StatusBadRequest, Message: "invalid limit parameter"}

// Error returns the error message.
func (e *Failure) Error() string {
	return e.Message
}

// BadRequest returns a new Failure with code for bad requests.
func BadRequest(err error) error {
	if err != nil {
		return &Failure{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		}
	}

	return nil
}

// BadRequestFromString returns a new Failure with code for bad requests with message set from string.
func BadRequestFromString(msg string) error {
	return &Failure{
		Code:    http.StatusBadRequest,
		Message: msg,
	}
}

// Validation returns a new Failure for rejected input, tagged with a kind.
func Validation(kind, msg string) error {
	return &Failure{
		Code:    http.StatusBadRequest,
		Kind:    kind,
		Message: msg,
	}
}

// InternalError returns a new Failure with code for internal error and message derived from an error interface.
func InternalError(err error) error {
	if err != nil {
		return &Failure{
			Code:    http.StatusInternalServerError,
			Message: err.Error(),
		}
	}

	return nil
}

// NotFound returns a new Failure with code for entity not found.
func NotFound(entityName string) error {
	return &Failure{
		Code:    http.StatusNotFound,
		Message: entityName,
	}
}

// Conflict returns a new Failure for a business-rule violation. The current
// state is expected to be part of the message so callers can decide whether
// to retry or surface it.
func Conflict(kind, message string) error {
	return &Failure{
		Code:    http.StatusConflict,
		Kind:    kind,
		Message: message,
	}
}

// Unavailable returns a new Failure for an unreachable external collaborator.
func Unavailable(kind, message string) error {
	return &Failure{
		Code:    http.StatusServiceUnavailable,
		Kind:    kind,
		Message: message,
	}
}

// GetCode returns the error code of an error interface.
func GetCode(err error) int {
	var fail *Failure
	if errors.As(err, &fail) {
		return fail.Code
	}

	return http.StatusInternalServerError
}

// GetKind returns the machine-readable kind of an error interface, if any.
func GetKind(err error) string {
	var fail *Failure
	if errors.As(err, &fail) {
		return fail.Kind
	}

	return ""
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind string) bool {
	return GetKind(err) == kind
}
