package common

import (
	"errors"
	"fmt"
)

// Binance error codes the engine treats as permanent. A permanent failure
// means retrying the same request will not help; the caller should abandon
// the transition instead of backing off.
const (
	CodeInvalidSymbol        = -1121
	CodePrecisionOverMax     = -1111
	CodeMandatoryParam       = -1102
	CodeInvalidAPIKey        = -2014
	CodeInsufficientMargin   = -2019
	CodeReduceOnlyRejected   = -2022
	CodeNotionalBelowMinimum = -4164
	CodeNoNeedToChangeMargin = -4046
)

// APIError is a structured error returned by the exchange REST API.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Permanent reports whether retrying the same request is pointless.
func (e *APIError) Permanent() bool {
	switch e.Code {
	case CodeInvalidSymbol, CodePrecisionOverMax, CodeMandatoryParam,
		CodeInvalidAPIKey, CodeInsufficientMargin, CodeReduceOnlyRejected,
		CodeNotionalBelowMinimum:
		return true
	}
	// 4xx other than 429 means the request itself is malformed.
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500 && e.HTTPStatus != 429
}

// IsPermanent reports whether err carries a permanent exchange failure.
// Network errors and unknown failures count as transient.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Permanent()
	}
	return false
}

// IsCode reports whether err is an APIError with the given exchange code.
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
