// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// =============================================================================

// rejections maps every rejection reason to the name clients see and the
// status it is reported with. A conflict means the submission is well formed
// but collides with what the ledger already holds.
var rejections = []struct {
	err    error
	reason string
	status int
}{
	{database.ErrMalformedInput, "MalformedInput", http.StatusBadRequest},
	{database.ErrInvalidSignature, "InvalidSignature", http.StatusBadRequest},
	{database.ErrInvalidHash, "InvalidHash", http.StatusBadRequest},
	{database.ErrDuplicateEntry, "DuplicateEntry", http.StatusConflict},
	{database.ErrDuplicateOutputKey, "DuplicateOutputKey", http.StatusConflict},
	{database.ErrUnknownAncestor, "UnknownAncestor", http.StatusBadRequest},
	{database.ErrUnknownInput, "UnknownInput", http.StatusBadRequest},
	{database.ErrOriginMissing, "OriginMissing", http.StatusBadRequest},
	{database.ErrUnknownStarSystem, "UnknownStarSystem", http.StatusBadRequest},
	{database.ErrAlreadySpent, "AlreadySpent", http.StatusConflict},
	{database.ErrRuleViolation, "RuleViolation", http.StatusBadRequest},
	{database.ErrDifficultyMismatch, "DifficultyMismatch", http.StatusBadRequest},
	{database.ErrHeightMismatch, "HeightMismatch", http.StatusBadRequest},
}

// Reason returns the name of the rejection reason in the error chain.
func Reason(err error) string {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// RejectionStatus returns the HTTP status a rejection is reported with.
func RejectionStatus(err error) int {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.status
		}
	}
	return http.StatusInternalServerError
}
