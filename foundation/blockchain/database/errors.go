package database

import (
	"errors"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
)

// Set of reasons a star log or event is rejected. Callers wrap these with
// detail and test for them with errors.Is.
var (
	ErrMalformedInput     = errors.New("malformed input")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidHash        = errors.New("invalid hash")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrDuplicateOutputKey = errors.New("duplicate output key")
	ErrUnknownAncestor    = errors.New("unknown ancestor")
	ErrUnknownInput       = errors.New("unknown input")
	ErrOriginMissing      = errors.New("origin missing")
	ErrUnknownStarSystem  = errors.New("unknown star system")
	ErrAlreadySpent       = errors.New("already spent")
	ErrRuleViolation      = errors.New("rule violation")
	ErrDifficultyMismatch = errors.New("difficulty mismatch")
	ErrHeightMismatch     = errors.New("height mismatch")
)

// ErrNotFound is returned by storage when a record doesn't exist.
var ErrNotFound = lineage.ErrNotFound

// IsRejection reports whether the error is one of the rejection reasons as
// opposed to a storage or programming failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMalformedInput, ErrInvalidSignature, ErrInvalidHash,
		ErrDuplicateEntry, ErrDuplicateOutputKey, ErrUnknownAncestor,
		ErrUnknownInput, ErrOriginMissing, ErrUnknownStarSystem,
		ErrAlreadySpent, ErrRuleViolation, ErrDifficultyMismatch,
		ErrHeightMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
