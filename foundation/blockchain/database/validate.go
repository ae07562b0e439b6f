package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate holds the settings and caches for validating wire records.
var validate = validator.New(validator.WithRequiredStructEnabled())

// check runs the struct tags and reports every failing field as a
// malformed input.
func check(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}

	fields := make([]string, 0, len(verrors))
	for _, verror := range verrors {
		fields = append(fields, fmt.Sprintf("%s failed %s", verror.Namespace(), verror.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrMalformedInput, strings.Join(fields, ", "))
}
