// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared; validator caches struct metadata per type
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks v against its `validate` struct tags
func Validate(v any) error {
	return validate.Struct(v)
}
