package store

import (
	"strings"

	"github.com/adhocore/gronx"

	"github.com/nlbx/reqsched/internal/apperr"
)

// MaxNameLength is the longest user identifier ValidateUserID accepts.
const MaxNameLength = 255

// ValidateUserID checks that a user identifier does not exceed MaxNameLength.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return apperr.BadInput("user identifier must not be empty")
	}
	if len(id) > MaxNameLength {
		return apperr.BadInput("user identifier too long")
	}
	return nil
}

// ValidateMethod checks that method is one of ValidMethods (spec.md §3).
// An unsupported method is a schema-shaped rejection (spec.md §6 "422 bad
// method/schema"), not the 400 reserved for a bad cron expression.
func ValidateMethod(method string) error {
	if !ValidMethods[strings.ToUpper(method)] {
		return apperr.Validation("unsupported HTTP method: " + method)
	}
	return nil
}

// ValidateURL checks that u is an absolute http(s) URL. request_url and
// callback_url share this constraint (spec.md §3), and both are part of
// the request schema, so a violation is 422 like ValidateMethod's.
func ValidateURL(u string) error {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return apperr.Validation("url must start with http:// or https://")
	}
	if len(u) <= len("https://") {
		return apperr.Validation("url is empty")
	}
	return nil
}

var cronValidator = gronx.New()

// ValidateCron checks that expr is a well-formed five-field cron expression.
func ValidateCron(expr string) error {
	if !cronValidator.IsValid(expr) {
		return apperr.BadInput("invalid cron expression: " + expr)
	}
	return nil
}
