package boot

import "errors"

var (
	// ErrMissingEnvironmentTag is returned when the instance carries no usable environment tag.
	ErrMissingEnvironmentTag = errors.New("no 'environment' tag found on the instance")
	// ErrTooManyPages is returned when the parameter store never reports a last page.
	ErrTooManyPages = errors.New("parameter store returned too many pages")
)
