package executor

import "errors"

var (
	ErrPayloadConversion = errors.New("failed to convert goal payload")
)
