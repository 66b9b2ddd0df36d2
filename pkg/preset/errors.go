package preset

import "errors"

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrNotFound     = errors.New("target not found")
	ErrTypeMismatch = errors.New("container type mismatch")
	ErrOutOfRange   = errors.New("index out of range")
	ErrNotBoolean   = errors.New("toggle target is not boolean and no boolean value given")
	ErrUnknownOp    = errors.New("unknown operation")
)
