package service

import (
	"errors"

	"github.com/godilite/customer-intel/internal/query"
)

var (
	// ErrDataUnavailable means the aggregate views or predictions could not be read.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrPersistenceFailure means the prediction replace did not commit. The previous
	// prediction set is still in place.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrInvalidFilter      = query.ErrInvalidFilter
	ErrNotFound           = errors.New("not found")
)
