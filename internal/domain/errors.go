package domain

import "errors"

var ErrInvalidRecord = errors.New("invalid error record")
