package models

import "errors"

// ErrInvalidArgument is returned for inputs the core refuses to evaluate:
// unknown scenario ids, out-of-range pivot days and non-finite readings.
var ErrInvalidArgument = errors.New("invalid argument")
