package models

import "errors"

// ErrConfiguration marks a broken catalog or setup. It is fatal: fills stop
// immediately instead of retrying.
var ErrConfiguration = errors.New("configuration error")
