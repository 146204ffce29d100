package mapillary

import "errors"

// Failures reported by FindImage. All three are recoverable from the caller's
// point of view; they are kept distinct so callers can count or log them.
var (
	ErrNetwork   = errors.New("mapillary: network failure")
	ErrParse     = errors.New("mapillary: malformed response")
	ErrNoResults = errors.New("mapillary: no images in bounding box")
)
