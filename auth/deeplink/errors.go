package deeplink

import "errors"

// Decode failures, one per stage of the deep-link pipeline so callers can
// surface the exact reason a link was rejected.
var (
	ErrBadFormat = errors.New("invalid deeplink format")
	ErrURLDecode = errors.New("failed to URL decode payload")
	ErrBase64    = errors.New("failed to base64 decode payload")
	ErrEncoding  = errors.New("payload is not valid UTF-8")
	ErrJSON      = errors.New("failed to parse payload JSON")
	ErrExpired   = errors.New("token has expired")
)
