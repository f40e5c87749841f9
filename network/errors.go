package network

import "errors"

// ErrMalformed marks an inbound frame that could not be decoded.
var ErrMalformed = errors.New("malformed frame")
