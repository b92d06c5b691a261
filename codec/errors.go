package codec

import "errors"

// ErrInvalidIdentifier is returned by Decode/Generate on a malformed or
// checksum-failing identifier. Callers at the maggtomic API boundary wrap
// this into maggtomic.ErrInvalidIdentifier.
var ErrInvalidIdentifier = errors.New("codec: invalid identifier")
