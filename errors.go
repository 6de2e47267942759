package enclookup

import (
	"errors"
	"fmt"
)

// ErrMalformedToken is wrapped by every decode failure. Callers should treat
// it as "lookup target does not exist".
var ErrMalformedToken = errors.New("enclookup: malformed token")

var (
	ErrEmptyToken     = fmt.Errorf("%w: empty", ErrMalformedToken)
	ErrNullToken      = fmt.Errorf("%w: absent", ErrMalformedToken)
	ErrTokenType      = fmt.Errorf("%w: not a string", ErrMalformedToken)
	ErrTokenAlignment = fmt.Errorf("%w: bad block alignment", ErrMalformedToken)
	ErrTokenEncoding  = fmt.Errorf("%w: invalid base32", ErrMalformedToken)
	ErrTokenPayload   = fmt.Errorf("%w: payload is not an integer", ErrMalformedToken)
)

// ErrOutOfDomain is returned by Encode when a value does not survive the
// round trip through the cipher.
var ErrOutOfDomain = errors.New("enclookup: value does not round-trip")

// ErrConfig marks configuration problems detected at startup.
var ErrConfig = errors.New("enclookup: invalid configuration")
