package txcodec

import "github.com/pkg/errors"

var (
	ErrMalformedTransaction = errors.New("malformed transaction")
	// ErrEncodingMode is returned when a signature and an unsigned chain id are both passed to Encode.
	ErrEncodingMode        = errors.New("signature and chain id are mutually exclusive")
	ErrIncompleteSignature = errors.New("signature recovery id not resolved")
	ErrRecovery            = errors.New("could not construct a recoverable key")
)
