// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package dlc

// ErrorKind identifies a kind of error that can be used to define new errors
// via const SomeError = dlc.ErrorKind("something").
type ErrorKind string

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// The set of failure classes exposed by this package. Wrap these with
// NewError for contextual detail, and match with errors.Is.
const (
	// ErrInvalidKey is returned when a public or private key is malformed,
	// off-curve, or otherwise unusable.
	ErrInvalidKey = ErrorKind("invalid key")

	// ErrInvalidSignature is returned when a signature or adaptor signature
	// fails verification or cannot be parsed.
	ErrInvalidSignature = ErrorKind("invalid signature")

	// ErrInvalidTxReference is returned when a transaction does not contain
	// an expected input or output, such as a funding input located by
	// outpoint that is not present.
	ErrInvalidTxReference = ErrorKind("transaction reference not found")

	// ErrInvalidArgument is returned for structurally invalid requests, for
	// instance mismatched list lengths or payouts that do not sum to the
	// collateral.
	ErrInvalidArgument = ErrorKind("invalid argument")

	// ErrSerialization is returned when encoding or decoding wire data
	// fails.
	ErrSerialization = ErrorKind("serialization error")

	// ErrCryptoOperation is returned when an elliptic curve operation fails,
	// e.g. a point addition yielding infinity.
	ErrCryptoOperation = ErrorKind("crypto operation failed")
)

// Error pairs an error with details.
type Error struct {
	wrapped error
	detail  string
}

// Error satisfies the error interface, combining the wrapped error message with
// the details.
func (e Error) Error() string {
	return e.wrapped.Error() + ": " + e.detail
}

// Unwrap returns the wrapped error, allowing errors.Is and errors.As to work.
func (e Error) Unwrap() error {
	return e.wrapped
}

// NewError wraps the provided Error with details in a Error, facilitating the
// use of errors.Is and errors.As via errors.Unwrap.
func NewError(err error, detail string) Error {
	return Error{
		wrapped: err,
		detail:  detail,
	}
}
