package txmsg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a session failure. Every kind except the fee warning (which
// is not an error) is fatal to the session.
type Kind uint8

const (
	KindSigning   Kind = iota + 1 // Protocol or pass-to-pass consistency violation
	KindMultisig                  // Fingerprint mismatch or malformed cosigner set
	KindAddress                   // Unresolvable script or address
	KindFee                       // Negative fee, overflow, dust, fee rate below minimum
	KindDigest                    // Digest builder misuse or missing data
	KindProcess                   // Message received in the wrong phase
	KindCancelled                 // User declined a confirmation or host cancelled
)

func (k Kind) String() string {
	switch k {
	case KindSigning:
		return "signing"
	case KindMultisig:
		return "multisig"
	case KindAddress:
		return "address"
	case KindFee:
		return "fee"
	case KindDigest:
		return "digest"
	case KindProcess:
		return "process"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by a signing session.
type Error struct {
	Kind    Kind   // Error family
	Code    string // Error code (e.g., ErrTampered, ErrFeeOverflow)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError returns an Error without an underlying cause.
func NewError(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns an Error carrying cause.
func WrapError(kind Kind, code string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsError extracts the session error from err. Errors that are not tagged are
// reported as KindSigning so that nothing escapes the taxonomy.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindSigning, Code: ErrInternal, Message: "unclassified failure", Cause: err}
}

// KindOf returns the kind of err, or 0 when err is nil.
func KindOf(err error) Kind {
	if e := AsError(err); e != nil {
		return e.Kind
	}
	return 0
}

// Error codes used throughout the signing engine.
//
// The code is the only part of a failure the host ever sees.
const (
	ErrInternal          = "INTERNAL"            // Unclassified failure
	ErrInvalidInput      = "INVALID_INPUT"       // Input data is invalid or malformed
	ErrInvalidOutput     = "INVALID_OUTPUT"      // Output data is invalid or malformed
	ErrTampered          = "TAMPERED"            // Re-disclosed data differs from the first pass
	ErrPrevTxMismatch    = "PREV_TX_MISMATCH"    // Streamed previous transaction does not hash to prev_hash
	ErrUnsupportedCoin   = "UNSUPPORTED_COIN"    // Coin is not in the table
	ErrUnsupportedScript = "UNSUPPORTED_SCRIPT"  // Script type not supported by the coin
	ErrInvalidAddress    = "INVALID_ADDRESS"     // Address format is invalid or unsupported
	ErrNotAMember        = "NOT_A_MEMBER"        // Our key is missing from the cosigner set
	ErrMultisigMalformed = "MULTISIG_MALFORMED"  // Cosigner set violates size constraints
	ErrMultisigMismatch  = "MULTISIG_MISMATCH"   // Fingerprint differs from the first one seen
	ErrFeeOverflow       = "FEE_OVERFLOW"        // 64-bit amount overflow
	ErrNotEnoughFunds    = "NOT_ENOUGH_FUNDS"    // Outputs exceed inputs
	ErrFeeTooLow         = "FEE_TOO_LOW"         // Fee rate below the coin minimum
	ErrDustOutput        = "DUST_OUTPUT"         // Output below the dust limit
	ErrDigestState       = "DIGEST_STATE"        // Builder used out of order
	ErrDigestData        = "DIGEST_DATA"         // Data required by the digest family is absent
	ErrKeyDerivation     = "KEY_DERIVATION"      // Keychain failed to derive a key
	ErrUnexpectedMessage = "UNEXPECTED_MESSAGE"  // Ack type not expected in the current phase
	ErrSessionActive     = "SESSION_ACTIVE"      // SignTx received while a session is running
	ErrCancelled         = "ACTION_CANCELLED"    // User or host cancelled
	ErrInvalidSignature  = "INVALID_SIGNATURE"   // Produced signature does not verify
)
