package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

const internalServerError = "Internal Server Error"

func New(code ZapErrorType, err error) ZapError {
	return ZapError{Err: err, Message: err.Error(), Code: code}
}

// Newf builds an error whose message is the stable, user-facing reason.
func Newf(code ZapErrorType, format string, args ...interface{}) ZapError {
	return New(code, fmt.Errorf(format, args...))
}

// Wrap keeps message as the user-facing reason and err as internal detail.
func Wrap(code ZapErrorType, message string, err error) ZapError {
	return ZapError{Err: err, Message: message, Code: code}
}

type ZapError struct {
	Message string       `json:"message"`
	Err     error        `json:"-"`
	Code    ZapErrorType `json:"code"`
}

func (e ZapError) Error() string {
	j, err := json.Marshal(struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
		Detail  string `json:"detail,omitempty"`
	}{e.Message, e.Code.String(), e.detail()})
	if err != nil {
		return e.Message
	}
	return string(j)
}

func (e ZapError) Unwrap() error {
	return e.Err
}

// Is matches any ZapError carrying the same code, so callers can compare
// against the sentinel values below with errors.Is.
func (e ZapError) Is(target error) bool {
	var t ZapError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Reason is the string written into LNURL error responses. Internal
// failures hide their detail unless debug is set.
func (e ZapError) Reason(debug bool) string {
	if debug {
		if d := e.detail(); d != "" {
			return fmt.Sprintf("<%s>: %s (%s)", e.Code, e.Message, d)
		}
		return fmt.Sprintf("<%s>: %s", e.Code, e.Message)
	}
	if e.Code.Internal() {
		return internalServerError
	}
	return e.Message
}

func (e ZapError) detail() string {
	if e.Err == nil || e.Err.Error() == e.Message {
		return ""
	}
	return e.Err.Error()
}

// Code returns the ZapErrorType of err, or UnknownError if err does not
// carry one.
func Code(err error) ZapErrorType {
	var zerr ZapError
	if stderrors.As(err, &zerr) {
		return zerr.Code
	}
	return UnknownError
}

// Reason returns the user-facing reason for any error.
func Reason(err error, debug bool) string {
	var zerr ZapError
	if stderrors.As(err, &zerr) {
		return zerr.Reason(debug)
	}
	if debug {
		return fmt.Sprintf("<%T>: %s", err, err)
	}
	return internalServerError
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

var (
	ErrParse              = ZapError{Message: "malformed zap request", Code: ZapParseError}
	ErrIdentityMismatch   = ZapError{Message: "event id mismatch", Code: IdentityMismatchError}
	ErrInvalidSignature   = ZapError{Message: "Invalid signature on event", Code: InvalidSignatureError}
	ErrAmountMismatch     = ZapError{Message: "Amount does not match", Code: AmountMismatchError}
	ErrRecipientMismatch  = ZapError{Message: "Recipient pubkey doesn't match expected value", Code: RecipientMismatchError}
	ErrMalformedTags      = ZapError{Message: "malformed tags", Code: MalformedTagsError}
	ErrMissingReference   = ZapError{Message: "No 'e' tag in Zap Request", Code: MissingReferenceError}
	ErrUnknownRecipient   = ZapError{Message: "Unknown user", Code: UnknownRecipientError}
	ErrAmountOutOfBounds  = ZapError{Message: "amount out of bounds", Code: AmountOutOfBoundsError}
	ErrBackendFailure     = ZapError{Message: "backend failure", Code: BackendFailureError}
	ErrInvariantViolation = ZapError{Message: "invariant violation", Code: InvariantViolationError}
	ErrPublishFailure     = ZapError{Message: "publish failure", Code: PublishFailureError}
)
