package errors

import "net/http"

type ZapErrorType int

const (
	UnknownError ZapErrorType = iota
	InvalidRequestError
)

// zap request validation
const (
	ZapParseError ZapErrorType = 1000 + iota
	IdentityMismatchError
	InvalidSignatureError
	AmountMismatchError
	RecipientMismatchError
	MalformedTagsError
	MissingReferenceError
)

// pay request
const (
	UnknownRecipientError ZapErrorType = 2000 + iota
	AmountOutOfBoundsError
	CommentTooLongError
	RateLimitedError
	UnauthorizedError
)

// backend and internal failures
const (
	BackendFailureError ZapErrorType = 3000 + iota
	InvariantViolationError
	PublishFailureError
)

var typeNames = map[ZapErrorType]string{
	UnknownError:            "UnknownError",
	InvalidRequestError:     "InvalidRequest",
	ZapParseError:           "ParseError",
	IdentityMismatchError:   "IdentityMismatch",
	InvalidSignatureError:   "InvalidSignature",
	AmountMismatchError:     "AmountMismatch",
	RecipientMismatchError:  "RecipientMismatch",
	MalformedTagsError:      "MalformedTags",
	MissingReferenceError:   "MissingReference",
	UnknownRecipientError:   "UnknownRecipient",
	AmountOutOfBoundsError:  "AmountOutOfBounds",
	CommentTooLongError:     "CommentTooLong",
	RateLimitedError:        "RateLimited",
	UnauthorizedError:       "Unauthorized",
	BackendFailureError:     "BackendFailure",
	InvariantViolationError: "InvariantViolation",
	PublishFailureError:     "PublishFailure",
}

func (t ZapErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return typeNames[UnknownError]
}

// ProtocolViolation reports whether t is a failure of a zap-shaped request
// that parsed but broke an identity, signature or tag binding rule.
func (t ZapErrorType) ProtocolViolation() bool {
	return t > ZapParseError && t <= MissingReferenceError
}

// Status maps an error type to the HTTP status returned to the caller.
func (t ZapErrorType) Status() int {
	switch {
	case t == UnknownRecipientError:
		return http.StatusNotFound
	case t == RateLimitedError:
		return http.StatusTooManyRequests
	case t == UnauthorizedError:
		return http.StatusUnauthorized
	case t == InvalidRequestError, t == ZapParseError, t.ProtocolViolation(),
		t == AmountOutOfBoundsError, t == CommentTooLongError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Internal reports whether the error detail must stay out of user responses
// unless the deployment runs in debug mode.
func (t ZapErrorType) Internal() bool {
	return t.Status() >= http.StatusInternalServerError
}
