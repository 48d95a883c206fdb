package verify

// ErrorKind is the lower-snake error taxonomy of spec.md §7, typed rather
// than stringly-used so callers can switch exhaustively while the wire
// format still serializes the canonical tag.
type ErrorKind string

const (
	ErrNone ErrorKind = ""

	// DNS layer
	ErrDNSError     ErrorKind = "dns_error"
	ErrNoMXRecord   ErrorKind = "no_mx_record"

	// SMTP layer
	ErrConnectionError  ErrorKind = "connection_error"
	ErrTimeoutError     ErrorKind = "timeout_error"
	ErrGreetingError    ErrorKind = "greeting_error"
	ErrHeloError        ErrorKind = "helo_error"
	ErrMailFromError    ErrorKind = "mail_from_error"
	ErrRcptToError      ErrorKind = "rcpt_to_error"
	ErrMailboxNotFound  ErrorKind = "mailbox_not_found"
	ErrCatchAllDetected ErrorKind = "catch_all_detected"
	ErrUnknownError     ErrorKind = "unknown_error"

	// Input layer
	ErrFormatError ErrorKind = "format_error"
	ErrDisposable  ErrorKind = "disposable"

	// System
	ErrSystemError       ErrorKind = "system_error"
	ErrRateLimitExceeded ErrorKind = "rate_limit_exceeded"
)

// String renders the canonical lower-snake tag.
func (e ErrorKind) String() string { return string(e) }
