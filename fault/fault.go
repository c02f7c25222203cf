// Package fault defines the typed failure taxonomy shared by every stage of
// the discovery pipeline. Failures carry a Kind assigned where they happen, so
// callers branch on the kind rather than on message text.
package fault

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/cockroachdb/errors"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionUnavailable
	KindNavigationExhausted
	KindElementTimeout
	KindExtractionRow
	KindProbeFailure
	KindDownloadRejected
	KindDownloadTransport
	KindStatsUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSessionUnavailable:
		return "session_unavailable"
	case KindNavigationExhausted:
		return "navigation_exhausted"
	case KindElementTimeout:
		return "element_timeout"
	case KindExtractionRow:
		return "extraction_row"
	case KindProbeFailure:
		return "probe_failure"
	case KindDownloadRejected:
		return "download_rejected"
	case KindDownloadTransport:
		return "download_transport"
	case KindStatsUnavailable:
		return "stats_unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Terminal reports whether a failure of this kind ends a run with an empty
// result.
func (k Kind) Terminal() bool {
	return k == KindSessionUnavailable || k == KindNavigationExhausted || k == KindInternal
}

// Error is a failure tagged with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New tags err with kind. The returned error carries a stack trace.
func New(kind Kind, op string, err error) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Err: err})
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) error {
	return New(kind, op, errors.Newf(format, args...))
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Transport classifies the network cause beneath a failure.
type Transport int

const (
	TransportNone Transport = iota
	TransportTimeout
	TransportConnection
	TransportOther
)

func (t Transport) String() string {
	switch t {
	case TransportTimeout:
		return "timeout"
	case TransportConnection:
		return "connection"
	case TransportOther:
		return "other"
	default:
		return "none"
	}
}

// TransportOf inspects the types in err's chain to decide whether it was a
// timeout, a connection failure or something else.
func TransportOf(err error) Transport {
	if err == nil {
		return TransportNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return TransportConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransportConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportConnection
	}

	return TransportOther
}

// Truncate shortens s to at most n runes for log output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Message returns err's text truncated to n runes, or "" for nil.
func Message(err error, n int) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error(), n)
}
