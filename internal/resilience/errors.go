package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Error types recorded on skip records.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// transientPatterns match network failures as reported by net/http and by
// git's stderr.
var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"connection timed out",
	"broken pipe",
	"temporary failure in name resolution",
	"could not resolve host",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"early eof",
	"the remote end hung up unexpectedly",
	"rpc failed",
	"http 429",
	"http 502",
	"http 503",
	"http 504",
}

// IsTransient reports whether err looks like a temporary network condition.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ClassifyError categorizes an error for the skip ledger.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}

// IsFDExhaustion reports whether err was caused by running out of file
// descriptors, per process (EMFILE) or system wide (ENFILE).
func IsFDExhaustion(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "too many open files")
}
