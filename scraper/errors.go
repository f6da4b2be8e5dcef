package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind tags a fatal scrape error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork
	// KindStructureNotFound means the page lacks the embedded catalog script.
	KindStructureNotFound
	// KindParsing means the page or its payload could not be decoded.
	KindParsing
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStructureNotFound:
		return "structure_not_found"
	case KindParsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A StructureNotFound error also matches ErrParsing.
var (
	ErrNetwork           = errors.New("network error")
	ErrStructureNotFound = errors.New("page structure not found")
	ErrParsing           = errors.New("parsing error")
)

// Error is the fatal error returned by Run.
type Error struct {
	Kind Kind
	Page int
	URL  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Page > 0 {
		msg = fmt.Sprintf("%s on page %d", msg, e.Page)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrStructureNotFound:
		return e.Kind == KindStructureNotFound
	case ErrParsing:
		return e.Kind == KindParsing || e.Kind == KindStructureNotFound
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var scrapeErr *Error
	if errors.As(err, &scrapeErr) {
		return scrapeErr.Kind
	}
	return KindUnknown
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func structureError(format string, args ...any) *Error {
	return &Error{Kind: KindStructureNotFound, Err: fmt.Errorf(format, args...)}
}

func parsingError(err error) *Error {
	return &Error{Kind: KindParsing, Err: err}
}

// annotate fills in page and URL on a scrape error that lacks them.
func annotate(err error, page int, url string) error {
	var scrapeErr *Error
	if !errors.As(err, &scrapeErr) {
		return err
	}
	if scrapeErr.Page == 0 {
		scrapeErr.Page = page
	}
	if scrapeErr.URL == "" {
		scrapeErr.URL = url
	}
	return err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing listing (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the site rate-limited the request (HTTP 429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx response.
type ErrServer struct {
	Status int
	Err    error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server %d: %w", e.Status, e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and status code to a cause type.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Status: statusCode, Err: wrapped}
		}
		if err == nil {
			return wrapped
		}
	}

	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server"
	}
	return "other"
}

// retryable reports whether a classified cause is worth another attempt.
func retryable(err error) bool {
	switch errorTypeLabel(err) {
	case "timeout", "connection", "rate_limited", "server":
		return true
	}
	return false
}
