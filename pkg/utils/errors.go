package utils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrInvalidSeed      = errors.New("invalid seed URL")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrParsing          = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL)
	ErrDatabase         = errors.New("database error") // Wraps badger errors
	ErrRenderFailed     = errors.New("page render failed")
	ErrCheckPanicked    = errors.New("check group panicked")
)

// TransportKind classifies a transport-level failure. It determines the
// human-readable error string attached to a PageRecord and is never surfaced
// as a hard error.
type TransportKind string

const (
	TransportDNS     TransportKind = "dns"
	TransportTimeout TransportKind = "timeout"
	TransportSSL     TransportKind = "ssl"
	TransportOther   TransportKind = "other"
)

// ClassifyTransport maps a network error to its TransportKind.
func ClassifyTransport(err error) TransportKind {
	if err == nil {
		return TransportOther
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDNS
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) {
		return TransportSSL
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	// Substring fallbacks for errors that arrive flattened through a
	// renderer boundary (chromedp reports plain strings).
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "name_not_resolved") || strings.Contains(msg, "dns"):
		return TransportDNS
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed_out") || strings.Contains(msg, "deadline exceeded"):
		return TransportTimeout
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate") || strings.Contains(msg, "ssl") || strings.Contains(msg, "cert_"):
		return TransportSSL
	}
	return TransportOther
}

// TransportMessage builds the human-readable error string recorded on a
// PageRecord for a transport failure.
func TransportMessage(url string, err error) string {
	switch ClassifyTransport(err) {
	case TransportDNS:
		return fmt.Sprintf("DNS lookup failed for %s: %v", url, err)
	case TransportTimeout:
		return fmt.Sprintf("request to %s timed out: %v", url, err)
	case TransportSSL:
		return fmt.Sprintf("SSL/TLS error for %s: %v", url, err)
	default:
		return fmt.Sprintf("network error for %s: %v", url, err)
	}
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		switch ClassifyTransport(err) {
		case TransportDNS:
			return "RetryFailed_DNSLookup"
		case TransportTimeout:
			return "RetryFailed_NetworkTimeout"
		case TransportSSL:
			return "RetryFailed_TLS"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrInvalidSeed):
		return "Input_InvalidSeed"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRenderFailed):
		return "Render_Failed"
	case errors.Is(err, ErrCheckPanicked):
		return "Check_Panic"
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	switch ClassifyTransport(err) {
	case TransportDNS:
		return "Network_DNSLookup"
	case TransportTimeout:
		return "Network_Timeout"
	case TransportSSL:
		return "Network_TLS"
	}

	return "Unknown"
}
