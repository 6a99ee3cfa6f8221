package report

import (
	"strings"

	"github.com/studiowebux/trackload/internal/types"
)

// Error categories attached to failed-check records
const (
	CategoryTimeout     = "timeout"
	CategoryCancelled   = "cancelled"
	CategoryDNS         = "dns"
	CategoryRefused     = "connection_refused"
	CategoryReset       = "connection_reset"
	CategoryUnreachable = "network_unreachable"
	CategoryTLS         = "tls"
	CategoryEOF         = "eof"
	CategoryClient      = "http_4xx"
	CategoryServer      = "http_5xx"
	CategoryCheck       = "check"
	CategoryOther       = "transport"
)

// Categorize classifies a failed call for error records. Transport errors
// are matched on their message since they arrive as strings.
func Categorize(res *types.RequestResult) string {
	if res == nil {
		return CategoryOther
	}
	if res.Error == "" {
		switch {
		case res.Status >= 500:
			return CategoryServer
		case res.Status >= 400:
			return CategoryClient
		default:
			return CategoryCheck
		}
	}

	errLower := strings.ToLower(res.Error)
	switch {
	case strings.Contains(errLower, "context canceled"):
		return CategoryCancelled
	case strings.Contains(errLower, "deadline exceeded"),
		strings.Contains(errLower, "timeout"),
		strings.Contains(errLower, "timed out"):
		return CategoryTimeout
	case strings.Contains(errLower, "no such host"),
		strings.Contains(errLower, "dial tcp: lookup"):
		return CategoryDNS
	case strings.Contains(errLower, "connection refused"):
		return CategoryRefused
	case strings.Contains(errLower, "connection reset"):
		return CategoryReset
	case strings.Contains(errLower, "network is unreachable"),
		strings.Contains(errLower, "no route to host"):
		return CategoryUnreachable
	case strings.Contains(errLower, "tls"),
		strings.Contains(errLower, "x509"),
		strings.Contains(errLower, "certificate"):
		return CategoryTLS
	case strings.Contains(errLower, "eof"):
		return CategoryEOF
	}
	return CategoryOther
}
