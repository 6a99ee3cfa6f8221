package executor

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/studiowebux/trackload/internal/types"
)

// Connection management constants for the shared transport
const (
	IdleConnTimeout       = 90 * time.Second
	TCPDialTimeout        = 10 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	DefaultTimeout  = 10 * time.Second
	DefaultMaxConns = 100
)

// Error codes attached to failed calls
const (
	ErrCodeGeneric = 1000
	ErrCodeTimeout = 1050
)

// Options configures an Executor
type Options struct {
	Timeout  time.Duration  // per-call deadline
	MaxConns int            // connection pool size per host
	Recorder types.Recorder // receives one Sample per call, may be nil
	TLS      *tls.Config    // server verification and client certificates, may be nil
	Client   *http.Client   // overrides the pooled client, mainly for tests
}

// Executor issues tracker calls over one pooled client and records a timing
// sample for every call. It is safe for concurrent use.
type Executor struct {
	client   *http.Client
	timeout  time.Duration
	recorder types.Recorder
}

// New creates an Executor
func New(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	client := opts.Client
	if client == nil {
		client = buildHTTPClient(opts.MaxConns, opts.Timeout, opts.TLS)
	}
	return &Executor{
		client:   client,
		timeout:  opts.Timeout,
		recorder: opts.Recorder,
	}
}

// Execute performs the call and always returns a result. Transport failures
// are reported through Error and ErrorCode, never as a Go error, so callers
// can treat every outcome as a sample.
func (e *Executor) Execute(ctx context.Context, req *types.HttpRequest) *types.RequestResult {
	result := e.do(ctx, req)
	if e.recorder != nil {
		e.recorder.Sample(types.Sample{
			Timestamp:  time.Now(),
			Scenario:   types.ScenarioFrom(ctx),
			Name:       result.Name,
			Method:     result.Method,
			URL:        result.URL,
			StatusCode: result.Status,
			DurationMs: result.Duration,
			Failed:     result.Failed(),
			ErrorCode:  result.ErrorCode,
			Error:      result.Error,
		})
	}
	return result
}

func (e *Executor) do(ctx context.Context, req *types.HttpRequest) *types.RequestResult {
	result := &types.RequestResult{
		Name:        sampleName(req),
		Method:      req.Method,
		URL:         req.URL,
		Traceparent: NewTraceparent(),
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = bytes.NewBufferString(req.Body)
		result.RequestSize = len(req.Body)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		result.ErrorCode = ErrCodeGeneric
		return result
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Traceparent", result.Traceparent)
	if req.Token != "" {
		(&oauth2.Token{AccessToken: req.Token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		result.Duration = time.Since(start).Milliseconds()
		result.Error = err.Error()
		result.ErrorCode = transportErrorCode(err)
		return result
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	result.Duration = time.Since(start).Milliseconds()
	result.Status = resp.StatusCode
	result.StatusText = resp.Status
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response body: %v", err)
		result.ErrorCode = transportErrorCode(err)
		return result
	}

	headers := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}
	result.Headers = headers
	result.Body = string(bodyBytes)
	result.ResponseSize = len(bodyBytes)
	result.ErrorCode = StatusErrorCode(resp.StatusCode)
	return result
}

func sampleName(req *types.HttpRequest) string {
	if req.Name != "" {
		return req.Name
	}
	return req.URL
}

// transportErrorCode classifies a failed round trip
func transportErrorCode(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCodeTimeout
	}
	return ErrCodeGeneric
}

// StatusErrorCode maps an HTTP status to its error code, 0 for non-errors.
// 4xx and 5xx map to 1000+status (404 -> 1404, 503 -> 1503).
func StatusErrorCode(status int) int {
	if status >= 400 && status < 600 {
		return 1000 + status
	}
	return 0
}

// NewTraceparent returns a fresh W3C trace context header value with the
// sampled flag set.
func NewTraceparent() string {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return "00-" + hex.EncodeToString(buf[:16]) + "-" + hex.EncodeToString(buf[16:]) + "-01"
}

// LoadTLSConfig builds the client TLS configuration: a client certificate
// for mTLS, a CA bundle for server verification, or skipped verification.
// It returns nil when cfg sets nothing.
func LoadTLSConfig(cfg types.TLSConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, fmt.Errorf("client certificate and key must be set together")
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = caCertPool
	}
	return tlsCfg, nil
}

// buildHTTPClient creates a client tuned for sustained load: pooled
// keep-alive connections and bounded dial and handshake times.
func buildHTTPClient(maxConns int, timeout time.Duration, tlsCfg *tls.Config) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     maxConns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
		TLSClientConfig:       tlsCfg,
	}

	// the per-call context carries the deadline
	return &http.Client{Transport: transport}
}
