package executor

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/trackload/internal/types"
)

var traceparentPattern = regexp.MustCompile(`^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`)

func TestExecute_DecoratesRequest(t *testing.T) {
	var gotAuth, gotTrace, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("Traceparent")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"2-1"}`))
	}))
	defer server.Close()

	rec := &types.MemoryRecorder{}
	exec := New(Options{Timeout: time.Second, Recorder: rec})

	ctx := types.WithScenario(context.Background(), "create_issue")
	res := exec.Execute(ctx, &types.HttpRequest{
		Name:   "/drafts",
		Method: http.MethodPost,
		URL:    server.URL + "/api/users/me/drafts?fields=id",
		Body:   `{"summary":"x"}`,
		Token:  "perm:abc",
	})

	require.True(t, res.OK())
	assert.Equal(t, `{"id":"2-1"}`, res.Body)
	assert.Equal(t, "Bearer perm:abc", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, `{"summary":"x"}`, gotBody)
	assert.Regexp(t, traceparentPattern, gotTrace)
	assert.Equal(t, gotTrace, res.Traceparent)
	assert.Zero(t, res.ErrorCode)

	samples := rec.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, "/drafts", samples[0].Name)
	assert.Equal(t, "create_issue", samples[0].Scenario)
	assert.Equal(t, http.StatusOK, samples[0].StatusCode)
	assert.False(t, samples[0].Failed)
}

func TestExecute_NoTokenNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	res := New(Options{}).Execute(context.Background(), &types.HttpRequest{Method: http.MethodGet, URL: server.URL})
	assert.True(t, res.OK())
	assert.Equal(t, server.URL, res.Name)
}

func TestExecute_StatusErrorCodes(t *testing.T) {
	tests := []struct {
		status int
		code   int
	}{
		{http.StatusNotFound, 1404},
		{http.StatusForbidden, 1403},
		{http.StatusInternalServerError, 1500},
		{http.StatusServiceUnavailable, 1503},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			rec := &types.MemoryRecorder{}
			res := New(Options{Recorder: rec}).Execute(context.Background(), &types.HttpRequest{Method: http.MethodGet, URL: server.URL})
			assert.False(t, res.OK())
			assert.True(t, res.Failed())
			assert.Equal(t, tt.code, res.ErrorCode)
			assert.True(t, rec.Samples()[0].Failed)
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	rec := &types.MemoryRecorder{}
	res := New(Options{Timeout: 50 * time.Millisecond, Recorder: rec}).Execute(context.Background(), &types.HttpRequest{
		Name:   "/issues/{id}",
		Method: http.MethodGet,
		URL:    server.URL,
	})

	assert.Equal(t, ErrCodeTimeout, res.ErrorCode)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.Status)
	require.Len(t, rec.Samples(), 1)
	assert.True(t, rec.Samples()[0].Failed)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	res := New(Options{Timeout: time.Second}).Execute(context.Background(), &types.HttpRequest{Method: http.MethodGet, URL: url})
	assert.Equal(t, ErrCodeGeneric, res.ErrorCode)
	assert.True(t, res.Failed())
}

func TestNewTraceparent_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tp := NewTraceparent()
		require.Regexp(t, traceparentPattern, tp)
		require.False(t, seen[tp])
		seen[tp] = true
	}
}

func TestExecute_BodylessCallsSendJSONContentType(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.Header.Get("Content-Type"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	exec := New(Options{})
	exec.Execute(context.Background(), &types.HttpRequest{Method: http.MethodGet, URL: server.URL + "/api/sortedIssues", Token: "perm:a"})
	exec.Execute(context.Background(), &types.HttpRequest{Method: http.MethodPost, URL: server.URL + "/api/users/me/drafts", Body: "{}", Token: "perm:a"})

	assert.Equal(t, []string{"GET application/json", "POST application/json"}, got)
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// writeClientCert creates a self-signed client certificate and key
func writeClientCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "trackload-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")
	writePEM(t, certFile, "CERTIFICATE", der)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)
	return certFile, keyFile
}

func TestLoadTLSConfig_VerifiesServerWithCA(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	writePEM(t, caFile, "CERTIFICATE", server.Certificate().Raw)

	req := &types.HttpRequest{Method: http.MethodGet, URL: server.URL}

	untrusted := New(Options{Timeout: time.Second}).Execute(context.Background(), req)
	assert.Equal(t, ErrCodeGeneric, untrusted.ErrorCode, "unknown authority")

	tlsCfg, err := LoadTLSConfig(types.TLSConfig{CAFile: caFile})
	require.NoError(t, err)
	res := New(Options{Timeout: time.Second, TLS: tlsCfg}).Execute(context.Background(), req)
	assert.True(t, res.OK(), res.Error)

	tlsCfg, err = LoadTLSConfig(types.TLSConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	res = New(Options{Timeout: time.Second, TLS: tlsCfg}).Execute(context.Background(), req)
	assert.True(t, res.OK(), res.Error)
}

func TestLoadTLSConfig_ClientCertificate(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(r.TLS.PeerCertificates[0].Subject.CommonName))
	}))
	server.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	server.StartTLS()
	defer server.Close()

	certFile, keyFile := writeClientCert(t, t.TempDir())
	tlsCfg, err := LoadTLSConfig(types.TLSConfig{CertFile: certFile, KeyFile: keyFile, InsecureSkipVerify: true})
	require.NoError(t, err)
	require.Len(t, tlsCfg.Certificates, 1)

	res := New(Options{Timeout: time.Second, TLS: tlsCfg}).Execute(context.Background(), &types.HttpRequest{Method: http.MethodGet, URL: server.URL})
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, "trackload-client", res.Body)
}

func TestLoadTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.pem")
	require.NoError(t, os.WriteFile(bogus, []byte("not a certificate"), 0o600))

	cfg, err := LoadTLSConfig(types.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg)

	tests := []struct {
		name string
		cfg  types.TLSConfig
		want string
	}{
		{"cert without key", types.TLSConfig{CertFile: bogus}, "must be set together"},
		{"unreadable pair", types.TLSConfig{CertFile: bogus, KeyFile: bogus}, "failed to load client certificate"},
		{"missing CA", types.TLSConfig{CAFile: filepath.Join(dir, "none.pem")}, "failed to read CA certificate"},
		{"invalid CA", types.TLSConfig{CAFile: bogus}, "failed to parse CA certificate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTLSConfig(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
