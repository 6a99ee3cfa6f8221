/*
Package executor issues tracker API calls and times them.

# Overview

One Executor is shared by every virtual user of a run. It owns a pooled
http.Client (keep-alive, bounded dial and TLS handshake) and applies a
per-call deadline through the request context. Options.TLS, built with
LoadTLSConfig, adds a client certificate, a CA bundle or skipped
verification to the transport.

# Request Decoration

Each call gets:
  - Content-Type: application/json, bodyless calls included
  - Authorization: Bearer <token> when HttpRequest.Token is set
  - Traceparent: a fresh W3C trace context value, also kept on the result

# Results

Execute never returns a Go error. Transport failures are folded into the
RequestResult:

	1050  the call exceeded its deadline
	1000  any other transport failure
	14xx  4xx response (1000 + status)
	15xx  5xx response (1000 + status)

A types.Sample tagged with the context's scenario name is handed to the
configured Recorder after every call, including failed ones.

# Example Usage

	exec := executor.New(executor.Options{
		Timeout:  10 * time.Second,
		Recorder: recorder,
	})

	res := exec.Execute(ctx, &types.HttpRequest{
		Name:   "/issues/{id}",
		Method: http.MethodGet,
		URL:    baseURL + "/api/issues/DEMO-1?fields=id",
		Token:  token,
	})
	if !res.OK() {
		return fmt.Errorf("view failed: %d %s", res.Status, res.Error)
	}
*/
package executor
