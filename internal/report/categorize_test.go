package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studiowebux/trackload/internal/types"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		res  *types.RequestResult
		want string
	}{
		{"nil", nil, CategoryOther},
		{"server", &types.RequestResult{Status: 502}, CategoryServer},
		{"client", &types.RequestResult{Status: 404}, CategoryClient},
		{"check", &types.RequestResult{Status: 200}, CategoryCheck},
		{"cancelled", &types.RequestResult{Error: "Post \"x\": context canceled"}, CategoryCancelled},
		{"deadline", &types.RequestResult{Error: "context deadline exceeded"}, CategoryTimeout},
		{"timeout", &types.RequestResult{Error: "i/o timeout"}, CategoryTimeout},
		{"dns", &types.RequestResult{Error: "dial tcp: lookup tracker: no such host"}, CategoryDNS},
		{"refused", &types.RequestResult{Error: "dial tcp 127.0.0.1:1: connect: connection refused"}, CategoryRefused},
		{"reset", &types.RequestResult{Error: "read: connection reset by peer"}, CategoryReset},
		{"unreachable", &types.RequestResult{Error: "connect: network is unreachable"}, CategoryUnreachable},
		{"tls", &types.RequestResult{Error: "x509: certificate signed by unknown authority"}, CategoryTLS},
		{"eof", &types.RequestResult{Error: "unexpected EOF"}, CategoryEOF},
		{"other", &types.RequestResult{Error: "something odd"}, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.res))
		})
	}
}
