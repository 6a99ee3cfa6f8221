package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const issueBody = `{"id":"2-15","idReadable":"DEMO-15","summary":"","comments":[],"customFields":[{"name":"State","value":{"name":"Open"}}]}`

func TestHas(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"id", true},
		{"idReadable", true},
		{"summary", false},
		{"comments", false},
		{"customFields[?name=='State'].value.name | [0]", true},
		{"missing", false},
		{"[[[", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Has(issueBody, tt.expr))
		})
	}

	assert.False(t, Has("not json", "id"))
}
