package fragment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReason(t *testing.T) {
	assert.NoError(t, ValidateReason(""))
	assert.NoError(t, ValidateReason("storing game save data"))
	assert.NoError(t, ValidateReason(strings.Repeat("x", MaxReasonLength)))
	assert.Error(t, ValidateReason(strings.Repeat("x", MaxReasonLength+1)))
}

func TestValidateSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		ok     bool
	}{
		{"valid", "abc123", true},
		{"valid long", "abcdefghij1234567890", true},
		{"too short", "ab12", false},
		{"too long", "abcdefghij12345678901", false},
		{"digits only", "123456", false},
		{"letters only", "abcdef", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSecret(tc.secret)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
			}
		})
	}
}
