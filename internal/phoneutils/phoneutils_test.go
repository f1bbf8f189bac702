package phoneutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		isNil    bool
		issues   bool
	}{
		{name: "empty", input: "", isNil: true},
		{name: "blank", input: "   ", isNil: true},
		{name: "local trunk prefix", input: "0712345678", expected: "+254712345678"},
		{name: "country code without plus", input: "254712345678", expected: "+254712345678"},
		{name: "already international", input: "+254712345678", expected: "+254712345678"},
		{name: "subscriber form", input: "712345678", expected: "+254712345678"},
		{name: "separators stripped", input: "0712 345-678", expected: "+254712345678"},
		{name: "foreign without plus", input: "447911123456", expected: "+447911123456", issues: true},
		{name: "foreign with plus kept as given", input: "+44 7911 123456", expected: "+44 7911 123456", issues: true},
		{name: "short local number", input: "0712", expected: "+254712", issues: true},
		{name: "landline", input: "0201234567", expected: "+254201234567", issues: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			if tt.isNil {
				assert.Nil(t, result.Value)
				assert.Empty(t, result.String())
				return
			}
			require.NotNil(t, result.Value)
			assert.Equal(t, tt.expected, *result.Value)
			if tt.issues {
				assert.NotEmpty(t, result.Issues)
			} else {
				assert.Empty(t, result.Issues)
			}
		})
	}
}

func TestNormalize_NoDigits(t *testing.T) {
	result := Normalize("MPESA")
	assert.Nil(t, result.Value)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "no digits")
}

func TestNormalizer_OtherCountry(t *testing.T) {
	n := NewNormalizer("+255", "7")

	assert.Equal(t, "+255712345678", n.Normalize("0712345678").String())
	assert.Equal(t, "+255712345678", n.Normalize("712345678").String())
	assert.Equal(t, "+255712345678", n.Normalize("255712345678").String())
}
