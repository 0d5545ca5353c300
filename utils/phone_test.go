package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0821234567", "+27821234567"},
		{"082 123 4567", "+27821234567"},
		{"(082) 123-4567", "+27821234567"},
		{"27821234567", "+27821234567"},
		{"+27821234567", "+27821234567"},
		{"+44 7911 123456", "+447911123456"},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizePhoneRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "not a number", "082123", "+2712", "98765"} {
		_, err := NormalizePhone(in)
		assert.Error(t, err, in)
	}
}
