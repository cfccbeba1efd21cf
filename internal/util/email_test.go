package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a@example.com", "a@example.com", true},
		{"  A@Example.COM  ", "a@example.com", true},
		{"Future Me <future@example.com>", "future@example.com", true},
		{"", "", false},
		{"   ", "", false},
		{"not-an-email", "", false},
		{"a@", "", false},
		{"@example.com", "", false},
	}

	for _, tc := range cases {
		got, ok := NormalizeEmail(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
