package chattypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadTitle(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"uuid truncated to prefix", "11112222-3333-4444-5555-666677778888", "11112222"},
		{"short id kept whole", "t1", "t1"},
		{"exactly eight chars", "abcd1234", "abcd1234"},
		{"empty id", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ThreadTitle(tt.id))
		})
	}
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		expected string
	}{
		{"nil user", nil, ""},
		{"full name", &User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first name only", &User{FirstName: "Ada"}, "Ada"},
		{"last name only", &User{LastName: "Lovelace"}, "Lovelace"},
		{"email only", &User{Email: "ada@intersectx.io"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.DisplayName())
		})
	}
}
